package summarize

import "fmt"

// Prompt templates for the three summarizer operations. Wording is part of
// the output contract: titles keep technical names verbatim, summaries and
// comment digests are written in Chinese.

const translateSystemPrompt = `你是一名专业的技术翻译。将用户提供的 HackerNews 标题翻译成简体中文。
规则:
- 编程语言名称、知名产品名、公司名保持原文(如 Rust、PostgreSQL、SQLite、Apple)
- 全大写缩写词保持原文(如 API、GPU、LLM、CPU)
- 其余自然语言翻译为中文,语气保持客观
- 只输出翻译结果,不要解释,不要加引号`

const summarizeSystemPrompt = `你是一名技术编辑。用简体中文总结用户提供的文章内容。
规则:
- 技术术语、库名、产品名保持原文
- 概括文章的核心观点和关键事实,提到的具体数字要保留
- 只输出摘要正文,不要标题,不要解释`

const commentsSystemPrompt = `你是一名技术编辑。用简体中文总结 HackerNews 评论区的讨论。
规则:
- 技术术语、库名、产品名保持原文
- 概括主流观点;如果有明确的反对意见,连同其关键论据一并概括
- 评论中提到的具体数字、库或替代方案要保留
- 只输出总结正文,不要解释`

// translateUserPrompt renders the title-translation request.
func translateUserPrompt(title string) string {
	return fmt.Sprintf("标题: %s", title)
}

// summarizeUserPrompt renders the article-summary request.
func summarizeUserPrompt(source string, maxLen int) string {
	return fmt.Sprintf("请将以下内容压缩为约 %d 字的中文摘要:\n\n%s", maxLen, source)
}

// commentsUserPrompt renders the comment-digest request.
func commentsUserPrompt(joined string, maxLen int) string {
	return fmt.Sprintf("请将以下评论总结为约 %d 字的讨论要点:\n\n%s", maxLen, joined)
}
