package contentfilter

import "fmt"

// Sensitivity rubrics. The rubric text is the whole parameterization: the
// model only ever answers SAFE or SENSITIVE.

const rubricLow = `只有明确包含以下内容的标题才标记 SENSITIVE:
- 露骨的成人内容
- 美化暴力或恐怖主义
- 明确的违法活动指引(如毒品制作、武器改装)
其余一律 SAFE,包括政治新闻、安全漏洞报道和一般争议话题。`

const rubricMedium = `包含以下内容的标题标记 SENSITIVE:
- 涉及中国政治敏感话题(领导人、体制批评、敏感历史事件、港台藏疆议题)
- 明确的违法活动(毒品、武器、人口贩卖)
- 露骨的成人或暴力内容
普通的国际政治新闻、技术安全报道标记 SAFE。`

const rubricHigh = `从严审查。包含以下内容的标题标记 SENSITIVE:
- 任何涉及政治、政府、选举、地缘冲突的内容
- 任何涉及中国的时政、社会议题
- 违法活动、成人内容、暴力内容
- 宗教和意识形态争议
纯技术、科学、商业产品类标题标记 SAFE。`

// classifierSystemPrompt selects the rubric for the configured sensitivity.
func classifierSystemPrompt(sensitivity string) string {
	rubric := rubricMedium
	switch sensitivity {
	case "low":
		rubric = rubricLow
	case "high":
		rubric = rubricHigh
	}

	return fmt.Sprintf(`你是一个内容分类器,为面向中国读者的技术文摘审查 HackerNews 标题。

分类标准:
%s

输出要求: 只输出一个 JSON 数组,不要解释。`, rubric)
}

// classifierUserPrompt renders the indexed title list and the output schema.
func classifierUserPrompt(titleList string, count int) string {
	return fmt.Sprintf(`对以下 %d 个标题逐一分类:

%s
输出格式(必须包含全部 %d 个序号,各出现一次):
[{"index": 0, "classification": "SAFE"}, {"index": 1, "classification": "SENSITIVE"}, ...]`,
		count, titleList, count)
}
