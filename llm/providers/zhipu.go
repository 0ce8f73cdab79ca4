package providers

import (
	"net/http"

	"github.com/c360studio/hndaily/llm"
)

// ZhipuProvider implements the Zhipu (BigModel) chat API.
type ZhipuProvider struct {
	openAICompatible
}

func init() {
	llm.RegisterProvider(&ZhipuProvider{})
}

// Name returns the provider identifier.
func (z *ZhipuProvider) Name() string {
	return "zhipu"
}

// BuildURL constructs the Zhipu chat-completions endpoint.
func (z *ZhipuProvider) BuildURL() string {
	return "https://open.bigmodel.cn/api/paas/v4/chat/completions"
}

// SetHeaders adds Zhipu authentication headers.
func (z *ZhipuProvider) SetHeaders(req *http.Request, settings llm.Settings) {
	if settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+settings.APIKey)
	}
}
