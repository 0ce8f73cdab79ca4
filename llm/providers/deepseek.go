package providers

import (
	"net/http"

	"github.com/c360studio/hndaily/llm"
)

// DeepSeekProvider implements the DeepSeek chat API.
type DeepSeekProvider struct {
	openAICompatible
}

func init() {
	llm.RegisterProvider(&DeepSeekProvider{})
}

// Name returns the provider identifier.
func (d *DeepSeekProvider) Name() string {
	return "deepseek"
}

// BuildURL constructs the DeepSeek chat-completions endpoint.
func (d *DeepSeekProvider) BuildURL() string {
	return "https://api.deepseek.com/v1/chat/completions"
}

// SetHeaders adds DeepSeek authentication headers.
func (d *DeepSeekProvider) SetHeaders(req *http.Request, settings llm.Settings) {
	if settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+settings.APIKey)
	}
}
