package providers

import (
	"net/http"

	"github.com/c360studio/hndaily/llm"
)

// OpenRouterProvider implements the OpenRouter chat API. OpenRouter asks
// callers to attribute traffic via HTTP-Referer and X-Title headers.
type OpenRouterProvider struct {
	openAICompatible
}

func init() {
	llm.RegisterProvider(&OpenRouterProvider{})
}

// Name returns the provider identifier.
func (o *OpenRouterProvider) Name() string {
	return "openrouter"
}

// BuildURL constructs the OpenRouter chat-completions endpoint.
func (o *OpenRouterProvider) BuildURL() string {
	return "https://openrouter.ai/api/v1/chat/completions"
}

// SetHeaders adds OpenRouter authentication and attribution headers.
func (o *OpenRouterProvider) SetHeaders(req *http.Request, settings llm.Settings) {
	if settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+settings.APIKey)
	}
	if settings.SiteURL != "" {
		req.Header.Set("HTTP-Referer", settings.SiteURL)
	}
	if settings.SiteName != "" {
		req.Header.Set("X-Title", settings.SiteName)
	}
}
