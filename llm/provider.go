package llm

import (
	"net/http"
	"sync"
)

// Settings holds per-provider credentials and request attributes, resolved
// from configuration once per invocation.
type Settings struct {
	APIKey string
	Model  string
	// SiteURL and SiteName are OpenRouter attribution headers.
	SiteURL  string
	SiteName string
}

// Provider defines the interface for LLM provider implementations. All
// supported providers speak the OpenAI chat-completions dialect; the
// interface exists for base URLs and header differences.
type Provider interface {
	// Name returns the provider identifier (e.g., "deepseek", "zhipu").
	Name() string

	// BuildURL constructs the full chat-completions endpoint URL.
	BuildURL() string

	// SetHeaders adds provider-specific headers to the request.
	SetHeaders(req *http.Request, settings Settings)

	// BuildRequestBody creates the JSON request body for the provider.
	// temperature is nil to use the provider default.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the response from provider-specific JSON.
	ParseResponse(body []byte) (*Response, error)
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}
