package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for the assistant.
type AIProvider string

// Available AI providers.
const (
	// AIProviderGemini is the Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGemini, AIProviderAnthropic, AIProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderGemini || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// AssistantSettings holds AI assistant provider configuration.
type AssistantSettings struct {
	// Provider is the assistant service provider.
	Provider AIProvider

	// Model is the model identifier.
	Model string

	// BaseURL overrides the provider's default endpoint. Empty is valid
	// for cloud providers.
	BaseURL string

	// APIKey authenticates against cloud providers.
	APIKey string
}

// IsConfigured returns true if the settings are complete enough to
// create an assistant client.
func (s *AssistantSettings) IsConfigured() bool {
	if !s.Provider.IsValid() || s.Model == "" {
		return false
	}
	if s.Provider.RequiresAPIKey() && s.APIKey == "" {
		return false
	}
	return true
}

// ServerSettings holds the HTTP server configuration.
type ServerSettings struct {
	// Host is the listen address.
	Host string

	// Port is the listen port.
	Port int
}

// AppSettings is the full application configuration.
type AppSettings struct {
	Assistant AssistantSettings
	Server    ServerSettings
}

// DefaultAppSettings returns the defaults used when no configuration
// has been saved yet. The server binds to loopback only: the backend
// serves a local Electron frontend, not the network.
func DefaultAppSettings() *AppSettings {
	return &AppSettings{
		Assistant: AssistantSettings{
			Provider: AIProviderGemini,
			Model:    "gemini-2.5-flash",
		},
		Server: ServerSettings{
			Host: "127.0.0.1",
			Port: 8765,
		},
	}
}

// ModelInfo describes a selectable model for a provider.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProviderInfo describes an available provider and its model catalog.
type ProviderInfo struct {
	ID     AIProvider  `json:"id"`
	Name   string      `json:"name"`
	Models []ModelInfo `json:"models"`
}

// KnownModels returns the model catalog for a provider. The list is
// advisory; any model id accepted by the provider may be configured.
func (p AIProvider) KnownModels() []ModelInfo {
	switch p {
	case AIProviderGemini:
		return []ModelInfo{
			{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "Best price-performance, large context"},
			{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "Advanced reasoning and thinking"},
			{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Description: "Second gen workhorse model"},
			{ID: "gemini-2.5-flash-lite", Name: "Gemini 2.5 Flash-Lite", Description: "Fastest, most cost-efficient"},
			{ID: "gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash-Lite", Description: "Fast and lightweight"},
		}
	case AIProviderAnthropic:
		return []ModelInfo{
			{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Description: "Balanced speed and capability"},
			{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", Description: "Fastest, most cost-efficient"},
			{ID: "claude-opus-4-1", Name: "Claude Opus 4.1", Description: "Most capable"},
		}
	case AIProviderOllama:
		return []ModelInfo{
			{ID: "llama3.2-vision", Name: "Llama 3.2 Vision", Description: "Local multimodal model"},
			{ID: "llava", Name: "LLaVA", Description: "Local vision-language model"},
		}
	default:
		return nil
	}
}
