package services

import (
	"fmt"
	"os"

	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/core/ports/driving"
	"github.com/margo-labs/margo/internal/logger"
)

// Configuration keys.
const (
	keyAssistantProvider = "assistant.provider"
	keyAssistantModel    = "assistant.model"
	keyAssistantBaseURL  = "assistant.base_url"
	keyServerHost        = "server.host"
	keyServerPort        = "server.port"
)

// API keys are stored per provider so switching providers does not
// discard credentials.
func apiKeyConfigKey(p domain.AIProvider) string {
	return fmt.Sprintf("assistant.api_key.%s", p)
}

// Environment variables consulted when no key is configured.
var apiKeyEnvVars = map[domain.AIProvider]string{
	domain.AIProviderGemini:    "GEMINI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
}

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// SettingsService manages application settings backed by a config
// store. Unset values fall back to defaults, and API keys fall back to
// the provider's environment variable.
type SettingsService struct {
	store driven.ConfigStore
}

// NewSettingsService creates a settings service with the given config store.
func NewSettingsService(store driven.ConfigStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get retrieves the current application settings, with defaults
// applied for unset values.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()

	if provider := s.store.GetString(keyAssistantProvider); provider != "" {
		p := domain.AIProvider(provider)
		if p.IsValid() {
			settings.Assistant.Provider = p
		} else {
			logger.Warn("ignoring unknown assistant provider in config: %s", provider)
		}
	}
	if model := s.store.GetString(keyAssistantModel); model != "" {
		settings.Assistant.Model = model
	}
	if baseURL := s.store.GetString(keyAssistantBaseURL); baseURL != "" {
		settings.Assistant.BaseURL = baseURL
	}
	settings.Assistant.APIKey = s.apiKeyFor(settings.Assistant.Provider)

	if host := s.store.GetString(keyServerHost); host != "" {
		settings.Server.Host = host
	}
	if port := s.store.GetInt(keyServerPort); port != 0 {
		settings.Server.Port = port
	}

	return settings, nil
}

// apiKeyFor resolves the API key for a provider from config, then from
// the environment. Local providers need none.
func (s *SettingsService) apiKeyFor(p domain.AIProvider) string {
	if !p.RequiresAPIKey() {
		return ""
	}
	if key := s.store.GetString(apiKeyConfigKey(p)); key != "" {
		return key
	}
	return os.Getenv(apiKeyEnvVars[p])
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("settings are nil: %w", domain.ErrInvalidInput)
	}
	if !settings.Assistant.Provider.IsValid() {
		return fmt.Errorf("invalid provider %q: %w", settings.Assistant.Provider, domain.ErrInvalidInput)
	}

	if err := s.store.Set(keyAssistantProvider, settings.Assistant.Provider.String()); err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}
	if err := s.store.Set(keyAssistantModel, settings.Assistant.Model); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	if err := s.store.Set(keyAssistantBaseURL, settings.Assistant.BaseURL); err != nil {
		return fmt.Errorf("failed to save base URL: %w", err)
	}
	if settings.Assistant.APIKey != "" {
		if err := s.store.Set(apiKeyConfigKey(settings.Assistant.Provider), settings.Assistant.APIKey); err != nil {
			return fmt.Errorf("failed to save API key: %w", err)
		}
	}
	if err := s.store.Set(keyServerHost, settings.Server.Host); err != nil {
		return fmt.Errorf("failed to save server host: %w", err)
	}
	if err := s.store.Set(keyServerPort, settings.Server.Port); err != nil {
		return fmt.Errorf("failed to save server port: %w", err)
	}

	logger.Debug("settings saved to %s", s.store.Path())
	return nil
}

// SetModel selects the assistant provider and model.
func (s *SettingsService) SetModel(provider domain.AIProvider, model string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid provider %q: %w", provider, domain.ErrInvalidInput)
	}
	if model == "" {
		return fmt.Errorf("model is empty: %w", domain.ErrInvalidInput)
	}

	if err := s.store.Set(keyAssistantProvider, provider.String()); err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}
	if err := s.store.Set(keyAssistantModel, model); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	logger.Info("assistant model set to %s/%s", provider, model)
	return nil
}

// CurrentModel returns the selected provider and model.
func (s *SettingsService) CurrentModel() (domain.AIProvider, string) {
	settings, _ := s.Get()
	return settings.Assistant.Provider, settings.Assistant.Model
}

// Providers lists the providers usable with the current configuration,
// with their model catalogs. Cloud providers appear only when an API
// key is resolvable; local providers are always listed.
func (s *SettingsService) Providers() []domain.ProviderInfo {
	all := []domain.AIProvider{
		domain.AIProviderGemini,
		domain.AIProviderAnthropic,
		domain.AIProviderOllama,
	}

	available := make([]domain.ProviderInfo, 0, len(all))
	for _, p := range all {
		if p.RequiresAPIKey() && s.apiKeyFor(p) == "" {
			continue
		}
		available = append(available, domain.ProviderInfo{
			ID:     p,
			Name:   p.Description(),
			Models: p.KnownModels(),
		})
	}
	return available
}
