package driving

import "github.com/margo-labs/margo/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves the current application settings, with defaults
	// applied for unset values.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetModel selects the assistant provider and model.
	SetModel(provider domain.AIProvider, model string) error

	// CurrentModel returns the selected provider and model.
	CurrentModel() (domain.AIProvider, string)

	// Providers lists the providers usable with the current
	// configuration (API key present, or local provider), with their
	// model catalogs.
	Providers() []domain.ProviderInfo
}
