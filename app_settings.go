package main

import (
	"imagery-compare/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings validates and saves user settings. The install ID cannot be changed.
// Service and timing settings apply on next restart.
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := config.ValidateSettings(settings); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	updated := *settings
	updated.InstallID = a.settings.InstallID

	if err := config.SaveSettings(&updated); err != nil {
		return err
	}
	a.settings = &updated

	a.log.Info().Str("api", updated.APIBaseURL).Bool("analytics", updated.AnalyticsEnabled).
		Msg("settings saved, service and timing changes apply on next restart")
	return nil
}

// GetSettingsPath returns the settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}
