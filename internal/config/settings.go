package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Seed values shown in the form when the app starts and after a reset
const (
	SeedLatitude   = "35.4393"
	SeedLongitude  = "-82.2465"
	SeedDate1      = "2024-09-16"
	SeedDate2      = "2024-10-12"
	SeedCloudCover = 20
)

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Comparison service
	APIBaseURL            string `json:"apiBaseURL"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"`

	// Map and computation timing
	ViewportSettleMs     int `json:"viewportSettleMs"`
	ComputationLatencyMs int `json:"computationLatencyMs"`
	DefaultZoom          int `json:"defaultZoom"`

	// Analytics
	AnalyticsEnabled bool   `json:"analyticsEnabled"`
	InstallID        string `json:"installID"`

	// UI preferences
	Theme string `json:"theme"` // "light", "dark", "system"
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	return &UserSettings{
		APIBaseURL:            "http://localhost:8080",
		RequestTimeoutSeconds: 30,
		ViewportSettleMs:      100,
		ComputationLatencyMs:  1500,
		DefaultZoom:           13,
		AnalyticsEnabled:      true,
		Theme:                 "system",
	}
}

// RequestTimeout returns the comparison request timeout
func (s *UserSettings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// ViewportSettle returns the delay before a viewport intent is applied
func (s *UserSettings) ViewportSettle() time.Duration {
	return time.Duration(s.ViewportSettleMs) * time.Millisecond
}

// ComputationLatency returns the simulated computation duration
func (s *UserSettings) ComputationLatency() time.Duration {
	return time.Duration(s.ComputationLatencyMs) * time.Millisecond
}

// GetSettingsPath returns the settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".imagery-compare", "settings", "settings.json")
}

// LoadSettings loads user settings from the default location
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from path. A missing file yields defaults.
// Zero fields are filled from defaults and an install ID is generated if absent.
func LoadSettingsFrom(path string) (*UserSettings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		settings := DefaultSettings()
		settings.InstallID = uuid.NewString()
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.APIBaseURL == "" {
		settings.APIBaseURL = defaults.APIBaseURL
	}
	if settings.RequestTimeoutSeconds == 0 {
		settings.RequestTimeoutSeconds = defaults.RequestTimeoutSeconds
	}
	if settings.ViewportSettleMs == 0 {
		settings.ViewportSettleMs = defaults.ViewportSettleMs
	}
	if settings.ComputationLatencyMs == 0 {
		settings.ComputationLatencyMs = defaults.ComputationLatencyMs
	}
	if settings.DefaultZoom == 0 {
		settings.DefaultZoom = defaults.DefaultZoom
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}
	if settings.InstallID == "" {
		settings.InstallID = uuid.NewString()
	}

	return &settings, nil
}

// SaveSettings saves user settings to the default location
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo writes settings as indented JSON, creating the directory if needed
func SaveSettingsTo(path string, settings *UserSettings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// ValidateSettings checks values a user may have edited by hand
func ValidateSettings(settings *UserSettings) error {
	u, err := url.Parse(settings.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", settings.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API base URL scheme: %s (must be http or https)", u.Scheme)
	}
	if settings.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("request timeout must be at least 1 second")
	}
	if settings.ViewportSettleMs < 0 || settings.ComputationLatencyMs < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if settings.DefaultZoom < 1 || settings.DefaultZoom > 22 {
		return fmt.Errorf("invalid default zoom: %d (must be 1-22)", settings.DefaultZoom)
	}

	validThemes := map[string]bool{
		"light":  true,
		"dark":   true,
		"system": true,
	}
	if !validThemes[settings.Theme] {
		return fmt.Errorf("invalid theme: %s (must be light, dark, or system)", settings.Theme)
	}

	return nil
}
