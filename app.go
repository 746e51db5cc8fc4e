package main

import (
	"context"
	goruntime "runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog"

	"imagery-compare/internal/changedetect"
	"imagery-compare/internal/config"
	"imagery-compare/internal/session"
	"imagery-compare/internal/validation"
)

// Build-time variables, set with -ldflags "-X main.PostHogKey=..."
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// App struct
type App struct {
	ctx      context.Context
	settings *config.UserSettings
	mu       sync.Mutex
	devMode  bool
	log      zerolog.Logger
	phClient posthog.Client
	surface  *wailsMapSurface
	session  *session.Controller
}

// NewApp creates a new App application struct
func NewApp(log zerolog.Logger) *App {
	settings := loadSettings(config.GetSettingsPath(), log)
	log.Info().Str("path", config.GetSettingsPath()).Str("api", settings.APIBaseURL).Msg("settings loaded")

	var phClient posthog.Client
	if PostHogKey != "" && settings.AnalyticsEnabled {
		client, err := posthog.NewWithConfig(PostHogKey, posthog.Config{
			Endpoint: PostHogHost,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize PostHog")
		} else {
			phClient = client
		}
	}

	comparer := changedetect.NewClient(settings.APIBaseURL, settings.RequestTimeout(), log)
	return newApp(settings, comparer, phClient, log)
}

// loadSettings reads the settings file at path and writes back merged defaults and
// a generated install ID. A file that cannot be read or parsed is left untouched and
// the app runs on defaults.
func loadSettings(path string, log zerolog.Logger) *config.UserSettings {
	settings, err := config.LoadSettingsFrom(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to load settings, using defaults")
		settings = config.DefaultSettings()
		settings.InstallID = uuid.NewString()
		return settings
	}

	if err := config.SaveSettingsTo(path, settings); err != nil {
		log.Warn().Err(err).Msg("failed to save settings")
	}
	return settings
}

func newApp(settings *config.UserSettings, comparer session.Comparer, phClient posthog.Client, log zerolog.Logger) *App {
	a := &App{
		settings: settings,
		log:      log,
		phClient: phClient,
		surface:  newWailsMapSurface(log),
	}

	opts := session.DefaultOptions()
	opts.SeedInput = seedInput()
	opts.SettleDelay = settings.ViewportSettle()
	opts.Zoom = settings.DefaultZoom
	opts.ComputationLatency = settings.ComputationLatency()
	opts.Logger = log
	opts.OnChange = func(snap session.Snapshot) {
		a.surface.send(EventSessionUpdate, snap)
	}
	a.session = session.New(comparer, a.surface, opts)

	return a
}

func seedInput() validation.RawInput {
	return validation.RawInput{
		Latitude:   config.SeedLatitude,
		Longitude:  config.SeedLongitude,
		Date1:      config.SeedDate1,
		Date2:      config.SeedDate2,
		CloudCover: config.SeedCloudCover,
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.surface.attach(ctx)

	// put the marker on the seed location and center the map there
	a.session.UpdateInput(seedInput())

	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// domReady runs once the frontend has loaded. Map events emitted before that had no
// listener, so the marker, overlays and view are sent again.
func (a *App) domReady(ctx context.Context) {
	a.session.Redraw()
}

// shutdown cleans up resources
func (a *App) shutdown(ctx context.Context) {
	a.surface.detach()
	if a.phClient != nil {
		if err := a.phClient.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to flush analytics")
		}
	}
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient == nil {
		return
	}

	a.mu.Lock()
	enabled := a.settings.AnalyticsEnabled
	installID := a.settings.InstallID
	a.mu.Unlock()

	if !enabled {
		return
	}
	if err := a.phClient.Enqueue(posthog.Capture{
		DistinctId: installID,
		Event:      event,
		Properties: props,
	}); err != nil {
		a.log.Debug().Err(err).Str("event", event).Msg("failed to enqueue analytics event")
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// IsDevMode reports whether verbose frontend diagnostics should be shown
func (a *App) IsDevMode() bool {
	return a.devMode
}
