package main

import (
	"embed"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"imagery-compare/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

// isDevMode detects if running under `wails dev`
func isDevMode() bool {
	return os.Getenv("WAILS_DEV_SERVER") != "" || os.Getenv("FRONTEND_DEVSERVER_URL") != ""
}

func main() {
	// Set DEV_MODE=1 for debug logging outside `wails dev`
	devMode := os.Getenv("DEV_MODE") == "1" || isDevMode()
	log := logging.New(devMode)

	app := NewApp(log)
	app.devMode = devMode

	logLevel := logger.INFO
	if devMode {
		logLevel = logger.DEBUG
	}

	err := wails.Run(&options.App{
		Title:  "Imagery Compare",
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		Logger:           logging.NewWailsLogger(log),
		LogLevel:         logLevel,
		OnStartup:        app.startup,
		OnDomReady:       app.domReady,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		log.Fatal().Err(err).Msg("application exited with error")
	}
}
