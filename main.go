package main

import (
	"embed"
	"flag"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"visionary/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfgFile := flag.String("config", "", "path to a visionary.yaml config file")
	flag.Parse()

	app := NewApp(*cfgFile)

	err := wails.Run(&options.App{
		Title:     "Visionary",
		Width:     1100,
		Height:    760,
		MinWidth:  720,
		MinHeight: 520,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		logging.L("app").Error("wails run failed", logging.Err(err))
		os.Exit(1)
	}
}
