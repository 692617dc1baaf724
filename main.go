package main

import (
	"fmt"
	"log/slog"
	"os"

	app "github.com/rocketscienceinc/botarena/internal"
	"github.com/rocketscienceinc/botarena/internal/config"
)

// main - loads the arena config, builds the JSON logger and runs the arena until a signal arrives.
func main() {
	path, err := config.Path()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	conf, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", path, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: conf.SlogLevel()}))
	logger.Info("config loaded", "path", path, "board_sizes", conf.Tournament.BoardSizes, "redis", conf.Redis.Enabled)

	if err = app.RunApp(logger, conf); err != nil {
		logger.Error("arena stopped", "error", err)
		os.Exit(1)
	}
}
