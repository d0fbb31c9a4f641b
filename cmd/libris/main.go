// Command libris indexes book text and answers questions over it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/libris/internal/adapters/driving/cli"
	"github.com/custodia-labs/libris/internal/app"
	"github.com/custodia-labs/libris/internal/logger"
)

// Set via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var container *app.Container
	defer func() {
		if container == nil {
			return
		}
		if err := container.Close(); err != nil {
			logger.Warn("closing pipeline: %v", err)
		}
	}()

	cli.SetVersion(version)
	cli.SetServiceLoader(func(configPath string) (*cli.Services, error) {
		c, err := app.NewContainer(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
		container = c
		return &cli.Services{
			RAG:          c,
			Documents:    c,
			Tasks:        c,
			Settings:     c.Settings(),
			SupportsFile: c.SupportsFile,
			StartJanitor: c.StartJanitor,
		}, nil
	})

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
