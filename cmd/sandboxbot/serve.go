package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/sandboxbot/internal/app"
	"github.com/deusflow/sandboxbot/internal/config"
	"github.com/deusflow/sandboxbot/internal/logger"
)

func serveCMD() *cobra.Command {
	var catalogPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				if errors.Is(err, config.ErrMissingToken) {
					logger.Error("TELEGRAM_TOKEN is not set, the bot cannot start")
				}
				return err
			}
			if catalogPath != "" {
				cfg.CatalogPath = catalogPath
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting sandboxbot", "version", version, "monitoring", cfg.EnableHTTP)
			if err := app.Serve(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("sandboxbot stopped")
			return nil
		},
	}
	serve.Flags().StringVar(&catalogPath, "catalog", "", "catalog file (default is the embedded catalog)")
	return serve
}
