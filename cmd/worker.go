/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quoteshare/apiserver/config"
	"github.com/quoteshare/apiserver/internal/server"
	"github.com/quoteshare/apiserver/internal/services"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Pre-render share cards for newly created quotes",
	Long: `Consumes quotes.created events from the configured broker (MQ_BACKEND) and
renders each quote's share card into object storage (STORAGE_BACKEND).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := server.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.MQ == nil {
			return errors.New("MQ_BACKEND is required for the worker")
		}
		if app.Storage == nil {
			logger.Warn("STORAGE_BACKEND is not set; rendered cards will not be cached")
		}

		logger.Info("worker started", "channel", services.QuoteCreatedChannel)
		err = app.MQ.Subscribe(ctx, services.QuoteCreatedChannel, services.NewShareCardWarmer(app.Cards, logger))
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscribe %s: %w", services.QuoteCreatedChannel, err)
		}
		logger.Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
