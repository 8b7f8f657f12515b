/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quoteshare/apiserver/config"
	"github.com/quoteshare/apiserver/internal/server"
	"github.com/quoteshare/apiserver/internal/services"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the built-in quotes without a contributor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		app, err := server.NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.Quotes.Seed(cmd.Context(), services.DefaultSeedQuotes)
		if err != nil {
			return fmt.Errorf("seed failed after %d quotes: %w", n, err)
		}
		logger.Info("seeded quotes", "count", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
