package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	libconfig "evcharge/backend/libs/config"
	"evcharge/backend/libs/logging"
	"evcharge/backend/services/charging-service/internal/app"
	"evcharge/backend/services/charging-service/internal/config"
	"evcharge/backend/services/charging-service/internal/invoice"
	"evcharge/backend/services/charging-service/internal/models"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "charging-service",
		Short: "EV charging dashboard backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			return os.Setenv(libconfig.PathEnv, configFile)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live status stream and session ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() // best-effort flush

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to initialize application", zap.Error(err))
				return err
			}
			defer application.Close()

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("application stopped with error", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func simulateCmd() *cobra.Command {
	var (
		power     float64
		mode      string
		battery   float64
		target    float64
		minutes   int
		startHour int
		baseRate  float64
		balance   float64
		html      bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Price one charge-up offline and print the invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			if startHour < 0 || startHour > 23 {
				return fmt.Errorf("start hour %d out of range", startHour)
			}

			tariff := cfg.Tariff()
			if baseRate > 0 {
				tariff.BaseRate = baseRate
			}
			now := time.Now().In(loc)
			start := time.Date(now.Year(), now.Month(), now.Day(), startHour, 0, 0, 0, loc)

			logger, err := logging.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() // best-effort flush

			result, err := app.Simulate(cmd.Context(), app.SimulationInput{
				StationPowerKW: power,
				Mode:           models.ChargingMode(mode),
				BatteryStart:   battery,
				TargetBattery:  target,
				Duration:       time.Duration(minutes) * time.Minute,
				Start:          start,
				Tariff:         tariff,
				Balance:        balance,
			}, logger)
			if err != nil {
				return err
			}

			if html {
				page, err := invoice.RenderHTML(result.Invoice, cfg.Company)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), page)
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().Float64Var(&power, "power", 22, "station power output in kW")
	cmd.Flags().StringVar(&mode, "mode", string(models.ChargingModeNormal), "charging mode: fast, normal or eco")
	cmd.Flags().Float64Var(&battery, "battery", 45, "battery level at start (%)")
	cmd.Flags().Float64Var(&target, "target", 80, "target battery level (%)")
	cmd.Flags().IntVar(&minutes, "minutes", 30, "charging duration in minutes")
	cmd.Flags().IntVar(&startHour, "start-hour", 14, "local hour the session starts")
	cmd.Flags().Float64Var(&baseRate, "base-rate", 0, "override the configured base rate")
	cmd.Flags().Float64Var(&balance, "balance", 0, "starting wallet balance (defaults to the top-up maximum)")
	cmd.Flags().BoolVar(&html, "html", false, "print the invoice as HTML instead of JSON")
	return cmd
}
