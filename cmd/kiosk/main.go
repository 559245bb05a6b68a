package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/kiosk-api/internal/config"
	"github.com/jwalitptl/kiosk-api/internal/service/appointment"
	"github.com/jwalitptl/kiosk-api/internal/service/verification"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "kiosk",
		Short: "Clinic check-in and payment kiosk",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("KIOSK_CONFIG"), "path to config.yaml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(resolveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <code>",
		Short: "Check an appointment code against the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			deps := newBackendDeps(cfg, metrics.New("kiosk_cli"))
			svc := verification.NewService(deps.client, deps.known, cfg.Kiosk.CodeLength, deps.logger, deps.metrics)

			ok, err := svc.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: verified=%t\n", args[0], ok)
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <code>",
		Short: "Print the patient an appointment code resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			deps := newBackendDeps(cfg, metrics.New("kiosk_cli"))
			svc := appointment.NewService(deps.client, deps.fallback, cfg.Backend.RoomCacheTTL, deps.logger, deps.metrics)

			patient, err := svc.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(patient)
		},
	}
}
