package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/raywall/decoy/pkg/logger"
	"github.com/raywall/decoy/pkg/observability"
	"github.com/raywall/decoy/tools/emulator"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewServeCommand sobe os servidores da configuração até SIGINT/SIGTERM.
func NewServeCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Inicia os servidores declarados",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx, flags)
			if err != nil {
				return err
			}

			log.Logger = logger.Configure(cfg.Logging)

			provider, err := observability.SetupMetrics(cfg.Metrics, "service:decoy")
			if err != nil {
				return err
			}
			defer provider.Close()

			emu, err := emulator.New(ctx, cfg,
				emulator.WithLogger(log.Logger),
				emulator.WithMetrics(provider),
			)
			if err != nil {
				return err
			}
			return emu.Run(ctx)
		},
	}
}
