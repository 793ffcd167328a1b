package main

import (
	"context"
	"fmt"

	"github.com/raywall/decoy/pkg/config"
	"github.com/raywall/decoy/pkg/envloader"
	"github.com/spf13/cobra"
)

// Flags são os parâmetros comuns a todos os comandos. Os valores padrão vêm
// das variáveis de ambiente.
type Flags struct {
	Config    string `env:"DECOY_CONFIG" envDefault:"decoy.yaml"`
	Transport string `env:"DECOY_TRANSPORT"`
	Port      int    `env:"DECOY_PORT"`
	LogLevel  string `env:"DECOY_LOG_LEVEL"`
}

// NewRootCommand cria o comando raiz do decoy.
func NewRootCommand() *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:           "decoy",
		Short:         "Servidores HTTP falsos para testes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// flags explícitas têm precedência sobre o ambiente
			env := &Flags{}
			if err := envloader.Load(env); err != nil {
				return err
			}
			pf := cmd.Flags()
			if !pf.Changed("config") {
				flags.Config = env.Config
			}
			if !pf.Changed("transport") {
				flags.Transport = env.Transport
			}
			if !pf.Changed("port") {
				flags.Port = env.Port
			}
			if !pf.Changed("log-level") {
				flags.LogLevel = env.LogLevel
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.Config, "config", "c", "decoy.yaml", "arquivo de configuração (caminho, file:// ou s3://)")
	cmd.PersistentFlags().StringVar(&flags.Transport, "transport", "", "sobrescreve o transporte de todos os servidores (mux|box)")
	cmd.PersistentFlags().IntVarP(&flags.Port, "port", "p", 0, "sobrescreve a porta; exige um único servidor")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "sobrescreve o nível de log")

	cmd.AddCommand(NewServeCommand(flags))
	cmd.AddCommand(NewRoutesCommand(flags))
	cmd.AddCommand(NewValidateCommand(flags))

	return cmd
}

// loadConfig carrega a configuração e aplica as sobrescritas das flags.
func loadConfig(ctx context.Context, flags *Flags) (*config.Config, error) {
	cfg, err := config.Load(ctx, flags.Config)
	if err != nil {
		return nil, err
	}

	if flags.Transport != "" {
		for i := range cfg.Servers {
			cfg.Servers[i].Transport = flags.Transport
		}
	}
	if flags.Port != 0 {
		if len(cfg.Servers) != 1 {
			return nil, fmt.Errorf("--port exige um único servidor, configuração tem %d", len(cfg.Servers))
		}
		cfg.Servers[0].Port = flags.Port
	}
	if flags.LogLevel != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.Level = flags.LogLevel
	}
	return cfg, nil
}
