package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/raywall/decoy/tools/emulator"
	"github.com/spf13/cobra"
)

// NewValidateCommand valida a configuração, incluindo a compilação das
// expressões CEL e a abertura das coleções.
func NewValidateCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Valida a configuração sem iniciar os servidores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}
}

func runValidate(ctx context.Context, flags *Flags, out io.Writer) error {
	cfg, err := loadConfig(ctx, flags)
	if err != nil {
		return err
	}

	emu, err := emulator.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := emu.Shutdown(context.Background()); err != nil {
		return err
	}

	names := emu.Names()
	fmt.Fprintf(out, "configuração válida: %d servidor(es): %s\n", len(names), strings.Join(names, ", "))
	return nil
}
