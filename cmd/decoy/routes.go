package main

import (
	"context"
	"fmt"
	"io"

	"github.com/raywall/decoy/tools/emulator"
	"github.com/spf13/cobra"
)

// NewRoutesCommand lista as rotas de cada servidor sem iniciá-los.
func NewRoutesCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Lista as rotas de cada servidor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}
}

func runRoutes(ctx context.Context, flags *Flags, out io.Writer) error {
	cfg, err := loadConfig(ctx, flags)
	if err != nil {
		return err
	}

	emu, err := emulator.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer emu.Shutdown(context.Background())

	for _, name := range emu.Names() {
		s, _ := emu.Server(name)
		fmt.Fprintf(out, "%s [%s]\n", name, s.Transport().Name())
		for _, r := range s.RouteTable() {
			fmt.Fprintf(out, "\t%s\t%s\t%s\n", r.Method, r.Path, r.RouteID)
		}
	}
	return nil
}
