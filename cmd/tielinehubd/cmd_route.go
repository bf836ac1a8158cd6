package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRouteCmd() *cobra.Command {
	var level int

	cmd := &cobra.Command{
		Use:   "route <output> <input>",
		Short: "Execute one virtual route against the configured routers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vOut, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("tielinehubd: invalid output index %q: %w", args[0], err)
			}
			vIn, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("tielinehubd: invalid input index %q: %w", args[1], err)
			}

			cfg := mustLoadBootstrap()
			ctx := context.Background()
			o, err := newOrchestrator(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer o.Close()

			result, err := o.SetVirtualRoute(ctx, vOut, vIn, level)
			if err != nil {
				return fmt.Errorf("tielinehubd: route: %w", err)
			}
			if result.PartialFailure {
				return fmt.Errorf("tielinehubd: route output %d from input %d only partially applied", vOut, vIn)
			}
			fmt.Printf("routed output %d from input %d (reused tie-line: %v)\n", result.Output, result.Input, result.Reused)
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "level index for multi-level routers")
	return cmd
}
