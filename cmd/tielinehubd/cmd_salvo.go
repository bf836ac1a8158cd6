package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tielinehub.dev/tielinehub/engine"
)

func newSalvoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "salvo",
		Short: "Run a saved salvo (batch of virtual routes)",
	}
	cmd.AddCommand(newSalvoRunCmd())
	return cmd
}

func newSalvoRunCmd() *cobra.Command {
	var level int

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Execute every route in a named salvo from the state file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mustLoadBootstrap()
			salvos, err := loadSalvos(cfg.StatePath)
			if err != nil {
				return fmt.Errorf("tielinehubd: load salvos: %w", err)
			}

			var routes []engine.VirtualRoute
			found := false
			for _, s := range salvos {
				if s.Name == args[0] {
					found = true
					for _, r := range s.Routes {
						routes = append(routes, engine.VirtualRoute{Output: r.Output, Input: r.Input})
					}
					break
				}
			}
			if !found {
				return fmt.Errorf("tielinehubd: no salvo named %q in %s", args[0], cfg.StatePath)
			}

			ctx := context.Background()
			o, err := newOrchestrator(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer o.Close()

			results, err := o.ExecuteSalvo(ctx, routes, level)
			if err != nil {
				return fmt.Errorf("tielinehubd: salvo %q: %w", args[0], err)
			}
			for _, r := range results {
				status := "ok"
				if r.PartialFailure {
					status = "partial failure"
				}
				fmt.Printf("output %d <- input %d: %s\n", r.Output, r.Input, status)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "level index for multi-level routers")
	return cmd
}
