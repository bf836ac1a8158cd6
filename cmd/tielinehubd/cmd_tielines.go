package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tielinehub.dev/tielinehub/router"
)

func newTieLinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tielines",
		Short: "Inspect or edit the tie-line configuration",
	}
	cmd.AddCommand(newTieLinesShowCmd(), newTieLinesAddCmd(), newTieLinesRemoveCmd())
	return cmd
}

func newTieLinesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configured and current tie-line pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mustLoadBootstrap()
			o, err := newOrchestrator(context.Background(), cfg, false)
			if err != nil {
				return err
			}
			defer o.Close()

			rc := o.GetTieLineConfig()
			fmt.Println("aToB:")
			for i, p := range rc.AToB {
				fmt.Printf("  [%d] output=%d input=%d\n", i, p.Output, p.Input)
			}
			fmt.Println("bToA:")
			for i, p := range rc.BToA {
				fmt.Printf("  [%d] output=%d input=%d\n", i, p.Output, p.Input)
			}
			return nil
		},
	}
}

func newTieLinesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <aToB|bToA> <output> <input>",
		Short: "Append a tie-line port pair to a direction",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("tielinehubd: invalid output %q: %w", args[1], err)
			}
			input, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("tielinehubd: invalid input %q: %w", args[2], err)
			}

			cfg := mustLoadBootstrap()
			o, err := newOrchestrator(context.Background(), cfg, true)
			if err != nil {
				return err
			}
			defer o.Close()

			if err := o.AddTieLine(args[0], router.TiePort{Output: output, Input: input}); err != nil {
				return fmt.Errorf("tielinehubd: add tie-line: %w", err)
			}
			fmt.Printf("added %s tie-line output=%d input=%d\n", args[0], output, input)
			return nil
		},
	}
}

func newTieLinesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <aToB|bToA> <index>",
		Short: "Remove a tie-line port pair from a direction by index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("tielinehubd: invalid index %q: %w", args[1], err)
			}

			cfg := mustLoadBootstrap()
			o, err := newOrchestrator(context.Background(), cfg, true)
			if err != nil {
				return err
			}
			defer o.Close()

			if err := o.RemoveTieLine(args[0], idx); err != nil {
				return fmt.Errorf("tielinehubd: remove tie-line: %w", err)
			}
			fmt.Printf("removed %s tie-line [%d]\n", args[0], idx)
			return nil
		},
	}
}
