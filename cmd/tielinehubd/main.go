package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tielinehub.dev/tielinehub/internal/obs"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "tielinehubd",
		Short: "Tie-line hub: virtual router over two physical crosspoints",
		Long: `tielinehubd projects two physical crosspoint routers (A and B) as one
virtual router, using a pool of tie-lines between them to carry inter-router
routes. It re-exports the result as a VideoHub-protocol device.

  tielinehubd serve                 # run the daemon, bridge included
  tielinehubd route 2 3             # route virtual output 2 from input 3
  tielinehubd tielines show         # print the tie-line configuration
  tielinehubd salvo run morning     # execute a saved salvo`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tielinehubd.yaml", "bootstrap YAML file")

	rootCmd.AddCommand(
		newServeCmd(),
		newRouteCmd(),
		newTieLinesCmd(),
		newSalvoCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mustLoadBootstrap() bootstrapConfig {
	cfg, err := loadBootstrap(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.LogLevel != "" {
		if err := obs.SetLevel(cfg.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "tielinehubd: %v\n", err)
		}
	}
	return cfg
}
