package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tielinehub.dev/tielinehub/internal/obs"
	"tielinehub.dev/tielinehub/orchestrator"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the hub daemon: connect configured routers and start the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mustLoadBootstrap()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			o, err := newOrchestrator(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer o.Close()

			if cfg.BridgeAddr != "" {
				if err := o.StartBridge(cfg.BridgeAddr); err != nil {
					return fmt.Errorf("tielinehubd: start bridge: %w", err)
				}
				obs.Log.WithField("addr", cfg.BridgeAddr).Info("tielinehubd: bridge listening")
			}

			unsub := o.SubscribeEvents(func(e orchestrator.Event) {
				switch e.Kind {
				case orchestrator.EventRouterConnected, orchestrator.EventRouterDisconnected:
					obs.WithRouter(string(e.Router)).Info("tielinehubd: ", e.Kind)
				case orchestrator.EventRouterReconnecting:
					obs.WithRouter(string(e.Router)).Warnf("tielinehubd: reconnecting, attempt %d", e.Attempt)
				case orchestrator.EventRouterError:
					obs.WithRouter(string(e.Router)).WithError(e.Err).Warn("tielinehubd: router error")
				}
			})
			defer unsub()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			obs.Log.Info("tielinehubd: shutting down")
			return nil
		},
	}
}
