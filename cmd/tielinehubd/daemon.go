package main

import (
	"context"
	"fmt"

	"tielinehub.dev/tielinehub/orchestrator"
	"tielinehub.dev/tielinehub/router"
)

// newOrchestrator builds an Orchestrator from cfg's tie-line
// configuration and, if connect is true, connects whichever of router A
// / router B have endpoints configured. Ad hoc one-shot commands
// (route, salvo run) pass connect=true so they have a live session for
// the duration of the command; serve always connects.
func newOrchestrator(ctx context.Context, cfg bootstrapConfig, connect bool) (*orchestrator.Orchestrator, error) {
	o := orchestrator.New(cfg.TieLines.toRouterConfig())

	if !connect {
		return o, nil
	}

	if cfg.RouterA.configured() {
		if err := o.ConnectRouter(ctx, router.RouterA, cfg.RouterA.toConnectOptions()); err != nil {
			o.Close()
			return nil, fmt.Errorf("tielinehubd: connect router A: %w", err)
		}
	}
	if cfg.RouterB.configured() {
		if err := o.ConnectRouter(ctx, router.RouterB, cfg.RouterB.toConnectOptions()); err != nil {
			o.Close()
			return nil, fmt.Errorf("tielinehubd: connect router B: %w", err)
		}
	}
	return o, nil
}
