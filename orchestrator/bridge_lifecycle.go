package orchestrator

import (
	"tielinehub.dev/tielinehub/bridge"
	"tielinehub.dev/tielinehub/internal/obs"
)

// StartBridge constructs the northbound bridge server on first use and
// opens its listener. Spec section 6: startBridge().
func (o *Orchestrator) StartBridge(addr string) error {
	o.bridgeMu.Lock()
	if o.bridgeSrv == nil {
		o.bridgeSrv = bridge.New(o)
	}
	srv := o.bridgeSrv
	o.bridgeMu.Unlock()

	if err := srv.Start(addr); err != nil {
		return err
	}
	obs.Log.WithField("addr", addr).Info("orchestrator: bridge started")
	return nil
}

// StopBridge closes the bridge listener and disconnects every client.
// Spec section 6: stopBridge(). A no-op if the bridge was never started.
func (o *Orchestrator) StopBridge() error {
	o.bridgeMu.Lock()
	srv := o.bridgeSrv
	o.bridgeMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Stop()
}

// GetBridgeStatus reports whether the bridge is running. Spec section 6:
// getBridgeStatus().
func (o *Orchestrator) GetBridgeStatus() bridge.Status {
	o.bridgeMu.Lock()
	srv := o.bridgeSrv
	o.bridgeMu.Unlock()
	if srv == nil {
		return bridge.Status{}
	}
	return srv.GetStatus()
}
