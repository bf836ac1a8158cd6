package orchestrator

import (
	"fmt"

	"tielinehub.dev/tielinehub/engine"
	"tielinehub.dev/tielinehub/router"
)

// TieLineState is the upstream-visible runtime state of both tie-line
// pools (spec section 6: getTieLineState()).
type TieLineState struct {
	AToB []engine.Record
	BToA []engine.Record
}

// GetTieLineConfig returns the current tie-line configuration.
func (o *Orchestrator) GetTieLineConfig() router.Config {
	return o.eng.Config()
}

// SetTieLineConfig validates and applies a new tie-line configuration,
// reinitializing both pools and, if both routers are connected, running
// reconstruction (spec 4.3's "Configuration change" rule).
func (o *Orchestrator) SetTieLineConfig(cfg router.Config) error {
	if err := o.eng.UpdateConfig(cfg); err != nil {
		return err
	}
	o.scheduleRebuild()
	return nil
}

// AddTieLine appends one tie-line port pair to the named direction
// ("aToB" or "bToA") and applies the resulting configuration.
func (o *Orchestrator) AddTieLine(dir string, port router.TiePort) error {
	cfg := o.eng.Config()
	switch dir {
	case "aToB":
		cfg.AToB = append(append([]router.TiePort(nil), cfg.AToB...), port)
	case "bToA":
		cfg.BToA = append(append([]router.TiePort(nil), cfg.BToA...), port)
	default:
		return fmt.Errorf("%w: unknown tie-line direction %q", router.ErrConfigInvalid, dir)
	}
	return o.SetTieLineConfig(cfg)
}

// RemoveTieLine removes the tie-line at idx from the named direction and
// applies the resulting configuration.
func (o *Orchestrator) RemoveTieLine(dir string, idx int) error {
	cfg := o.eng.Config()
	switch dir {
	case "aToB":
		if idx < 0 || idx >= len(cfg.AToB) {
			return fmt.Errorf("%w: tie-line index %d out of range", router.ErrConfigInvalid, idx)
		}
		cfg.AToB = append(append([]router.TiePort(nil), cfg.AToB[:idx]...), cfg.AToB[idx+1:]...)
	case "bToA":
		if idx < 0 || idx >= len(cfg.BToA) {
			return fmt.Errorf("%w: tie-line index %d out of range", router.ErrConfigInvalid, idx)
		}
		cfg.BToA = append(append([]router.TiePort(nil), cfg.BToA[:idx]...), cfg.BToA[idx+1:]...)
	default:
		return fmt.Errorf("%w: unknown tie-line direction %q", router.ErrConfigInvalid, dir)
	}
	return o.SetTieLineConfig(cfg)
}

// GetTieLineState returns a snapshot of both pools' runtime records.
func (o *Orchestrator) GetTieLineState() TieLineState {
	return TieLineState{AToB: o.eng.AToB(), BToA: o.eng.BToA()}
}
