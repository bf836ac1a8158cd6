package router

import "fmt"

// TiePort describes one physical cable of a tie-line pool.
//
// For an A->B entry, Output is the physical output on router A the cable
// is plugged into, and Input is the physical input on router B it feeds.
// For a B->A entry the roles are reversed (Output on B, Input on A).
type TiePort struct {
	Output int
	Input  int
}

// Config is the tie-line configuration: the set of physical cables
// connecting the two routers. Ports configured here are hidden from the
// virtual projection (spec section 3).
type Config struct {
	AToB []TiePort
	BToA []TiePort
}

// Validate checks the invariants spec section 3 requires of a tie-line
// configuration: within one direction, no output index repeats and no
// input index repeats. The same physical port may legally appear as both
// an A->B output and a B->A input (they are different physical ports on
// different routers), so cross-direction reuse is never rejected here.
func (c Config) Validate() error {
	if err := validateDirection(c.AToB); err != nil {
		return fmt.Errorf("%w: aToB: %s", ErrConfigInvalid, err)
	}
	if err := validateDirection(c.BToA); err != nil {
		return fmt.Errorf("%w: bToA: %s", ErrConfigInvalid, err)
	}
	return nil
}

func validateDirection(ports []TiePort) error {
	outputs := make(map[int]bool, len(ports))
	inputs := make(map[int]bool, len(ports))
	for _, p := range ports {
		if outputs[p.Output] {
			return fmt.Errorf("duplicate output %d", p.Output)
		}
		outputs[p.Output] = true
		if inputs[p.Input] {
			return fmt.Errorf("duplicate input %d", p.Input)
		}
		inputs[p.Input] = true
	}
	return nil
}

// ExcludedPorts computes the four port-exclusion sets spec section 4.2
// names: physical ports consumed by tie-lines, which must never appear
// in the virtual projection.
type ExcludedPorts struct {
	AOutputs map[int]bool // A->B sources
	BOutputs map[int]bool // B->A sources
	AInputs  map[int]bool // B->A sinks
	BInputs  map[int]bool // A->B sinks
}

// Excluded computes the exclusion sets for this configuration.
func (c Config) Excluded() ExcludedPorts {
	e := ExcludedPorts{
		AOutputs: make(map[int]bool, len(c.AToB)),
		BOutputs: make(map[int]bool, len(c.BToA)),
		AInputs:  make(map[int]bool, len(c.BToA)),
		BInputs:  make(map[int]bool, len(c.AToB)),
	}
	for _, p := range c.AToB {
		e.AOutputs[p.Output] = true
		e.BInputs[p.Input] = true
	}
	for _, p := range c.BToA {
		e.BOutputs[p.Output] = true
		e.AInputs[p.Input] = true
	}
	return e
}
