// Package virtual implements the pure projection layer that hides
// tie-line ports and presents both physical routers as a single virtual
// matrix (spec 4.2). A Router value is rebuilt from scratch on every
// call to Build; it never mutates the states or configuration it is
// given and holds no state of its own beyond the derived mapping.
package virtual

import (
	"sort"

	"tielinehub.dev/tielinehub/router"
)

// Port identifies one virtual index's owning physical port.
type Port struct {
	Router ID
	Index  int
}

// ID names a physical router within the virtual projection. It is an
// alias of router.ID, so this package depends only on the shared data
// model and not on the controller layer.
type ID = router.ID

const (
	A = router.RouterA
	B = router.RouterB
)

// Router is the derived virtual matrix: a snapshot built from two
// physical router states and the current tie-line configuration and
// runtime state. Never mutated after Build returns it.
type Router struct {
	Inputs  int
	Outputs int

	// Routing maps virtual output -> virtual input. Absence means
	// undefined (spec 4.2: undefined physical routing maps to undefined
	// virtual routing).
	Routing map[int]int

	InputLabels  map[int]string
	OutputLabels map[int]string
	OutputLocks  map[int]router.Lock

	// inputPorts/outputPorts give the owning (router, physical index) for
	// each virtual index, in virtual-index order.
	inputPorts  []Port
	outputPorts []Port

	// physicalToVirtual inverts inputPorts/outputPorts.
	physicalInputToVirtual  map[ID]map[int]int
	physicalOutputToVirtual map[ID]map[int]int
}

// TieLineLookup resolves a sink physical port (on the router a tie-line
// feeds into) to the tie-line record currently feeding it, so Build can
// trace an inter-router hop back to its true source. Implemented by the
// tie-line engine; kept as an interface here to avoid a import cycle.
type TieLineLookup interface {
	// SourceOfSink returns the physical input that is the ultimate
	// source for an in-use tie-line whose sink lands on (router, port),
	// and whether such a tie-line was found and in-use.
	SourceOfSink(r ID, port int) (srcRouter ID, srcPort int, ok bool)
}

// Build derives the virtual matrix from both routers' mirrored state,
// the tie-line configuration, and the engine's current runtime state.
func Build(stateA, stateB *router.State, cfg router.Config, ties TieLineLookup) *Router {
	excl := cfg.Excluded()

	v := &Router{
		Routing:                 map[int]int{},
		InputLabels:             map[int]string{},
		OutputLabels:            map[int]string{},
		OutputLocks:             map[int]router.Lock{},
		physicalInputToVirtual:  map[ID]map[int]int{A: {}, B: {}},
		physicalOutputToVirtual: map[ID]map[int]int{A: {}, B: {}},
	}

	v.inputPorts = append(v.inputPorts, visiblePorts(A, stateA.Inputs, excl.AInputs)...)
	v.inputPorts = append(v.inputPorts, visiblePorts(B, stateB.Inputs, excl.BInputs)...)
	v.outputPorts = append(v.outputPorts, visiblePorts(A, stateA.Outputs, excl.AOutputs)...)
	v.outputPorts = append(v.outputPorts, visiblePorts(B, stateB.Outputs, excl.BOutputs)...)

	v.Inputs = len(v.inputPorts)
	v.Outputs = len(v.outputPorts)

	for vi, p := range v.inputPorts {
		v.physicalInputToVirtual[p.Router][p.Index] = vi
	}
	for vo, p := range v.outputPorts {
		v.physicalOutputToVirtual[p.Router][p.Index] = vo
	}

	states := map[ID]*router.State{A: stateA, B: stateB}
	for vo, p := range v.outputPorts {
		s := states[p.Router]
		q, ok := s.Routing[p.Index]
		if !ok {
			continue
		}

		sinkExcluded := (p.Router == A && excl.AInputs[q]) || (p.Router == B && excl.BInputs[q])
		if !sinkExcluded {
			if vi, ok := v.physicalInputToVirtual[p.Router][q]; ok {
				v.Routing[vo] = vi
			}
			continue
		}

		if ties == nil {
			continue
		}
		srcRouter, srcPort, ok := ties.SourceOfSink(p.Router, q)
		if !ok {
			continue
		}
		if vi, ok := v.physicalInputToVirtual[srcRouter][srcPort]; ok {
			v.Routing[vo] = vi
		}
	}

	for vi, p := range v.inputPorts {
		s := states[p.Router]
		v.InputLabels[vi] = s.InputLabel(p.Index)
	}
	for vo, p := range v.outputPorts {
		s := states[p.Router]
		v.OutputLabels[vo] = s.OutputLabel(p.Index)
		v.OutputLocks[vo] = s.OutputLock(p.Index)
	}

	return v
}

func visiblePorts(id ID, count int, excluded map[int]bool) []Port {
	ports := make([]Port, 0, count)
	for i := 0; i < count; i++ {
		if excluded[i] {
			continue
		}
		ports = append(ports, Port{Router: id, Index: i})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Index < ports[j].Index })
	return ports
}

// ResolveInput returns the owning (router, physicalIndex) for a virtual
// input index, or ok=false if out of range.
func (v *Router) ResolveInput(vi int) (id ID, physical int, ok bool) {
	if vi < 0 || vi >= len(v.inputPorts) {
		return "", 0, false
	}
	p := v.inputPorts[vi]
	return p.Router, p.Index, true
}

// ResolveOutput returns the owning (router, physicalIndex) for a virtual
// output index, or ok=false if out of range.
func (v *Router) ResolveOutput(vo int) (id ID, physical int, ok bool) {
	if vo < 0 || vo >= len(v.outputPorts) {
		return "", 0, false
	}
	p := v.outputPorts[vo]
	return p.Router, p.Index, true
}

// PhysicalInputToVirtual looks up the virtual input index for a physical
// (router, index) pair, or ok=false when that port is excluded or out of
// range (a tie-line port, for instance).
func (v *Router) PhysicalInputToVirtual(id ID, physical int) (vi int, ok bool) {
	vi, ok = v.physicalInputToVirtual[id][physical]
	return vi, ok
}

// PhysicalOutputToVirtual looks up the virtual output index for a
// physical (router, index) pair.
func (v *Router) PhysicalOutputToVirtual(id ID, physical int) (vo int, ok bool) {
	vo, ok = v.physicalOutputToVirtual[id][physical]
	return vo, ok
}
