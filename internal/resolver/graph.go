package resolver

import (
	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/token"
)

// FlatGraph is the fully expanded actor/connection graph the runtime
// executes. Actors and connections live in flat index-addressed slices so
// feedback cycles need no special ownership handling: a connection refers to
// its endpoints by actor id, never by pointer.
type FlatGraph struct {
	Actors      []ActorSpec
	Connections []ConnSpec
	Injections  []Injection
	Warnings    []Warning
}

// ActorSpec describes one primitive actor surviving flattening. Composite
// components never appear here; they dissolve into their inner actors.
type ActorSpec struct {
	// Name is the dot-namespaced qualified instance name, e.g. "src.prep".
	Name      string
	Component *component.Component
	Params    map[string]token.Token
}

// PortRef addresses one port on one actor in the arena.
type PortRef struct {
	Actor int
	Port  string
}

// ConnSpec is one directed edge: output port to input port. Capacity zero
// means unbounded.
type ConnSpec struct {
	From     PortRef
	To       PortRef
	Capacity int
}

// Injection delivers exactly one token to an input port before normal
// scheduling begins. Literals on the left of a connection statement and
// defaulted unconnected inputs both resolve to injections; the injection
// counts as the port's single producer.
type Injection struct {
	To    PortRef
	Token token.Token
}

// Warning kinds reported by static analysis. Warnings are advisory and never
// block the graph from running.
const (
	WarnDeadlockRisk = "DeadlockRisk"
)

// Warning is an advisory finding from resolution.
type Warning struct {
	Kind   string
	Detail string
}

// ActorName returns the qualified name for an actor id, for diagnostics.
func (g *FlatGraph) ActorName(id int) string {
	if id < 0 || id >= len(g.Actors) {
		return "?"
	}
	return g.Actors[id].Name
}
