// Package resolver expands nested component definitions into a single flat
// actor/connection graph. Composite boundaries resolve to identity mappings:
// a token crossing into a composite is not re-queued, the connection simply
// continues to the inner actor, so a composite behaves exactly like its
// manually flattened inner graph.
package resolver

import (
	"fmt"

	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/token"
)

// target is a resolved input endpoint plus a capacity hint carried from a
// boundary forwarding wire. The hint applies only when the wire that
// ultimately creates the connection leaves capacity unset.
type target struct {
	ref  PortRef
	hint int
}

// portMap is the external view of a resolved instance: where each declared
// port actually lands after flattening. A declared input may forward to
// several inner inputs; a declared output has exactly one inner source.
type portMap struct {
	inputs  map[string][]target
	outputs map[string]PortRef
	outHint map[string]int
}

type scope map[string]*portMap

type resolver struct {
	reg *component.Registry
	g   *FlatGraph
}

// Resolve flattens the application against the given registry. It returns a
// validated FlatGraph or the first structural error found; a graph with
// warnings is still runnable.
func Resolve(app *component.App, reg *component.Registry) (*FlatGraph, error) {
	r := &resolver{reg: reg, g: &FlatGraph{}}

	sc := scope{}
	for _, inst := range app.Instances {
		if _, dup := sc[inst.Name]; dup {
			return nil, fmt.Errorf("duplicate instance name %s", inst.Name)
		}
		pm, err := r.expandInstance("", inst, nil)
		if err != nil {
			return nil, err
		}
		sc[inst.Name] = pm
	}

	if err := r.wireScope(sc, app.Wires, nil, nil, nil); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	r.analyzeCapacityCycles()
	return r.g, nil
}

// expandInstance resolves one instance declaration. Primitives allocate an
// arena slot; composites recurse with a dot-extended namespace prefix and
// return only their boundary port map.
func (r *resolver) expandInstance(prefix string, inst component.Instance, bindings map[string]token.Token) (*portMap, error) {
	comp, ok := r.reg.Lookup(inst.Component)
	if !ok {
		return nil, fmt.Errorf("instance %s%s: %w: %s", prefix, inst.Name, component.ErrUnknownComponent, inst.Component)
	}

	qname := prefix + inst.Name
	params, err := r.bindArgs(qname, comp, inst, bindings)
	if err != nil {
		return nil, err
	}

	if comp.Primitive != nil {
		id := len(r.g.Actors)
		r.g.Actors = append(r.g.Actors, ActorSpec{Name: qname, Component: comp, Params: params})

		pm := &portMap{
			inputs:  make(map[string][]target, len(comp.Inputs)),
			outputs: make(map[string]PortRef, len(comp.Outputs)),
			outHint: map[string]int{},
		}
		for _, p := range comp.Inputs {
			pm.inputs[p.Name] = []target{{ref: PortRef{Actor: id, Port: p.Name}}}
		}
		for _, p := range comp.Outputs {
			pm.outputs[p.Name] = PortRef{Actor: id, Port: p.Name}
		}
		return pm, nil
	}

	// Composite: expand inner instances under the qualified prefix, then
	// resolve the body wires and boundary forwarding.
	inner := scope{}
	for _, child := range comp.Composite.Instances {
		if _, dup := inner[child.Name]; dup {
			return nil, fmt.Errorf("component %s: duplicate instance name %s", comp.Name, child.Name)
		}
		cpm, err := r.expandInstance(qname+".", child, params)
		if err != nil {
			return nil, err
		}
		inner[child.Name] = cpm
	}

	pm := &portMap{
		inputs:  map[string][]target{},
		outputs: map[string]PortRef{},
		outHint: map[string]int{},
	}
	if err := r.wireScope(inner, comp.Composite.Wires, comp, pm, params); err != nil {
		return nil, fmt.Errorf("component %s (instance %s): %w", comp.Name, qname, err)
	}

	// Every declared port must forward somewhere, otherwise tokens crossing
	// the boundary would vanish.
	for _, p := range comp.Inputs {
		if len(pm.inputs[p.Name]) == 0 {
			return nil, fmt.Errorf("component %s (instance %s): input %s: %w", comp.Name, qname, p.Name, component.ErrUnresolvedForward)
		}
	}
	for _, p := range comp.Outputs {
		if _, ok := pm.outputs[p.Name]; !ok {
			return nil, fmt.Errorf("component %s (instance %s): output %s: %w", comp.Name, qname, p.Name, component.ErrUnresolvedForward)
		}
	}
	return pm, nil
}

// bindArgs resolves instance arguments to literal tokens. References to an
// enclosing composite's parameter substitute the bound value. Bindings are
// immutable after this point.
func (r *resolver) bindArgs(qname string, comp *component.Component, inst component.Instance, bindings map[string]token.Token) (map[string]token.Token, error) {
	params := make(map[string]token.Token, len(comp.Params))
	for name, arg := range inst.Args {
		if !comp.HasParam(name) {
			return nil, fmt.Errorf("instance %s: %w: %s does not declare parameter %s", qname, component.ErrParameterMismatch, comp.Name, name)
		}
		switch {
		case arg.Literal != nil:
			params[name] = arg.Literal.Copy()
		case arg.Param != "":
			val, ok := bindings[arg.Param]
			if !ok {
				return nil, fmt.Errorf("instance %s: %w: unresolved parameter reference %s", qname, component.ErrParameterMismatch, arg.Param)
			}
			params[name] = val.Copy()
		default:
			return nil, fmt.Errorf("instance %s: %w: empty argument %s", qname, component.ErrParameterMismatch, name)
		}
	}
	for _, p := range comp.Params {
		if _, ok := params[p]; !ok {
			return nil, fmt.Errorf("instance %s: %w: missing argument %s", qname, component.ErrParameterMismatch, p)
		}
	}
	return params, nil
}

// wireScope processes connection statements within one scope. comp and pm
// are the enclosing composite and its boundary map; both are nil at the top
// level, where boundary references are illegal.
func (r *resolver) wireScope(sc scope, wires []component.Wire, comp *component.Component, pm *portMap, bindings map[string]token.Token) error {
	for _, w := range wires {
		// Boundary destination: inner.port > .out
		if w.To.Actor == "" {
			if comp == nil {
				return fmt.Errorf("%w: boundary port %s outside a composite", component.ErrUnresolvedForward, w.To)
			}
			if w.Literal != nil || w.Param != "" {
				return fmt.Errorf("%w: literal cannot feed boundary output %s", component.ErrUnresolvedForward, w.To)
			}
			if _, declared := comp.Output(w.To.Port); !declared {
				return fmt.Errorf("%w: %s declares no output %s", component.ErrUnresolvedForward, comp.Name, w.To.Port)
			}
			from, fromHint, err := resolveOut(sc, w.From)
			if err != nil {
				return err
			}
			if w.Capacity == 0 {
				w.Capacity = fromHint
			}
			if _, dup := pm.outputs[w.To.Port]; dup {
				return fmt.Errorf("boundary output %s: %w", w.To.Port, component.ErrMultipleProducers)
			}
			pm.outputs[w.To.Port] = from
			pm.outHint[w.To.Port] = w.Capacity
			continue
		}

		// Resolve the destination side to concrete input ports.
		targets, err := resolveIn(sc, w.To)
		if err != nil {
			return err
		}

		switch {
		case w.Literal != nil:
			for _, tgt := range targets {
				r.g.Injections = append(r.g.Injections, Injection{To: tgt.ref, Token: w.Literal.Copy()})
			}

		case w.Param != "":
			val, ok := bindings[w.Param]
			if !ok {
				return fmt.Errorf("%w: unresolved parameter reference %s", component.ErrParameterMismatch, w.Param)
			}
			for _, tgt := range targets {
				r.g.Injections = append(r.g.Injections, Injection{To: tgt.ref, Token: val.Copy()})
			}

		case w.From.Actor == "":
			// Boundary source: .in > inner.port
			if comp == nil {
				return fmt.Errorf("%w: boundary port %s outside a composite", component.ErrUnresolvedForward, w.From)
			}
			if _, declared := comp.Input(w.From.Port); !declared {
				return fmt.Errorf("%w: %s declares no input %s", component.ErrUnresolvedForward, comp.Name, w.From.Port)
			}
			for _, tgt := range targets {
				hint := tgt.hint
				if w.Capacity > 0 {
					hint = w.Capacity
				}
				pm.inputs[w.From.Port] = append(pm.inputs[w.From.Port], target{ref: tgt.ref, hint: hint})
			}

		default:
			from, fromHint, err := resolveOut(sc, w.From)
			if err != nil {
				return err
			}
			for _, tgt := range targets {
				capacity := w.Capacity
				if capacity == 0 {
					capacity = tgt.hint
				}
				if capacity == 0 {
					capacity = fromHint
				}
				r.g.Connections = append(r.g.Connections, ConnSpec{From: from, To: tgt.ref, Capacity: capacity})
			}
		}
	}
	return nil
}

func resolveOut(sc scope, ep component.Endpoint) (PortRef, int, error) {
	pm, ok := sc[ep.Actor]
	if !ok {
		return PortRef{}, 0, fmt.Errorf("connection source %s: unknown instance %s", ep, ep.Actor)
	}
	ref, ok := pm.outputs[ep.Port]
	if !ok {
		return PortRef{}, 0, fmt.Errorf("connection source %s: %w", ep, component.ErrUnknownPort)
	}
	return ref, pm.outHint[ep.Port], nil
}

func resolveIn(sc scope, ep component.Endpoint) ([]target, error) {
	if ep.Actor == "" {
		return nil, fmt.Errorf("%w: cannot pass tokens straight through boundary port %s", component.ErrUnresolvedForward, ep)
	}
	pm, ok := sc[ep.Actor]
	if !ok {
		return nil, fmt.Errorf("connection destination %s: unknown instance %s", ep, ep.Actor)
	}
	targets, ok := pm.inputs[ep.Port]
	if !ok {
		return nil, fmt.Errorf("connection destination %s: %w", ep, component.ErrUnknownPort)
	}
	return targets, nil
}

// validate enforces the structural invariants on the flattened graph: one
// producer per input port, and no dangling ports. Unconnected inputs with a
// declared default become one-shot injections of that default.
func (r *resolver) validate() error {
	producers := map[PortRef]int{}
	for _, c := range r.g.Connections {
		producers[c.To]++
	}
	for _, inj := range r.g.Injections {
		producers[inj.To]++
	}

	for ref, n := range producers {
		if n > 1 {
			return fmt.Errorf("actor %s port %s: %w (%d producers)", r.g.ActorName(ref.Actor), ref.Port, component.ErrMultipleProducers, n)
		}
	}

	connectedOut := map[PortRef]bool{}
	for _, c := range r.g.Connections {
		connectedOut[c.From] = true
	}

	for id, a := range r.g.Actors {
		for _, p := range a.Component.Inputs {
			ref := PortRef{Actor: id, Port: p.Name}
			if producers[ref] > 0 {
				continue
			}
			if p.Default != nil {
				r.g.Injections = append(r.g.Injections, Injection{To: ref, Token: p.Default.Copy()})
				continue
			}
			return fmt.Errorf("actor %s input %s: %w", a.Name, p.Name, component.ErrDanglingPort)
		}
		for _, p := range a.Component.Outputs {
			if !connectedOut[PortRef{Actor: id, Port: p.Name}] {
				return fmt.Errorf("actor %s output %s: %w (terminate unused outputs explicitly)", a.Name, p.Name, component.ErrDanglingPort)
			}
		}
	}
	return nil
}

// analyzeCapacityCycles reports a DeadlockRisk warning for every cycle made
// entirely of finite-capacity connections: if all queues in such a cycle
// fill up, every producer in it blocks forever. Advisory only; cycles are
// legal and unbounded feedback loops are fine.
func (r *resolver) analyzeCapacityCycles() {
	adj := make(map[int][]int)
	for _, c := range r.g.Connections {
		if c.Capacity > 0 {
			adj[c.From.Actor] = append(adj[c.From.Actor], c.To.Actor)
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int)
	stack := []int{}

	var visit func(n int)
	visit = func(n int) {
		color[n] = gray
		stack = append(stack, n)
		for _, m := range adj[n] {
			switch color[m] {
			case white:
				visit(m)
			case gray:
				// Found a back edge; report the cycle slice of the stack.
				var names []string
				for i := len(stack) - 1; i >= 0; i-- {
					names = append([]string{r.g.ActorName(stack[i])}, names...)
					if stack[i] == m {
						break
					}
				}
				r.g.Warnings = append(r.g.Warnings, Warning{
					Kind:   WarnDeadlockRisk,
					Detail: fmt.Sprintf("cycle with only bounded connections: %v", names),
				})
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}

	for n := range adj {
		if color[n] == white {
			visit(n)
		}
	}
}
