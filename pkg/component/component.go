package component

import (
	"fmt"

	"github.com/aretw0/weft/pkg/actor"
	"github.com/aretw0/weft/pkg/token"
)

// PortSpec describes one named, directional attachment point declared by a
// component.
type PortSpec struct {
	Name string
	// Default, when set on an input port, is injected as a one-shot token if
	// the port is left unconnected instead of failing validation.
	Default *token.Token
	// Required marks the port as part of the firing rule. Most actors need a
	// token on every input before firing; an actor that supports partial
	// input sets declares the optional ports with Required=false.
	Required bool
}

// In declares a required input port.
func In(name string) PortSpec { return PortSpec{Name: name, Required: true} }

// InDefault declares an input port with a default literal.
func InDefault(name string, def token.Token) PortSpec {
	return PortSpec{Name: name, Default: &def, Required: true}
}

// Optional declares an input port excluded from the firing rule.
func Optional(name string) PortSpec { return PortSpec{Name: name} }

// Out declares an output port.
func Out(name string) PortSpec { return PortSpec{Name: name} }

// Component is a named template from which actors are instantiated. Exactly
// one of Primitive or Composite is set; the variant is fixed at registration
// and resolved once at graph build time.
type Component struct {
	Name    string
	Params  []string
	Inputs  []PortSpec
	Outputs []PortSpec

	Primitive *Primitive
	Composite *Composite
}

// Primitive delegates firing to an external implementation.
type Primitive struct {
	// New constructs a fresh implementation instance. Called once per actor
	// at build time, and again if the fault policy restarts the actor.
	New actor.Factory
}

// Composite holds an inner graph exposed only through the declared ports.
type Composite struct {
	Instances []Instance
	Wires     []Wire
}

// Instance declares one named actor inside a composite body or at the top
// level of an application.
type Instance struct {
	Name      string
	Component string
	Args      map[string]Argument
}

// Argument is a parameter binding: a literal value, or a reference to a
// formal parameter of the enclosing composite.
type Argument struct {
	Literal *token.Token
	Param   string
}

// Lit builds a literal argument.
func Lit(t token.Token) Argument { return Argument{Literal: &t} }

// Ref builds an argument forwarding an enclosing parameter.
func Ref(param string) Argument { return Argument{Param: param} }

// Endpoint names one side of a wire. An empty Actor refers to a boundary
// port of the enclosing composite (the `.port` form in scripts).
type Endpoint struct {
	Actor string
	Port  string
}

func (e Endpoint) String() string {
	if e.Actor == "" {
		return "." + e.Port
	}
	return e.Actor + "." + e.Port
}

// Boundary names a declared port of the enclosing composite.
func Boundary(port string) Endpoint { return Endpoint{Port: port} }

// Port names a port on a sibling actor instance.
func Port(actor, port string) Endpoint { return Endpoint{Actor: actor, Port: port} }

// Wire is one connection statement. The source is exactly one of From, a
// Literal (one-shot injected token) or a Param reference resolved against the
// enclosing composite's bindings.
type Wire struct {
	Literal *token.Token
	Param   string
	From    Endpoint
	To      Endpoint
	// Capacity bounds the connection queue; zero means unbounded.
	Capacity int
}

// Connect wires an output port to an input port.
func Connect(from, to Endpoint) Wire { return Wire{From: from, To: to} }

// Inject wires a one-shot literal token into an input port.
func Inject(t token.Token, to Endpoint) Wire { return Wire{Literal: &t, To: to} }

// App is a top-level graph description: the root instances and the wires
// between them. It is what an external loader hands to the resolver.
type App struct {
	Name      string
	Instances []Instance
	Wires     []Wire
}

// Input returns the input PortSpec with the given name.
func (c *Component) Input(name string) (PortSpec, bool) {
	for _, p := range c.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// Output returns the output PortSpec with the given name.
func (c *Component) Output(name string) (PortSpec, bool) {
	for _, p := range c.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// HasParam reports whether name is a declared formal parameter.
func (c *Component) HasParam(name string) bool {
	for _, p := range c.Params {
		if p == name {
			return true
		}
	}
	return false
}

// Validate checks the template's own declarations for internal consistency.
// Graph-level validation (fan-in, dangling ports) happens after flattening.
func (c *Component) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("component has no name")
	}
	if (c.Primitive == nil) == (c.Composite == nil) {
		return fmt.Errorf("component %s: exactly one of primitive or composite body required", c.Name)
	}
	seen := map[string]bool{}
	for _, p := range append(append([]PortSpec{}, c.Inputs...), c.Outputs...) {
		if p.Name == "" {
			return fmt.Errorf("component %s: unnamed port", c.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("component %s: duplicate port %s", c.Name, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
