package component

import "errors"

// Build-time failures. Resolution errors surface while looking up and
// expanding templates; validation errors surface on the flattened graph,
// before any actor runs. Neither is ever raised mid-execution.
var (
	// ErrUnknownComponent is returned when an instance references a component
	// name absent from the registry.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrParameterMismatch is returned when an instance passes an argument
	// the component does not declare, or references an undeclared parameter.
	ErrParameterMismatch = errors.New("parameter mismatch")

	// ErrMultipleProducers is returned when two wires target the same input
	// port. Inputs are single-producer by construction.
	ErrMultipleProducers = errors.New("multiple producers for input port")

	// ErrDanglingPort is returned when a declared port is neither connected
	// nor explicitly terminated.
	ErrDanglingPort = errors.New("dangling port")

	// ErrUnresolvedForward is returned when a boundary wire references a port
	// the composite does not declare.
	ErrUnresolvedForward = errors.New("unresolved port forwarding")

	// ErrUnknownPort is returned when a wire references a port the target
	// component does not declare.
	ErrUnknownPort = errors.New("unknown port")
)
