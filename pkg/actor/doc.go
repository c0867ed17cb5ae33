// Package actor defines the contract between the graph runtime and the
// firable units it schedules. The runtime treats implementations as opaque:
// it knows their port specs (declared on the owning component), calls Fire
// with the consumed input tokens, and routes whatever they emit.
package actor
