// Package component defines the template vocabulary of a dataflow graph:
// components (primitive or composite), port specifications, instance
// declarations, wires, and the registry the resolver draws templates from.
//
// Components are write-once: a registry entry never changes after
// registration, so the resolver can expand templates without locking.
package component
