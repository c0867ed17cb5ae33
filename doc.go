/*
Package weft is an actor-based dataflow graph runtime: named component
instances wired together through typed ports, with data moving between them
as discrete tokens over ordered FIFO connections.

Components are templates, either primitive (a Go implementation behind the
firing contract in pkg/actor) or composite (an inner graph behind declared
boundary ports). The resolver flattens composites into a single
actor/connection graph, the scheduler fires actors as their inputs arrive,
and bounded connections push back on producers instead of dropping tokens.

# Usage

Graphs are described in a small script syntax (see pkg/dsl) or YAML
manifests (pkg/manifest) and executed through a System:

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/weft"
	)

	const script = `
	src : std.Constant(value="hello")
	dst : flow.Collect()
	src.out > dst.in
	`

	func main() {
		sys := weft.New()
		app, err := sys.LoadScript("hello", script)
		if err != nil {
			log.Fatal(err)
		}
		if err := sys.Run(context.Background(), app); err != nil {
			log.Fatal(err)
		}
	}

A deployed graph can also be driven manually through Deploy, Start, Drain
and Stop, and inspected while running via Snapshot or the HTTP control
surface wired up by the weft CLI.

# Key properties

  - Strict FIFO per connection; fan-out delivers independent copies.
  - One producer per input port, validated before anything runs.
  - Composites behave identically to their manually flattened graphs.
  - Faults are contained per actor under an isolate/restart/halt policy.
*/
package weft
