// Package graph renders a flattened dataflow graph as Mermaid flowchart
// syntax for the CLI and the HTTP status surface.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft/internal/resolver"
)

// Overlay carries dynamic runtime state to visualize on top of the static
// structure: actor name -> scheduler state string.
type Overlay struct {
	States map[string]string
}

// Mermaid produces a flowchart from a resolved graph.
// Shapes: sources (zero-input actors) are circles, sinks (zero-output) are
// stadiums, everything else rectangles. Bounded connections annotate their
// capacity on the arrow; one-shot literal injections are dotted arrows.
func Mermaid(g *resolver.FlatGraph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, a := range g.Actors {
		safeID := sanitizeID(a.Name)
		opener, closer := "[", "]"
		switch {
		case len(a.Component.Inputs) == 0:
			opener, closer = "((", "))"
		case len(a.Component.Outputs) == 0:
			opener, closer = "([", "])"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, a.Name, closer))
	}

	for _, c := range g.Connections {
		from := sanitizeID(g.ActorName(c.From.Actor))
		to := sanitizeID(g.ActorName(c.To.Actor))
		label := fmt.Sprintf("%s → %s", c.From.Port, c.To.Port)
		if c.Capacity > 0 {
			label = fmt.Sprintf("%s (cap %d)", label, c.Capacity)
		}
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", from, label, to))
	}

	for i, inj := range g.Injections {
		litID := fmt.Sprintf("lit%d", i)
		lit := strings.ReplaceAll(inj.Token.String(), "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s>\"%s\"]\n", litID, lit))
		sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n",
			litID, inj.To.Port, sanitizeID(g.ActorName(inj.To.Actor))))
	}

	if overlay != nil && len(overlay.States) > 0 {
		sb.WriteString("\n")
		sb.WriteString("    classDef firing fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef faulted fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")
		for _, a := range g.Actors {
			switch overlay.States[a.Name] {
			case "firing":
				sb.WriteString(fmt.Sprintf("    class %s firing;\n", sanitizeID(a.Name)))
			case "faulted":
				sb.WriteString(fmt.Sprintf("    class %s faulted;\n", sanitizeID(a.Name)))
			}
		}
	}

	return sb.String()
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '/', '\\', ' ':
			return '_'
		}
		return r
	}, id)
}
