// Package manifest loads declarative YAML graph descriptions, an alternate
// front end to the script syntax for deployments that template their graphs
// with standard YAML tooling.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/token"
)

// Document mirrors the YAML layout. Wires reference ports as "actor.port";
// a leading dot is rejected because manifests only describe top-level graphs.
type Document struct {
	Name      string     `yaml:"name"`
	Instances []Instance `yaml:"instances"`
	Wires     []Wire     `yaml:"wires"`
}

type Instance struct {
	Name      string         `yaml:"name"`
	Component string         `yaml:"component"`
	Args      map[string]any `yaml:"args"`
}

type Wire struct {
	From     string `yaml:"from,omitempty"`
	Literal  any    `yaml:"literal,omitempty"`
	To       string `yaml:"to"`
	Capacity int    `yaml:"capacity,omitempty"`
}

// Parse decodes a YAML manifest into an application graph.
func Parse(data []byte) (*component.App, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return doc.App()
}

// ParseFile reads and decodes a manifest from disk.
func ParseFile(path string) (*component.App, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	app, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return app, nil
}

// App converts the decoded document into the resolver's input form.
func (d *Document) App() (*component.App, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("manifest missing name")
	}
	app := &component.App{Name: d.Name}

	for _, inst := range d.Instances {
		if inst.Name == "" || inst.Component == "" {
			return nil, fmt.Errorf("instance needs both name and component (got name=%q component=%q)", inst.Name, inst.Component)
		}
		out := component.Instance{Name: inst.Name, Component: inst.Component}
		for k, v := range inst.Args {
			tok, err := token.FromAny(v)
			if err != nil {
				return nil, fmt.Errorf("instance %s arg %s: %w", inst.Name, k, err)
			}
			if out.Args == nil {
				out.Args = map[string]component.Argument{}
			}
			out.Args[k] = component.Lit(tok)
		}
		app.Instances = append(app.Instances, out)
	}

	for i, w := range d.Wires {
		to, err := parsePortRef(w.To)
		if err != nil {
			return nil, fmt.Errorf("wire %d: to: %w", i, err)
		}
		switch {
		case w.From != "" && w.Literal != nil:
			return nil, fmt.Errorf("wire %d: from and literal are mutually exclusive", i)
		case w.From != "":
			from, err := parsePortRef(w.From)
			if err != nil {
				return nil, fmt.Errorf("wire %d: from: %w", i, err)
			}
			app.Wires = append(app.Wires, component.Wire{From: from, To: to, Capacity: w.Capacity})
		case w.Literal != nil:
			tok, err := token.FromAny(w.Literal)
			if err != nil {
				return nil, fmt.Errorf("wire %d: literal: %w", i, err)
			}
			app.Wires = append(app.Wires, component.Inject(tok, to))
		default:
			return nil, fmt.Errorf("wire %d: needs from or literal", i)
		}
	}
	return app, nil
}

func parsePortRef(ref string) (component.Endpoint, error) {
	actor, port, ok := strings.Cut(ref, ".")
	if !ok || actor == "" || port == "" {
		return component.Endpoint{}, fmt.Errorf("port reference %q is not of the form actor.port", ref)
	}
	return component.Port(actor, port), nil
}
