// Package actors is the builtin component library: generic sources, sinks
// and transforms in the std, text, io and flow namespaces. Protocol-specific
// actors live with their owners, not here.
package actors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/weft/pkg/actor"
	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/token"
)

// Option configures the library at registration time.
type Option func(*library)

// WithOutput redirects flow.Collect output, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(l *library) { l.out = w }
}

type library struct {
	out io.Writer
}

// Register installs the builtin components into reg.
func Register(reg *component.Registry, opts ...Option) error {
	l := &library{out: os.Stdout}
	for _, opt := range opts {
		opt(l)
	}
	for _, c := range []*component.Component{
		constant(), identity(), counter(), prefix(), fileLines(), l.collect(), void(),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register for static setup paths.
func MustRegister(reg *component.Registry, opts ...Option) {
	if err := Register(reg, opts...); err != nil {
		panic(err)
	}
}

// constant emits its value parameter in a single firing.
func constant() *component.Component {
	return &component.Component{
		Name:    "std.Constant",
		Params:  []string{"value"},
		Outputs: []component.PortSpec{component.Out("out")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			value, ok := params["value"]
			if !ok {
				return nil, fmt.Errorf("std.Constant: value parameter is required")
			}
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				return actor.Emit("out", value.Copy()), nil
			}), nil
		}},
	}
}

func identity() *component.Component {
	return &component.Component{
		Name:    "std.Identity",
		Inputs:  []component.PortSpec{component.In("in")},
		Outputs: []component.PortSpec{component.Out("out")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				return actor.Emit("out", in["in"]), nil
			}), nil
		}},
	}
}

// counter emits an increasing integer per trigger token, beginning at the
// mandatory start parameter. The count is actor-private state, reset on
// restart.
func counter() *component.Component {
	return &component.Component{
		Name:    "std.Counter",
		Params:  []string{"start"},
		Inputs:  []component.PortSpec{component.In("trigger")},
		Outputs: []component.PortSpec{component.Out("integer")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			var cfg struct {
				Start float64 `mapstructure:"start"`
			}
			if err := actor.DecodeParams(params, &cfg); err != nil {
				return nil, err
			}
			n := cfg.Start
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				out := token.Number(n)
				n++
				return actor.Emit("integer", out), nil
			}), nil
		}},
	}
}

func prefix() *component.Component {
	return &component.Component{
		Name:    "text.Prefix",
		Params:  []string{"prefix"},
		Inputs:  []component.PortSpec{component.In("in")},
		Outputs: []component.PortSpec{component.Out("out")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			var cfg struct {
				Prefix string `mapstructure:"prefix"`
			}
			if err := actor.DecodeParams(params, &cfg); err != nil {
				return nil, err
			}
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				s, ok := in["in"].AsString()
				if !ok {
					return nil, actor.Faultf("text.Prefix: expected string token, got %s", in["in"].Kind())
				}
				return actor.Emit("out", token.String(cfg.Prefix+s)), nil
			}), nil
		}},
	}
}

// fileLines reads the file once and emits one string token per line.
func fileLines() *component.Component {
	return &component.Component{
		Name:    "io.FileLines",
		Params:  []string{"filename"},
		Outputs: []component.PortSpec{component.Out("out")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			var cfg struct {
				Filename string `mapstructure:"filename"`
			}
			if err := actor.DecodeParams(params, &cfg); err != nil {
				return nil, err
			}
			if cfg.Filename == "" {
				return nil, fmt.Errorf("io.FileLines: filename parameter is required")
			}
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				f, err := os.Open(cfg.Filename)
				if err != nil {
					return nil, actor.Faultf("io.FileLines: %v", err)
				}
				defer f.Close()
				var lines []token.Token
				scanner := bufio.NewScanner(f)
				for scanner.Scan() {
					lines = append(lines, token.String(scanner.Text()))
				}
				if err := scanner.Err(); err != nil {
					return nil, actor.Faultf("io.FileLines: reading %s: %v", cfg.Filename, err)
				}
				return actor.Emit("out", lines...), nil
			}), nil
		}},
	}
}

// collect prints each received token, one per line. Strings print raw,
// everything else as a literal.
func (l *library) collect() *component.Component {
	out := l.out
	return &component.Component{
		Name:   "flow.Collect",
		Inputs: []component.PortSpec{component.In("in")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				line, ok := in["in"].AsString()
				if !ok {
					line = in["in"].String()
				}
				if _, err := fmt.Fprintln(out, line); err != nil {
					return nil, actor.Faultf("flow.Collect: %v", err)
				}
				return nil, nil
			}), nil
		}},
	}
}

// void terminates a stream explicitly; unused outputs must be wired here
// rather than left dangling.
func void() *component.Component {
	return &component.Component{
		Name:   "flow.Void",
		Inputs: []component.PortSpec{component.In("in")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				return nil, nil
			}), nil
		}},
	}
}
