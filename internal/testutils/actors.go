// Package testutils provides scripted components shared by the engine test
// suites: bounded emitters, recording sinks, deterministic transforms and
// actors that fault on demand.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/weft/pkg/actor"
	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/token"
)

// Sink records every token delivered to a collector component, in arrival
// order.
type Sink struct {
	mu     sync.Mutex
	tokens []token.Token
}

// NewSink creates an empty sink.
func NewSink() *Sink { return &Sink{} }

// Add records one token.
func (s *Sink) Add(t token.Token) {
	s.mu.Lock()
	s.tokens = append(s.tokens, t)
	s.mu.Unlock()
}

// Tokens returns a snapshot of everything received so far.
func (s *Sink) Tokens() []token.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]token.Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Strings returns the received tokens as their string payloads.
func (s *Sink) Strings() []string {
	toks := s.Tokens()
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if v, ok := t.AsString(); ok {
			out = append(out, v)
		} else {
			out = append(out, t.String())
		}
	}
	return out
}

// WaitFor blocks until at least n tokens arrived or the timeout expires.
func (s *Sink) WaitFor(n int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		got := len(s.tokens)
		s.mu.Unlock()
		if got >= n {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %d tokens, have %d", n, got)
		}
		time.Sleep(time.Millisecond)
	}
}

// EmitComponent builds a zero-input source that emits the given tokens on
// port "out" in a single firing.
func EmitComponent(name string, tokens ...token.Token) *component.Component {
	return &component.Component{
		Name:    name,
		Outputs: []component.PortSpec{component.Out("out")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				return actor.Emit("out", tokens...), nil
			}), nil
		}},
	}
}

// CollectComponent builds a sink with input "in" that records into sink.
func CollectComponent(name string, sink *Sink) *component.Component {
	return &component.Component{
		Name:   name,
		Inputs: []component.PortSpec{component.In("in")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				sink.Add(in["in"])
				return nil, nil
			}), nil
		}},
	}
}

// PassComponent forwards "in" to "out" unchanged, with an optional per-fire
// delay for concurrency tests.
func PassComponent(name string, delay time.Duration) *component.Component {
	return &component.Component{
		Name:    name,
		Inputs:  []component.PortSpec{component.In("in")},
		Outputs: []component.PortSpec{component.Out("out")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}
				return actor.Emit("out", in["in"]), nil
			}), nil
		}},
	}
}

// PrefixComponent prepends its "prefix" parameter to incoming strings.
func PrefixComponent(name string) *component.Component {
	return &component.Component{
		Name:    name,
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
					return nil, actor.Faultf("expected string, got %s", in["in"].Kind())
				}
				return actor.Emit("out", token.String(cfg.Prefix+s)), nil
			}), nil
		}},
	}
}

// FailComponent faults on the first n firings of each instance, then
// behaves like a passthrough. n < 0 faults forever. A fresh instance resets
// the count, so n=1 succeeds after a restart while n<0 keeps failing.
func FailComponent(name string, n int) *component.Component {
	return &component.Component{
		Name:    name,
		Inputs:  []component.PortSpec{component.In("in")},
		Outputs: []component.PortSpec{component.Out("out")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			failures := 0
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				if n < 0 || failures < n {
					failures++
					return nil, actor.Faultf("scripted failure %d", failures)
				}
				return actor.Emit("out", in["in"]), nil
			}), nil
		}},
	}
}
