// Package runtime owns a flattened graph instance: it builds the fabric and
// actor shims from a resolved graph, injects one-shot literals, and exposes
// the start/drain/stop lifecycle to the deployment layer.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/weft/internal/fabric"
	"github.com/aretw0/weft/internal/resolver"
	"github.com/aretw0/weft/internal/sched"
	"github.com/aretw0/weft/pkg/actor"
	"github.com/aretw0/weft/pkg/observability"
)

// Option configures a controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithFaultPolicy selects the graph-wide fault policy.
func WithFaultPolicy(p sched.FaultPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithWorkers bounds concurrently executing firings; zero means unbounded.
func WithWorkers(n int64) Option {
	return func(c *Controller) { c.workers = n }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

type connInfo struct {
	label    string
	capacity int
	conn     *fabric.Connection
}

// Controller is the owner of one runnable graph. Actors and connections are
// created at build time, live for the duration of the run, and are torn down
// on stop.
type Controller struct {
	name        string
	graph       *resolver.FlatGraph
	sched       *sched.Scheduler
	conns       []connInfo
	injectConns map[resolver.PortRef]*fabric.Connection

	log     *slog.Logger
	policy  sched.FaultPolicy
	workers int64
	metrics *observability.Metrics

	mu      sync.Mutex
	started bool
}

// ConnStatus is the introspection view of one connection.
type ConnStatus struct {
	Label    string `json:"label"`
	Capacity int    `json:"capacity"`
	Pending  int    `json:"pending"`
}

// Status is a point-in-time view of the whole graph.
type Status struct {
	Name        string              `json:"name"`
	Actors      []sched.ActorStatus `json:"actors"`
	Connections []ConnStatus        `json:"connections"`
}

// NewController instantiates the fabric and actor shims for a resolved
// graph. Each primitive implementation is constructed exactly once here;
// the restart fault policy reconstructs through the same factory.
func NewController(name string, g *resolver.FlatGraph, opts ...Option) (*Controller, error) {
	c := &Controller{
		name:  name,
		graph: g,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	inConn := map[resolver.PortRef]*fabric.Connection{}
	labels := map[*fabric.Connection]string{}
	outbound := map[resolver.PortRef][]sched.Outbound{}

	for _, spec := range g.Connections {
		conn := fabric.NewConnection(spec.Capacity)
		label := fmt.Sprintf("%s.%s>%s.%s",
			g.ActorName(spec.From.Actor), spec.From.Port,
			g.ActorName(spec.To.Actor), spec.To.Port)
		inConn[spec.To] = conn
		labels[conn] = label
		outbound[spec.From] = append(outbound[spec.From], sched.Outbound{Label: label, Conn: conn})
		c.conns = append(c.conns, connInfo{label: label, capacity: spec.Capacity, conn: conn})
	}

	// Ports fed only by a one-shot injection still need a queue.
	for _, inj := range g.Injections {
		if _, ok := inConn[inj.To]; ok {
			continue
		}
		conn := fabric.NewConnection(0)
		label := fmt.Sprintf("literal>%s.%s", g.ActorName(inj.To.Actor), inj.To.Port)
		inConn[inj.To] = conn
		labels[conn] = label
		c.conns = append(c.conns, connInfo{label: label, conn: conn})
	}

	actors := make([]*sched.ActorRuntime, len(g.Actors))
	for id, spec := range g.Actors {
		factory := spec.Component.Primitive.New
		params := spec.Params
		impl, err := factory(params)
		if err != nil {
			return nil, fmt.Errorf("building actor %s: %w", spec.Name, err)
		}

		rt := &sched.ActorRuntime{
			Name: spec.Name,
			Impl: impl,
			Rebuild: func() (actor.Implementation, error) {
				return factory(params)
			},
		}
		for _, p := range spec.Component.Inputs {
			ref := resolver.PortRef{Actor: id, Port: p.Name}
			conn, ok := inConn[ref]
			if !ok {
				return nil, fmt.Errorf("actor %s input %s has no connection after validation", spec.Name, p.Name)
			}
			rt.Inputs = append(rt.Inputs, sched.InputPort{
				Name:     p.Name,
				Required: p.Required,
				Label:    labels[conn],
				Conn:     conn,
			})
		}
		for _, p := range spec.Component.Outputs {
			rt.Outputs = append(rt.Outputs, sched.OutputPort{
				Name:    p.Name,
				Targets: outbound[resolver.PortRef{Actor: id, Port: p.Name}],
			})
		}
		actors[id] = rt
	}

	c.sched = sched.New(actors, sched.Config{
		Logger:      c.log,
		FaultPolicy: c.policy,
		Workers:     c.workers,
		Metrics:     c.metrics,
	})

	// Keep the injection queues reachable for Start.
	c.injectConns = inConn
	return c, nil
}

// Start injects one-shot literals and begins scheduling. Injection happens
// strictly before the first dispatch, so a defaulted or literal-fed port is
// indistinguishable from one that received an early token.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("graph already started")
	}
	c.started = true

	for _, w := range c.graph.Warnings {
		c.log.Warn("static analysis warning", "kind", w.Kind, "detail", w.Detail)
	}

	for _, inj := range c.graph.Injections {
		conn := c.injectConns[inj.To]
		if err := conn.Enqueue(ctx, inj.Token.Copy()); err != nil {
			return fmt.Errorf("injecting literal into %s.%s: %w",
				c.graph.ActorName(inj.To.Actor), inj.To.Port, err)
		}
	}

	c.log.Info("graph starting",
		"graph", c.name,
		"actors", len(c.graph.Actors),
		"connections", len(c.conns),
		"policy", c.policy.String(),
	)
	return c.sched.Start(ctx)
}

// Drain disables dispatch and waits for in-flight firings to complete.
func (c *Controller) Drain(ctx context.Context) error {
	return c.sched.Quiesce(ctx)
}

// Stop tears the graph down: in-flight firings run to completion (their
// external calls see cancellation), pending tokens are discarded, fabric
// resources are released.
func (c *Controller) Stop(ctx context.Context) error {
	err := c.sched.Stop(ctx)
	if err == nil {
		c.log.Info("graph stopped", "graph", c.name)
	}
	return err
}

// Done is closed once the graph has fully stopped, including a self-stop
// under the halt fault policy.
func (c *Controller) Done() <-chan struct{} { return c.sched.Done() }

// Err reports the fault that halted the graph, if the halt policy fired.
func (c *Controller) Err() error { return c.sched.Err() }

// Warnings returns the advisory findings from resolution.
func (c *Controller) Warnings() []resolver.Warning { return c.graph.Warnings }

// Snapshot reports actor states and connection depths.
func (c *Controller) Snapshot() Status {
	st := Status{Name: c.name, Actors: c.sched.Snapshot()}
	for _, ci := range c.conns {
		st.Connections = append(st.Connections, ConnStatus{
			Label:    ci.label,
			Capacity: ci.capacity,
			Pending:  ci.conn.Pending(),
		})
	}
	return st
}
