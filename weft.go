package weft

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/internal/resolver"
	"github.com/aretw0/weft/internal/runtime"
	"github.com/aretw0/weft/internal/sched"
	"github.com/aretw0/weft/pkg/actors"
	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/dsl"
	"github.com/aretw0/weft/pkg/manifest"
	"github.com/aretw0/weft/pkg/observability"
)

// Version of the weft library and CLI.
const Version = "0.1.0"

// System is the high-level entry point: a component registry plus the
// runtime configuration applied to every graph it deploys.
type System struct {
	reg     *component.Registry
	log     *slog.Logger
	policy  sched.FaultPolicy
	workers int64
	metrics *observability.Metrics
}

// Option defines a functional option for configuring the System.
type Option func(*System)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) { s.log = logger }
}

// WithRegistry injects a pre-populated component registry, skipping the
// default builtin library.
func WithRegistry(reg *component.Registry) Option {
	return func(s *System) { s.reg = reg }
}

// WithFaultPolicy selects the graph-wide fault policy: one of "isolate"
// (default), "restart", "halt".
func WithFaultPolicy(policy sched.FaultPolicy) Option {
	return func(s *System) { s.policy = policy }
}

// WithWorkers bounds concurrently executing firings; zero means unbounded.
func WithWorkers(n int64) Option {
	return func(s *System) { s.workers = n }
}

// WithMetrics attaches Prometheus collectors to every deployed graph.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *System) { s.metrics = m }
}

// New initializes a System. Unless WithRegistry is given, the registry
// starts with the builtin actor library (std, text, io, flow).
func New(opts ...Option) *System {
	s := &System{}
	for _, opt := range opts {
		opt(s)
	}
	if s.reg == nil {
		s.reg = component.NewRegistry()
		actors.MustRegister(s.reg)
	}
	if s.log == nil {
		s.log = logging.NewNop()
	}
	return s
}

// Registry returns the component registry graphs resolve against.
func (s *System) Registry() *component.Registry { return s.reg }

// LoadScript parses a textual graph description, registering its component
// declarations and returning the top-level application.
func (s *System) LoadScript(name, src string) (*component.App, error) {
	return dsl.Load(name, src, s.reg)
}

// LoadScriptFile is LoadScript reading from disk, named after the file.
func (s *System) LoadScriptFile(path string) (*component.App, error) {
	script, err := dsl.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := script.Register(s.reg); err != nil {
		return nil, err
	}
	return script.App, nil
}

// LoadManifest decodes a YAML graph description.
func (s *System) LoadManifest(data []byte) (*component.App, error) {
	return manifest.Parse(data)
}

// LoadManifestFile is LoadManifest reading from disk.
func (s *System) LoadManifestFile(path string) (*component.App, error) {
	return manifest.ParseFile(path)
}

// Graph is one deployed application: a flattened structure plus its running
// controller.
type Graph struct {
	*runtime.Controller
	flat *resolver.FlatGraph
}

// Resolved exposes the flattened structure for rendering and introspection.
func (g *Graph) Resolved() *resolver.FlatGraph { return g.flat }

// Deploy resolves the application against the registry and builds its
// runtime. The graph is not started; call Start (or use Run).
func (s *System) Deploy(app *component.App) (*Graph, error) {
	flat, err := resolver.Resolve(app, s.reg)
	if err != nil {
		return nil, fmt.Errorf("deploying %s: %w", app.Name, err)
	}
	ctl, err := runtime.NewController(app.Name, flat,
		runtime.WithLogger(s.log.With("graph", app.Name)),
		runtime.WithFaultPolicy(s.policy),
		runtime.WithWorkers(s.workers),
		runtime.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("deploying %s: %w", app.Name, err)
	}
	return &Graph{Controller: ctl, flat: flat}, nil
}

// Validate resolves the application without building a runtime, reporting
// structural errors and advisory warnings.
func (s *System) Validate(app *component.App) ([]resolver.Warning, error) {
	flat, err := resolver.Resolve(app, s.reg)
	if err != nil {
		return nil, err
	}
	return flat.Warnings, nil
}
