package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/internal/resolver"
	"github.com/aretw0/weft/internal/runtime"
	"github.com/aretw0/weft/internal/sched"
	"github.com/aretw0/weft/internal/testutils"
	"github.com/aretw0/weft/pkg/actor"
	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/token"
)

func run(t *testing.T, app *component.App, reg *component.Registry, opts ...runtime.Option) *runtime.Controller {
	t.Helper()
	g, err := resolver.Resolve(app, reg)
	require.NoError(t, err)
	ctl, err := runtime.NewController(app.Name, g, opts...)
	require.NoError(t, err)
	require.NoError(t, ctl.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctl.Stop(ctx)
	})
	return ctl
}

func lines(ss ...string) []token.Token {
	out := make([]token.Token, len(ss))
	for i, s := range ss {
		out[i] = token.String(s)
	}
	return out
}

// registerPrefixFile registers the composite used by the prefix scenarios:
// an inner line source wired through a prefixer, both hidden behind one
// declared output.
func registerPrefixFile(t *testing.T, reg *component.Registry) {
	t.Helper()
	require.NoError(t, reg.Register(&component.Component{
		Name:    "PrefixFile",
		Params:  []string{"prefix"},
		Outputs: []component.PortSpec{component.Out("out")},
		Composite: &component.Composite{
			Instances: []component.Instance{
				{Name: "file", Component: "test.Lines"},
				{Name: "prep", Component: "test.Prefix", Args: map[string]component.Argument{
					"prefix": component.Ref("prefix"),
				}},
			},
			Wires: []component.Wire{
				component.Connect(component.Port("file", "out"), component.Port("prep", "in")),
				component.Connect(component.Port("prep", "out"), component.Boundary("out")),
			},
		},
	}))
}

func TestPrefixFileScenario(t *testing.T) {
	reg := component.NewRegistry()
	sink := testutils.NewSink()
	require.NoError(t, reg.Register(testutils.EmitComponent("test.Lines", lines("a", "b")...)))
	require.NoError(t, reg.Register(testutils.PrefixComponent("test.Prefix")))
	require.NoError(t, reg.Register(testutils.CollectComponent("test.Collect", sink)))
	registerPrefixFile(t, reg)

	app := &component.App{
		Name: "scenario-a",
		Instances: []component.Instance{
			{Name: "src", Component: "PrefixFile", Args: map[string]component.Argument{
				"prefix": component.Lit(token.String("--- ")),
			}},
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("dst", "in")),
		},
	}
	run(t, app, reg)

	require.NoError(t, sink.WaitFor(2, 5*time.Second))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"--- a", "--- b"}, sink.Strings())
}

func TestCompositeEquivalentToManualFlattening(t *testing.T) {
	mkRegistry := func(sink *testutils.Sink) *component.Registry {
		reg := component.NewRegistry()
		mustRegister(t, reg,
			testutils.EmitComponent("test.Lines", lines("x", "y", "z")...),
			testutils.PrefixComponent("test.Prefix"),
			testutils.CollectComponent("test.Collect", sink),
		)
		return reg
	}

	compositeSink := testutils.NewSink()
	regC := mkRegistry(compositeSink)
	registerPrefixFile(t, regC)
	run(t, &component.App{
		Name: "composite",
		Instances: []component.Instance{
			{Name: "src", Component: "PrefixFile", Args: map[string]component.Argument{
				"prefix": component.Lit(token.String("> ")),
			}},
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("dst", "in")),
		},
	}, regC)

	manualSink := testutils.NewSink()
	regM := mkRegistry(manualSink)
	run(t, &component.App{
		Name: "manual",
		Instances: []component.Instance{
			{Name: "file", Component: "test.Lines"},
			{Name: "prep", Component: "test.Prefix", Args: map[string]component.Argument{
				"prefix": component.Lit(token.String("> ")),
			}},
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("file", "out"), component.Port("prep", "in")),
			component.Connect(component.Port("prep", "out"), component.Port("dst", "in")),
		},
	}, regM)

	require.NoError(t, compositeSink.WaitFor(3, 5*time.Second))
	require.NoError(t, manualSink.WaitFor(3, 5*time.Second))
	assert.Equal(t, manualSink.Strings(), compositeSink.Strings())
}

func TestFanOutDeliversIdenticalCopies(t *testing.T) {
	reg := component.NewRegistry()
	s1, s2 := testutils.NewSink(), testutils.NewSink()
	mustRegister(t, reg,
		testutils.EmitComponent("test.Lines", lines("a", "b", "c")...),
		testutils.CollectComponent("test.CollectA", s1),
		testutils.CollectComponent("test.CollectB", s2),
	)

	run(t, &component.App{
		Name: "fanout",
		Instances: []component.Instance{
			{Name: "src", Component: "test.Lines"},
			{Name: "left", Component: "test.CollectA"},
			{Name: "right", Component: "test.CollectB"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("left", "in")),
			component.Connect(component.Port("src", "out"), component.Port("right", "in")),
		},
	}, reg)

	require.NoError(t, s1.WaitFor(3, 5*time.Second))
	require.NoError(t, s2.WaitFor(3, 5*time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, s1.Strings())
	assert.Equal(t, []string{"a", "b", "c"}, s2.Strings())
}

func TestBackpressureDropsNothing(t *testing.T) {
	reg := component.NewRegistry()
	sink := testutils.NewSink()
	slowCollect := &component.Component{
		Name:   "test.SlowCollect",
		Inputs: []component.PortSpec{component.In("in")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				time.Sleep(5 * time.Millisecond)
				sink.Add(in["in"])
				return nil, nil
			}), nil
		}},
	}
	mustRegister(t, reg,
		testutils.EmitComponent("test.Lines", lines("1", "2", "3", "4", "5")...),
		slowCollect,
	)

	run(t, &component.App{
		Name: "backpressure",
		Instances: []component.Instance{
			{Name: "src", Component: "test.Lines"},
			{Name: "dst", Component: "test.SlowCollect"},
		},
		Wires: []component.Wire{
			{From: component.Port("src", "out"), To: component.Port("dst", "in"), Capacity: 1},
		},
	}, reg)

	require.NoError(t, sink.WaitFor(5, 10*time.Second))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, sink.Strings())
}

func TestTriggerScenario(t *testing.T) {
	reg := component.NewRegistry()
	sink := testutils.NewSink()

	camera := &component.Component{
		Name:    "test.Camera",
		Inputs:  []component.PortSpec{component.In("trigger")},
		Outputs: []component.PortSpec{component.Out("image")},
		Primitive: &component.Primitive{New: func(params map[string]token.Token) (actor.Implementation, error) {
			return actor.FireFunc(func(ctx context.Context, in map[string]token.Token) (map[string][]token.Token, error) {
				return actor.Emit("image", token.String("frame")), nil
			}), nil
		}},
	}
	mustRegister(t, reg, camera, testutils.CollectComponent("test.Collect", sink))

	t.Run("zero triggers produce zero output", func(t *testing.T) {
		require.NoError(t, reg.Register(testutils.EmitComponent("test.NoTriggers")))
		run(t, &component.App{
			Name: "no-triggers",
			Instances: []component.Instance{
				{Name: "clock", Component: "test.NoTriggers"},
				{Name: "cam", Component: "test.Camera"},
				{Name: "dst", Component: "test.Collect"},
			},
			Wires: []component.Wire{
				component.Connect(component.Port("clock", "out"), component.Port("cam", "trigger")),
				component.Connect(component.Port("cam", "image"), component.Port("dst", "in")),
			},
		}, reg)

		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, sink.Tokens())
	})

	t.Run("one trigger produces one image", func(t *testing.T) {
		require.NoError(t, reg.Register(testutils.EmitComponent("test.OneTrigger", token.Null())))
		run(t, &component.App{
			Name: "one-trigger",
			Instances: []component.Instance{
				{Name: "clock", Component: "test.OneTrigger"},
				{Name: "cam", Component: "test.Camera"},
				{Name: "dst", Component: "test.Collect"},
			},
			Wires: []component.Wire{
				component.Connect(component.Port("clock", "out"), component.Port("cam", "trigger")),
				component.Connect(component.Port("cam", "image"), component.Port("dst", "in")),
			},
		}, reg)

		require.NoError(t, sink.WaitFor(1, 5*time.Second))
		time.Sleep(20 * time.Millisecond)
		assert.Len(t, sink.Tokens(), 1)
	})
}

func TestLiteralInjectionDeliversBeforeScheduling(t *testing.T) {
	reg := component.NewRegistry()
	sink := testutils.NewSink()
	mustRegister(t, reg, testutils.CollectComponent("test.Collect", sink))

	run(t, &component.App{
		Name: "inject",
		Instances: []component.Instance{
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Inject(token.Map(map[string]token.Token{"k": token.Number(1)}), component.Port("dst", "in")),
		},
	}, reg)

	require.NoError(t, sink.WaitFor(1, 5*time.Second))
	time.Sleep(20 * time.Millisecond)
	toks := sink.Tokens()
	require.Len(t, toks, 1)
	m, ok := toks[0].AsMap()
	require.True(t, ok)
	assert.True(t, m["k"].Equal(token.Number(1)))
}

func TestHaltPolicyStopsGraphAndReportsFault(t *testing.T) {
	reg := component.NewRegistry()
	sink := testutils.NewSink()
	mustRegister(t, reg,
		testutils.EmitComponent("test.Lines", lines("a")...),
		testutils.FailComponent("test.Fail", -1),
		testutils.CollectComponent("test.Collect", sink),
	)

	g, err := resolver.Resolve(&component.App{
		Name: "halting",
		Instances: []component.Instance{
			{Name: "src", Component: "test.Lines"},
			{Name: "bad", Component: "test.Fail"},
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("bad", "in")),
			component.Connect(component.Port("bad", "out"), component.Port("dst", "in")),
		},
	}, reg)
	require.NoError(t, err)

	ctl, err := runtime.NewController("halting", g, runtime.WithFaultPolicy(sched.Halt))
	require.NoError(t, err)
	require.NoError(t, ctl.Start(context.Background()))

	select {
	case <-ctl.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("graph did not halt")
	}
	var fault *actor.FireFault
	require.ErrorAs(t, ctl.Err(), &fault)
}

func TestMetricsRecordFiringsAndFaults(t *testing.T) {
	reg := component.NewRegistry()
	sink := testutils.NewSink()
	mustRegister(t, reg,
		testutils.EmitComponent("test.Lines", lines("a", "b")...),
		testutils.CollectComponent("test.Collect", sink),
	)

	promReg := prometheus.NewRegistry()
	metrics := observability.New(promReg)

	run(t, &component.App{
		Name: "metered",
		Instances: []component.Instance{
			{Name: "src", Component: "test.Lines"},
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("dst", "in")),
		},
	}, reg, runtime.WithMetrics(metrics))

	require.NoError(t, sink.WaitFor(2, 5*time.Second))

	families, err := promReg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["weft_actor_firings_total"])
}

func TestSnapshotExposesActorsAndConnections(t *testing.T) {
	reg := component.NewRegistry()
	sink := testutils.NewSink()
	mustRegister(t, reg,
		testutils.EmitComponent("test.Lines", lines("a")...),
		testutils.CollectComponent("test.Collect", sink),
	)

	ctl := run(t, &component.App{
		Name: "snap",
		Instances: []component.Instance{
			{Name: "src", Component: "test.Lines"},
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("dst", "in")),
		},
	}, reg)

	require.NoError(t, sink.WaitFor(1, 5*time.Second))
	st := ctl.Snapshot()
	assert.Equal(t, "snap", st.Name)
	require.Len(t, st.Actors, 2)
	require.Len(t, st.Connections, 1)
	assert.Equal(t, "src.out>dst.in", st.Connections[0].Label)
}

func TestDoubleStartFails(t *testing.T) {
	reg := component.NewRegistry()
	sink := testutils.NewSink()
	mustRegister(t, reg,
		testutils.EmitComponent("test.Lines", lines("a")...),
		testutils.CollectComponent("test.Collect", sink),
	)

	ctl := run(t, &component.App{
		Name: "double",
		Instances: []component.Instance{
			{Name: "src", Component: "test.Lines"},
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("dst", "in")),
		},
	}, reg)

	assert.Error(t, ctl.Start(context.Background()))
}

func mustRegister(t *testing.T, reg *component.Registry, comps ...*component.Component) {
	t.Helper()
	for _, c := range comps {
		require.NoError(t, reg.Register(c))
	}
}
