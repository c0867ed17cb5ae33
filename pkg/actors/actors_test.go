package actors_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/internal/resolver"
	"github.com/aretw0/weft/internal/runtime"
	"github.com/aretw0/weft/pkg/actor"
	"github.com/aretw0/weft/pkg/actors"
	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/token"
)

// syncBuffer guards a bytes.Buffer against concurrent collector firings.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimSpace(b.buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func build(t *testing.T, reg *component.Registry, name string, params map[string]token.Token) actor.Implementation {
	t.Helper()
	comp, ok := reg.Lookup(name)
	require.True(t, ok, "component %s not registered", name)
	impl, err := comp.Primitive.New(params)
	require.NoError(t, err)
	return impl
}

func fire(t *testing.T, impl actor.Implementation, in map[string]token.Token) map[string][]token.Token {
	t.Helper()
	out, err := impl.Fire(context.Background(), in)
	require.NoError(t, err)
	return out
}

func TestRegisterInstallsAllNamespaces(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg))
	for _, name := range []string{
		"std.Constant", "std.Identity", "std.Counter",
		"text.Prefix", "io.FileLines", "flow.Collect", "flow.Void",
	} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestConstant(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg))

	impl := build(t, reg, "std.Constant", map[string]token.Token{"value": token.String("beep")})
	out := fire(t, impl, nil)
	require.Len(t, out["out"], 1)
	assert.True(t, out["out"][0].Equal(token.String("beep")))

	comp, _ := reg.Lookup("std.Constant")
	_, err := comp.Primitive.New(nil)
	assert.ErrorContains(t, err, "value parameter is required")
}

func TestCounter(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg))

	impl := build(t, reg, "std.Counter", map[string]token.Token{"start": token.Number(10)})
	for i := 0; i < 3; i++ {
		out := fire(t, impl, map[string]token.Token{"trigger": token.Null()})
		require.Len(t, out["integer"], 1)
		assert.True(t, out["integer"][0].Equal(token.Number(float64(10+i))))
	}
}

func TestCounterRequiresStart(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg))

	app := &component.App{
		Name:      "count",
		Instances: []component.Instance{{Name: "n", Component: "std.Counter"}},
	}
	_, err := resolver.Resolve(app, reg)
	require.ErrorIs(t, err, component.ErrParameterMismatch)
	assert.ErrorContains(t, err, "missing argument start")
}

func TestPrefixFaultsOnNonString(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg))

	impl := build(t, reg, "text.Prefix", map[string]token.Token{"prefix": token.String("> ")})
	out := fire(t, impl, map[string]token.Token{"in": token.String("hi")})
	assert.True(t, out["out"][0].Equal(token.String("> hi")))

	_, err := impl.Fire(context.Background(), map[string]token.Token{"in": token.Number(7)})
	var fault *actor.FireFault
	require.ErrorAs(t, err, &fault)
}

func TestFileLinesFaultsOnMissingFile(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg))

	impl := build(t, reg, "io.FileLines", map[string]token.Token{"filename": token.String("/does/not/exist")})
	_, err := impl.Fire(context.Background(), nil)
	var fault *actor.FireFault
	require.ErrorAs(t, err, &fault)
}

// The library's main consumer is a resolved graph; run the canonical
// file-to-collector pipeline end to end.
func TestFilePipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))

	var out syncBuffer
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg, actors.WithOutput(&out)))

	app := &component.App{
		Name: "lines",
		Instances: []component.Instance{
			{Name: "src", Component: "io.FileLines", Args: map[string]component.Argument{
				"filename": component.Lit(token.String(path)),
			}},
			{Name: "fmt", Component: "text.Prefix", Args: map[string]component.Argument{
				"prefix": component.Lit(token.String("--- ")),
			}},
			{Name: "dst", Component: "flow.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("fmt", "in")),
			component.Connect(component.Port("fmt", "out"), component.Port("dst", "in")),
		},
	}
	g, err := resolver.Resolve(app, reg)
	require.NoError(t, err)
	ctl, err := runtime.NewController(app.Name, g)
	require.NoError(t, err)
	require.NoError(t, ctl.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctl.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(out.Lines()) == 2
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"--- a", "--- b"}, out.Lines())
}

func TestCollectRendersNonStrings(t *testing.T) {
	var out syncBuffer
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg, actors.WithOutput(&out)))

	impl := build(t, reg, "flow.Collect", nil)
	fire(t, impl, map[string]token.Token{"in": token.List(token.Number(1), token.Bool(true))})
	fire(t, impl, map[string]token.Token{"in": token.String("plain")})
	assert.Equal(t, []string{"[1, true]", "plain"}, out.Lines())
}

func TestVoidDiscards(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, actors.Register(reg))

	impl := build(t, reg, "flow.Void", nil)
	out := fire(t, impl, map[string]token.Token{"in": token.String("gone")})
	assert.Empty(t, out)
}
