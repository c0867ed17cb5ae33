package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/pkg/component"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := `component Noop() in -> out {
		pass : std.Identity()
		.in > pass.in
		pass.out > .out
	}`
	require.NoError(t, store.Save(ctx, "noop", src))

	got, err := store.Load(ctx, "noop")
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", "x : flow.Void()"))
	require.NoError(t, store.Save(ctx, "b", "y : flow.Void()"))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	require.NoError(t, store.Delete(ctx, "a"))
	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
}

func TestListPrunesExpired(t *testing.T) {
	store, mr := newTestStore(t, WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "soon-gone", "x : flow.Void()"))
	mr.FastForward(2 * time.Second)
	time.Sleep(1100 * time.Millisecond)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = store.Load(ctx, "soon-gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCustomPrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	a := NewFromClient(client, WithPrefix("a:"))
	b := NewFromClient(client, WithPrefix("b:"))
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "only-a", "x : flow.Void()"))
	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoadAllRegistersComponents(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "lib", `
		component Double() in -> out {
			a : std.Identity()
			b : std.Identity()
			.in > a.in
			a.out > b.in
			b.out > .out
		}
	`))
	require.NoError(t, store.Save(ctx, "bad-syntax-free", `
		component Noop() in -> out {
			pass : std.Identity()
			.in > pass.in
			pass.out > .out
		}
	`))

	reg := component.NewRegistry()
	require.NoError(t, store.LoadAll(ctx, reg))
	_, ok := reg.Lookup("Double")
	assert.True(t, ok)
	_, ok = reg.Lookup("Noop")
	assert.True(t, ok)
}

func TestLoadAllRejectsBrokenScript(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "broken", `component {`))
	reg := component.NewRegistry()
	require.Error(t, store.LoadAll(ctx, reg))
}
