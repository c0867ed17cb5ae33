package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/internal/resolver"
	"github.com/aretw0/weft/internal/runtime"
	"github.com/aretw0/weft/internal/testutils"
	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/token"
)

func startGraph(t *testing.T) (*runtime.Controller, *resolver.FlatGraph, *prometheus.Registry, *testutils.Sink) {
	t.Helper()
	reg := component.NewRegistry()
	sink := testutils.NewSink()
	require.NoError(t, reg.Register(testutils.EmitComponent("test.Emit", token.String("a"), token.String("b"))))
	require.NoError(t, reg.Register(testutils.CollectComponent("test.Collect", sink)))

	g, err := resolver.Resolve(&component.App{
		Name: "served",
		Instances: []component.Instance{
			{Name: "src", Component: "test.Emit"},
			{Name: "dst", Component: "test.Collect"},
		},
		Wires: []component.Wire{
			component.Connect(component.Port("src", "out"), component.Port("dst", "in")),
		},
	}, reg)
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	ctl, err := runtime.NewController("served", g, runtime.WithMetrics(observability.New(promReg)))
	require.NoError(t, err)
	require.NoError(t, ctl.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctl.Stop(ctx)
	})
	return ctl, g, promReg, sink
}

func TestStatusEndpoint(t *testing.T) {
	ctl, g, promReg, sink := startGraph(t)
	require.NoError(t, sink.WaitFor(2, 5*time.Second))

	srv := httptest.NewServer(NewHandler(ctl, g, promReg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status struct {
		Name   string `json:"name"`
		Actors []struct {
			Name    string `json:"name"`
			State   string `json:"state"`
			Firings uint64 `json:"firings"`
		} `json:"actors"`
		Connections []struct {
			Label string `json:"label"`
		} `json:"connections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "served", status.Name)
	require.Len(t, status.Actors, 2)
	require.Len(t, status.Connections, 1)
	assert.Equal(t, "src.out>dst.in", status.Connections[0].Label)
}

func TestGraphEndpointRendersMermaid(t *testing.T) {
	ctl, g, promReg, _ := startGraph(t)
	srv := httptest.NewServer(NewHandler(ctl, g, promReg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "graph LR")
	assert.Contains(t, string(body), "src")
}

func TestMetricsEndpoint(t *testing.T) {
	ctl, g, promReg, sink := startGraph(t)
	require.NoError(t, sink.WaitFor(2, 5*time.Second))

	srv := httptest.NewServer(NewHandler(ctl, g, promReg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "weft_actor_firings_total")
}

func TestMetricsRouteOmittedWithoutGatherer(t *testing.T) {
	ctl, g, _, _ := startGraph(t)
	srv := httptest.NewServer(NewHandler(ctl, g, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStopEndpoint(t *testing.T) {
	ctl, g, promReg, _ := startGraph(t)
	srv := httptest.NewServer(NewHandler(ctl, g, promReg))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/stop", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case <-ctl.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("graph did not stop")
	}
}

func TestDrainEndpoint(t *testing.T) {
	ctl, g, promReg, _ := startGraph(t)
	srv := httptest.NewServer(NewHandler(ctl, g, promReg))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/drain", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The control surface keeps answering after a drain.
	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
