// Package http exposes a running graph over a small control API: status
// snapshots, a Mermaid rendering, drain/stop, and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/weft/internal/presentation/graph"
	"github.com/aretw0/weft/internal/resolver"
	"github.com/aretw0/weft/internal/runtime"
)

// Graph is the controller surface the server needs.
type Graph interface {
	Snapshot() runtime.Status
	Drain(ctx context.Context) error
	Stop(ctx context.Context) error
	Warnings() []resolver.Warning
}

// Server serves the control API for one running graph.
type Server struct {
	graph    Graph
	flat     *resolver.FlatGraph
	gatherer prometheus.Gatherer
}

// NewHandler builds the control API router. gatherer may be nil when metrics
// are disabled; the /metrics route is then omitted.
func NewHandler(g Graph, flat *resolver.FlatGraph, gatherer prometheus.Gatherer) http.Handler {
	s := &Server{graph: g, flat: flat, gatherer: gatherer}
	r := chi.NewRouter()

	r.Get("/status", s.getStatus)
	r.Get("/graph", s.getGraph)
	r.Post("/drain", s.postDrain)
	r.Post("/stop", s.postStop)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	type statusResponse struct {
		runtime.Status
		Warnings []resolver.Warning `json:"warnings,omitempty"`
	}
	resp := statusResponse{Status: s.graph.Snapshot(), Warnings: s.graph.Warnings()}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, fmt.Sprintf("encoding status: %v", err), http.StatusInternalServerError)
	}
}

// getGraph renders the structure as Mermaid, overlaying live actor states.
func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	states := map[string]string{}
	for _, a := range s.graph.Snapshot().Actors {
		states[a.Name] = a.State
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.Mermaid(s.flat, &graph.Overlay{States: states}))
}

func (s *Server) postDrain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := s.graph.Drain(ctx); err != nil {
		http.Error(w, fmt.Sprintf("drain: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postStop tears the graph down. The request context is not used: the stop
// must complete even if the caller disconnects.
func (s *Server) postStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.graph.Stop(ctx); err != nil {
		http.Error(w, fmt.Sprintf("stop: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
