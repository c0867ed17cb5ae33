// Package observability exposes the engine's Prometheus collectors: firing
// and fault counters, fire duration histograms and per-connection queue
// depth gauges.
package observability
