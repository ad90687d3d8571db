/*
Package metrics provides Prometheus metrics collection for the inventory router.

# Overview

The collector owns a private Prometheus registry and records where each verb
was routed, how long it took, how the router caches performed and what the
concurrency monitor flagged. It also keeps a small in-process summary per verb
for the debug endpoint.

	┌─────────────┐
	│  Collector  │  ← Main metrics aggregator
	└──────┬──────┘
	       │
	   ┌───┴────────────────────────────┐
	   │                                │
	┌──▼───────────┐         ┌──────────▼────────┐
	│  Prometheus  │         │  HTTP Endpoints   │
	│   Registry   │         │  /metrics         │
	│              │         │  /health          │
	│ - Counters   │         │  /debug/operations│
	│ - Histograms │         └───────────────────┘
	│ - Gauges     │
	└──────────────┘

# Exported Series

	route_decisions_total{operation,route}        route is local, remote or cache
	operation_duration_seconds{operation,route}
	cache_requests_total{cache,type}              cache is url, connector or result
	connector_constructions_total
	cached_connectors
	diagnostic_anomalies_total{kind}              kind is race, slow or stuck
	errors_total{operation,type}                  type is the error category

All names carry the configured namespace prefix.

# Usage

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      9103,
		Path:      "/metrics",
		Namespace: "hginventory",
	}, logger)
	if err != nil {
		return err
	}

	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer collector.Stop(ctx)

	start := time.Now()
	res := svc.GetRootFolder(ctx, user)
	collector.RecordRoute("GetRootFolder", metrics.RouteRemote, time.Since(start))
	if res.Status == types.StatusFailed {
		collector.RecordError("GetRootFolder", res.Err)
	}

A nil *Collector and a disabled one accept every call and record nothing, so
components can hold an optional collector without nil checks.
*/
package metrics
