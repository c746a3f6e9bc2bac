// Package metrics exposes Prometheus instruments for the actor engine.
//
// A *Metrics value is created once per process with New and handed to the
// components through their options. Every method is safe to call on a nil
// receiver, so components run unchanged when metrics are disabled.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg, metrics.Config{ServiceName: "actorhost"})
//
//	rt := actor.NewRuntime(actor.WithMetrics(m))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics
