// Package metrics exposes the node's Prometheus metrics.
//
// Collectors live on a private registry so tests can create independent
// instances. Every recording method is safe on a nil *Metrics, which lets
// components run without metrics wired in.
//
// # Usage
//
//	m := metrics.New()
//	producer.SetRecorder(m)
//	router.Handle("/metrics", m.Handler())
package metrics
