// Package metrics centralizes the explorer's Prometheus instrumentation:
// instrumentation of the explorer's own hot paths, not performance/load
// testing of the System Under Test, which stays out of scope. Covers five
// explorer-relevant metric families: states, transitions, violations,
// action duration, and checkpoint duration.
//
// A lazy, sync.Once-guarded category manager exposed as a process-wide
// singleton.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the central registry for the explorer's Prometheus metrics.
type Registry struct {
	namespace string

	core    *CoreMetrics
	coreOnce sync.Once
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global singleton Registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry("venomqa")
	})
	return defaultRegistry
}

// NewRegistry creates a namespaced Registry. Most callers should use
// DefaultRegistry(); NewRegistry exists for callers that want metrics under
// a different namespace. Its Core metrics still register with
// prometheus.DefaultRegisterer, not with a separate Registerer.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "venomqa"
	}
	return &Registry{namespace: namespace}
}

// Core returns the explorer's core-loop metrics, lazily registering them with
// the default Prometheus registerer on first access.
func (r *Registry) Core() *CoreMetrics {
	r.coreOnce.Do(func() {
		r.core = newCoreMetrics(r.namespace, prometheus.DefaultRegisterer)
	})
	return r.core
}

func (r *Registry) Namespace() string { return r.namespace }
