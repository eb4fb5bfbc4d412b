// Package control provides the Client's runtime introspection layer: a
// metrics registry, debug probe registry, a dynamic config store for
// runtime-adjustable client options, and hot-reload propagation hooks.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - Runtime observers for hot-reload
//   - Metrics telemetry contracts
//   - State export, debug hooks, and probe registration
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
