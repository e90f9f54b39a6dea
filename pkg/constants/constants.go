// Package constants collects the small set of default tunables shared
// across pipeline, lookup and connector packages, trimmed from the
// teacher's larger constants file down to three runtime defaults (the
// REST/agent/actor-system constants belonged to subsystems this
// repository doesn't carry — see DESIGN.md).
package constants

import "time"

const (
	// DefaultTimeout bounds cmd/pump's graceful shutdown. Connectors do
	// not read it.
	DefaultTimeout = 30 * time.Second

	// DefaultLookupRefreshInterval is a default lookup refresh period.
	// Nothing in this repository reads it: EnsureFutureUpdate takes its
	// interval from the caller and does not fall back to this value.
	DefaultLookupRefreshInterval = 60 * time.Second

	// DefaultInternalQueueWarnDepth is a backlog size for an Internal
	// source's queue-depth gauge. Nothing in this repository compares
	// the gauge against it; the queue itself is unbounded (see
	// source.Internal).
	DefaultInternalQueueWarnDepth = 5000
)
