// Package progress provides a lightweight tracker that keeps aggregated
// submission counters (submitted, allowed, locked, denied, …) for a running
// engine.  Observers read snapshots; managers update counters atomically via
// the Delta helper without requiring a global registry.
package progress
