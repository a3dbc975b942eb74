// Package retry wraps a failable operation with bounded, backed-off retries.
// Transient failures are re-attempted with exponential, optionally jittered
// delays; fatal failures settle immediately without consuming attempts.
package retry
