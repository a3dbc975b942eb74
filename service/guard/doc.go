// Package guard tracks per-actor signal history and rate-limit state, gating
// action submission before classification runs.  A deny short-circuits the
// pipeline; a flag lets the action proceed but forces reviewer routing.
package guard
