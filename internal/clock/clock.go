package clock

import "time"

// NowFunc returns current time. Override in tests for determinism - deadline
// races (veto vs expiry) are exercised with a stubbed clock.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }
