package retry

import (
	"fmt"
	"math/rand"
	"time"
)

// Config bounds the retry loop.  The numeric defaults are tuning knobs to be
// aligned with product policy, not invariants.
type Config struct {
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
	BaseDelay   time.Duration `json:"baseDelay" yaml:"baseDelay"`
	Multiplier  float64       `json:"multiplier" yaml:"multiplier"`
	MaxDelay    time.Duration `json:"maxDelay" yaml:"maxDelay"`
	Jitter      bool          `json:"jitter" yaml:"jitter"`
}

// DefaultConfig returns a standard retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    5 * time.Second,
		Jitter:      true,
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("retry: maxAttempts must be > 0")
	}
	if c.BaseDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("retry: delays must not be negative")
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("retry: multiplier must be >= 1")
	}
	return nil
}

// Backoff computes the delay before the given zero-based attempt:
// base * multiplier^attempt, capped at MaxDelay.  With Jitter enabled the
// returned delay is uniformly random in [0, computed] so that many agents
// retrying at once do not stampede.
func Backoff(attempt int, config *Config) time.Duration {
	if config == nil {
		config = DefaultConfig()
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(config.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= config.Multiplier
		if config.MaxDelay > 0 && delay >= float64(config.MaxDelay) {
			delay = float64(config.MaxDelay)
			break
		}
	}
	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	computed := time.Duration(delay)
	if config.Jitter && computed > 0 {
		computed = time.Duration(rand.Int63n(int64(computed) + 1))
	}
	return computed
}
