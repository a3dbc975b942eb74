package guardrail

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"

	"github.com/viant/guardrail/service/classifier"
	"github.com/viant/guardrail/service/guard"
	"github.com/viant/guardrail/service/lock"
	"github.com/viant/guardrail/service/meta"
	"github.com/viant/guardrail/service/retry"
	"github.com/viant/guardrail/service/router"
)

// ConsensusConfig controls the passive, opt-out approval path.
type ConsensusConfig struct {
	// DefaultWindow is the opt-out window applied when the caller does not
	// specify one.
	DefaultWindow time.Duration `json:"defaultWindow,omitempty" yaml:"defaultWindow,omitempty"`

	// MinLevel is the least severe risk level that still opens a consensus
	// window; anything below it executes without ceremony.
	MinLevel classifier.RiskLevel `json:"minLevel,omitempty" yaml:"minLevel,omitempty"`
}

// Config is a serialisable representation of the engine configuration.  It
// can be populated from JSON, YAML, environment variables, etc.  The
// zero-value is useful - all nested fields inherit their package defaults.
type Config struct {
	Classifier   *classifier.Config      `json:"classifier,omitempty" yaml:"classifier,omitempty"`
	Requirements *lock.RequirementPolicy `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Routing      *router.Policy          `json:"routing,omitempty" yaml:"routing,omitempty"`
	Consensus    ConsensusConfig         `json:"consensus,omitempty" yaml:"consensus,omitempty"`
	Retry        *retry.Config           `json:"retry,omitempty" yaml:"retry,omitempty"`
	Guard        *guard.Config           `json:"guard,omitempty" yaml:"guard,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
// Callers may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Classifier:   classifier.DefaultConfig(),
		Requirements: lock.DefaultRequirementPolicy(),
		Routing:      router.DefaultPolicy(),
		Consensus: ConsensusConfig{
			DefaultWindow: 15 * time.Minute,
			MinLevel:      classifier.RiskLow,
		},
		Retry: retry.DefaultConfig(),
		Guard: guard.DefaultConfig(),
	}
}

// Validate returns an aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if err := c.Guard.Validate(); err != nil {
		return err
	}
	if c.Consensus.MinLevel != "" && c.Consensus.MinLevel.Rank() < 0 {
		return fmt.Errorf("consensus.minLevel: unknown level %q", c.Consensus.MinLevel)
	}
	return nil
}

// LoadConfig reads a YAML configuration from any URL the abstract file
// storage understands, layered over the defaults.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	config := DefaultConfig()
	if err := meta.New(afs.New(), "").Load(ctx, URL, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
