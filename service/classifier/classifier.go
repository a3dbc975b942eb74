package classifier

import (
	"fmt"
	"strings"
)

// ActionContext carries the contextual signals considered during
// classification.  All fields are optional, but note the zero value leaves
// Reversible false, so an unpopulated context still accrues the
// irreversibility penalty on top of the action type weight.
type ActionContext struct {
	Amount     float64           `json:"amount,omitempty" yaml:"amount,omitempty"`         // monetary or quota impact of the action
	Scope      string            `json:"scope,omitempty" yaml:"scope,omitempty"`           // blast radius, e.g. self/team/org/global
	Reversible bool              `json:"reversible,omitempty" yaml:"reversible,omitempty"` // whether the effect can be undone
	Labels     map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`         // informative only, never scored
}

// Classification is the verdict for a single action.
type Classification struct {
	Level     RiskLevel `json:"level"`
	Penalty   float64   `json:"penalty"` // accumulated numeric score, fed into anti-abuse tracking
	Locked    bool      `json:"locked"`  // true when the level meets the lock threshold
	Rationale string    `json:"rationale"`
}

// AmountBand maps an amount threshold to an additional penalty.  Bands are
// evaluated in declaration order; the last band whose Above value is not
// greater than the amount wins.
type AmountBand struct {
	Above   float64 `json:"above" yaml:"above"`
	Penalty float64 `json:"penalty" yaml:"penalty"`
}

// Config holds the static penalty table and level thresholds.  The numeric
// defaults are tuning knobs, not invariants - deployments override them to
// match product policy.
type Config struct {
	ActionWeights map[string]float64 `json:"actionWeights,omitempty" yaml:"actionWeights,omitempty"`
	DefaultWeight float64            `json:"defaultWeight,omitempty" yaml:"defaultWeight,omitempty"`
	ScopeWeights  map[string]float64 `json:"scopeWeights,omitempty" yaml:"scopeWeights,omitempty"`
	AmountBands   []AmountBand       `json:"amountBands,omitempty" yaml:"amountBands,omitempty"`

	// IrreversiblePenalty is added when the action cannot be undone.
	IrreversiblePenalty float64 `json:"irreversiblePenalty,omitempty" yaml:"irreversiblePenalty,omitempty"`

	// Level cut points - a penalty at or above the threshold yields the level.
	LowAt      float64 `json:"lowAt,omitempty" yaml:"lowAt,omitempty"`
	MediumAt   float64 `json:"mediumAt,omitempty" yaml:"mediumAt,omitempty"`
	HighAt     float64 `json:"highAt,omitempty" yaml:"highAt,omitempty"`
	CriticalAt float64 `json:"criticalAt,omitempty" yaml:"criticalAt,omitempty"`

	// LockThreshold is the least severe level that requires a full lock.
	LockThreshold RiskLevel `json:"lockThreshold,omitempty" yaml:"lockThreshold,omitempty"`
}

// DefaultConfig returns the built-in penalty table.
func DefaultConfig() *Config {
	return &Config{
		ActionWeights: map[string]float64{
			"read":       0,
			"notify":     5,
			"write":      20,
			"deploy":     40,
			"delete":     55,
			"transfer":   60,
			"credential": 70,
		},
		DefaultWeight: 25,
		ScopeWeights: map[string]float64{
			"self":   0,
			"team":   10,
			"org":    20,
			"global": 35,
		},
		AmountBands: []AmountBand{
			{Above: 100, Penalty: 10},
			{Above: 1000, Penalty: 25},
			{Above: 10000, Penalty: 45},
		},
		IrreversiblePenalty: 25,
		LowAt:               10,
		MediumAt:            35,
		HighAt:              65,
		CriticalAt:          95,
		LockThreshold:       RiskHigh,
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.LockThreshold != "" && c.LockThreshold.Rank() < 0 {
		return fmt.Errorf("classifier: unknown lock threshold %q", c.LockThreshold)
	}
	if !(c.LowAt <= c.MediumAt && c.MediumAt <= c.HighAt && c.HighAt <= c.CriticalAt) {
		return fmt.Errorf("classifier: level thresholds must be non-decreasing")
	}
	return nil
}

// Classify computes the risk classification for the supplied action type and
// context.  It is referentially transparent: identical inputs always yield an
// identical classification.
func Classify(actionType string, actionCtx ActionContext, config *Config) Classification {
	if config == nil {
		config = DefaultConfig()
	}

	var reasons []string
	penalty := config.DefaultWeight
	if weight, ok := config.ActionWeights[strings.ToLower(actionType)]; ok {
		penalty = weight
		reasons = append(reasons, fmt.Sprintf("action %q weighs %g", actionType, weight))
	} else {
		reasons = append(reasons, fmt.Sprintf("unlisted action %q uses default weight %g", actionType, config.DefaultWeight))
	}

	if actionCtx.Scope != "" {
		if weight, ok := config.ScopeWeights[strings.ToLower(actionCtx.Scope)]; ok {
			penalty += weight
			reasons = append(reasons, fmt.Sprintf("scope %q adds %g", actionCtx.Scope, weight))
		}
	}

	if band, ok := amountBand(actionCtx.Amount, config.AmountBands); ok {
		penalty += band.Penalty
		reasons = append(reasons, fmt.Sprintf("amount %g exceeds %g adding %g", actionCtx.Amount, band.Above, band.Penalty))
	}

	if !actionCtx.Reversible {
		penalty += config.IrreversiblePenalty
		reasons = append(reasons, fmt.Sprintf("irreversible effect adds %g", config.IrreversiblePenalty))
	}

	level := levelFor(penalty, config)
	threshold := config.LockThreshold
	if threshold == "" {
		threshold = RiskHigh
	}
	locked := level.AtLeast(threshold)
	if locked {
		reasons = append(reasons, fmt.Sprintf("level %s meets lock threshold %s", level, threshold))
	}

	return Classification{
		Level:     level,
		Penalty:   penalty,
		Locked:    locked,
		Rationale: fmt.Sprintf("risk %s (penalty %g): %s", level, penalty, strings.Join(reasons, "; ")),
	}
}

// IsLocked reports whether the classification requires the full lock and
// approval path.
func IsLocked(c Classification) bool { return c.Locked }

func amountBand(amount float64, bands []AmountBand) (AmountBand, bool) {
	var matched AmountBand
	var ok bool
	for _, band := range bands {
		if amount > band.Above {
			matched = band
			ok = true
		}
	}
	return matched, ok
}

func levelFor(penalty float64, config *Config) RiskLevel {
	switch {
	case penalty >= config.CriticalAt:
		return RiskCritical
	case penalty >= config.HighAt:
		return RiskHigh
	case penalty >= config.MediumAt:
		return RiskMedium
	case penalty >= config.LowAt:
		return RiskLow
	}
	return RiskNone
}
