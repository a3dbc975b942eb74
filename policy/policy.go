package policy

import (
	"context"
	"strings"
)

// Submission modes recognised by the engine.
const (
	ModeEnforce = "enforce" // apply allow/block lists (default)
	ModeObserve = "observe" // evaluate lists but never block, audit only
)

// Policy represents the static submission settings for the current caller.
//
//   - Mode controls whether list hits block or merely get audited.
//   - AllowList, BlockList filter by fully-qualified action type.
//
// A nil *Policy means "submit everything to the regular pipeline" and is
// therefore the zero-cost default.
type Policy struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// IsAllowed evaluates AllowList / BlockList.  Both lists match by exact,
// case-insensitive comparison of the action type.  BlockList has priority;
// an empty AllowList admits everything.
func (p *Policy) IsAllowed(actionType string) bool {
	if p == nil || p.Mode == ModeObserve {
		return true
	}

	normalized := strings.ToLower(actionType)

	for _, blocked := range p.BlockList {
		if normalized == strings.ToLower(blocked) {
			return false
		}
	}

	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if normalized == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the *Policy embedded in ctx, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
