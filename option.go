package guardrail

import (
	"github.com/viant/guardrail/service/audit"
	"github.com/viant/guardrail/service/consensus"
	"github.com/viant/guardrail/service/guard"
	"github.com/viant/guardrail/service/lock"
	"github.com/viant/guardrail/service/retry"
	"github.com/viant/guardrail/service/router"
)

// Option customises the engine assembled by New.
type Option func(s *Service)

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithAuditService sets the audit trail shared by all managers.
func WithAuditService(trail *audit.Service) Option {
	return func(s *Service) { s.trail = trail }
}

// WithLockService sets the lock manager.
func WithLockService(svc lock.Service) Option {
	return func(s *Service) { s.locks = svc }
}

// WithRouter sets the approval router.
func WithRouter(svc *router.Service) Option {
	return func(s *Service) { s.router = svc }
}

// WithConsensusService sets the passive consensus manager.
func WithConsensusService(svc *consensus.Service) Option {
	return func(s *Service) { s.consensus = svc }
}

// WithGuardService sets the anti-abuse guard.
func WithGuardService(svc *guard.Service) Option {
	return func(s *Service) { s.guard = svc }
}

// WithRetryHandler sets the retry handler used by ExecuteWithRetry.
func WithRetryHandler(handler *retry.Handler) Option {
	return func(s *Service) { s.retries = handler }
}

// WithRegistry sets the reviewer registry.
func WithRegistry(registry *router.Registry) Option {
	return func(s *Service) { s.registry = registry }
}
