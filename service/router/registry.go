package router

import (
	"sort"
	"sync"
)

// Registry maps reviewer ids to their roles.  It is read-mostly, process-wide
// configuration; mutation is synchronised independently of per-entity locks.
type Registry struct {
	mu        sync.RWMutex
	reviewers map[string][]string // reviewer id -> roles (doubling as group names)
}

// NewRegistry creates an empty reviewer registry.
func NewRegistry() *Registry {
	return &Registry{reviewers: make(map[string][]string)}
}

// Add registers a reviewer with the supplied roles, replacing any previous
// registration.
func (r *Registry) Add(reviewerID string, roles ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviewers[reviewerID] = append([]string(nil), roles...)
}

// Remove deregisters a reviewer.
func (r *Registry) Remove(reviewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reviewers, reviewerID)
}

// Roles returns the roles of the supplied reviewer.
func (r *Registry) Roles(reviewerID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.reviewers[reviewerID]...)
}

// ByRole returns the ids of all reviewers holding the supplied role, sorted
// for deterministic assignment.
func (r *Registry) ByRole(role string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []string
	for id, roles := range r.reviewers {
		for _, candidate := range roles {
			if candidate == role {
				matched = append(matched, id)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

// Size returns the number of registered reviewers.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reviewers)
}
