// Package router assigns gated items (locks and escalated consensus items) to
// reviewer groups.  Routing is idempotent per item - while a review is open no
// second one is created - and an overdue review may be re-routed once to a
// broader group.
package router
