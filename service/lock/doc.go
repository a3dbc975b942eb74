// Package lock implements the hold placed on a high-risk action until enough
// reviewers clear it.  A locked action blocks only itself - unrelated actions
// are never affected by someone else's lock.
package lock
