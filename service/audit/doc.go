// Package audit implements the append-only trail fed by every manager's state
// transitions.  Entries are never mutated or deleted; observers subscribe to
// the trail's queue without the managers holding references to them.
package audit
