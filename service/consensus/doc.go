// Package consensus implements the opt-out approval path: an item defaults to
// approved when its window expires without a veto.  Resolution is a single
// authoritative step per item - whichever of veto or expiry is processed
// first wins, the loser observes the terminal state and is a no-op.
package consensus
