// Package policy provides optional declarative submission rules that can be
// applied on top of a running engine - coarse allow/block filtering of action
// types regardless of what the classifier would decide.
package policy
