// Package guardrail provides the safe-autonomy policy engine guarding an
// autonomous multi-agent platform from executing irreversible or harmful
// actions without oversight.
//
// Every proposed action is classified by risk and routed through one of
// three paths with pluggable service layers:
//
//   - guard      - per-actor rate limiting and abuse-pattern detection
//   - classifier - pure risk classification from action type and context
//   - lock       - hold on high-risk actions until sufficiently approved
//   - router     - reviewer-group routing with timed escalation
//   - consensus  - opt-out approval windows for lower-risk actions
//   - retry      - bounded, backed-off retries for transient failures
//   - audit      - append-only trail fed by every state transition
//
// The engine is designed to be embedded in host applications.  End-users
// typically interact through the high-level Service façade exposed by the
// root package:
//
//	srv := guardrail.New()
//	srv.RegisterReviewer("alice", "seniors")
//	outcome, _ := srv.SubmitAction(ctx, "agent-1", "transfer",
//	    classifier.ActionContext{Amount: 2500, Scope: "org"})
//
// A locked action blocks only itself - the platform never halts outright.
// For more details see the individual sub-packages.
package guardrail
