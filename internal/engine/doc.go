// Package engine keeps a local projection of the bug ledger in step with the
// ledger itself.
//
// # Architecture
//
//	Session (connection, identities)
//	     ↓
//	Trigger ── Uninitialized → Ready → Loading → Ready ...
//	     ↓
//	Reader.LoadAll ── count, then record 0..n-1, decoded
//	     ↓
//	Projection (atomically replaced) ──→ Sink (presentation boundary)
//	     ↑
//	Dispatcher ── AddBug / UpdateStatus / DeleteBug
//	     └── on ledger acceptance: Trigger.Request
//
// The ledger has no push or subscribe mechanism, so the only way to learn
// its state is a full pull. Every successful command ends with a
// reconciliation request; every failed command ends without one, so local
// state may be stale but never claims a write that did not happen.
//
// # Coalescing
//
// The Trigger runs at most one load at a time. Requests that arrive while a
// load is in flight collapse into a single follow-up load, which the
// goroutine running the current load performs before returning:
//
//	Request A ── load 1 ───────── load 2 ── done
//	Request B ──── (pending) ── returns
//	Request C ────── (pending) ── returns
//
// # Error Handling
//
//   - *session.ConnectionError: bootstrap failed; fatal (IsFatal)
//   - *LoadError: a read failed; the previous projection is kept
//   - *CommandError: a write was rejected; no reconciliation
//   - ErrPreconditionNotMet: delete of an unresolved bug; no write attempted
//
// Every error is also reported to the Sink as the terminal outcome of the
// operation that produced it. The engine stays usable after any failure.
package engine
