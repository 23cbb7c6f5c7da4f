// Package store is a path addressable in-memory tree with an attached
// command scheduler.
//
// A Store owns one tree, an asyncstate.Table, an optimistic.Ledger and a
// sched.Scheduler. All of them are confined to the store's sched.Loop: the
// exported methods send closures to the loop and wait for them, and
// operation completions are posted back to it. Operations themselves run
// on their own goroutines, at most Config.MaxConcurrent at a time.
//
// Lifecycle of a submitted command at path p:
//
//	submit    state(p) = loading; optimistic value written at p if given
//	success   state(p) = success; result written at p (or committed)
//	failure   state(p) = error; optimistic write rolled back if requested
//	cancel    state(p) = idle; optimistic write always rolled back
//
// Rollback restores the whole tree captured when the optimistic value was
// applied, so writes to other paths made in between are lost.
package store
