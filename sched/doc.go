// Package sched runs asynchronous commands with priority ordering, a
// concurrency limit, cancellation and retry with exponential backoff.
//
// # Ownership
//
// A Scheduler is confined to a single owner goroutine, normally a Loop. All
// of its methods must be called there. Operations run on their own
// goroutines; their completions are posted back to the owner, which removes
// the command from the executing set, runs the Settled hook and admits the
// next pending commands.
//
// # Lifecycle
//
//	pending → executing → {completed, failed, cancelled}
//
// A command is in at most one of pending and executing. Cancelling a command
// that already settled is a no-op. A completion that arrives for a command no
// longer executing (because it was cancelled) is dropped.
//
// # Retry
//
// A failed attempt is retried while attempt < Retry.Count, waiting
// Retry.Delay × 2^attempt between attempts. Retries keep the command's
// executing slot. Cancellation is never retried.
package sched
