// Package task tracks cancellable asynchronous operations by caller-chosen
// string ids.
//
// A [Registry] starts each [Operation] on its own goroutine with a
// cancellable context. The registry does not own the state the operation
// works on; it is bound to an [Owner] that serializes every state access
// onto a single writer goroutine. Operations mutate state through
// [State.Update], and completion bookkeeping (error callback, record
// removal) is posted to the same owner, so state is never written from two
// places at once.
//
// # Id reuse
//
// Starting an operation under an id that is already running cancels the
// earlier run first. The superseded run is treated as cancelled: its
// error callback never fires and its later updates are rejected.
//
// # Cancellation
//
// Cancellation is cooperative. The operation's context is cancelled and
// its record removed immediately; the operation is expected to notice at
// its next suspension point (see [Sleep]) and return.
//
// # Observers
//
// Observers opt in to lifecycle notifications by implementing any of
// [StartedHook], [CompletedHook], [FailedHook] or [CancelledHook]. Hook
// errors are logged and never propagated.
package task
