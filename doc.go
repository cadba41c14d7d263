// Package uniflow is a unidirectional action-dispatch engine.
//
// A Dispatcher owns a value of state type S. Callers send actions of type
// A; each action runs through a processor.Processor (before middleware,
// handler, after middleware, and on failure the error middleware) on a
// single writer goroutine, so handlers never race. A handler may return a
// result that starts an asynchronous task or cancels one. Tasks run on
// their own goroutines and write back to state through the same writer.
//
// # Quick Start
//
//	type Counter struct{ N int }
//	type Op int
//
//	proc := processor.New(func(ctx context.Context, op Op, s *Counter) result.Result[Counter] {
//	    s.N += int(op)
//	    return result.None[Counter]()
//	}).WithMiddleware(middleware.Logging[Counter, Op](nil))
//
//	d, err := uniflow.New(Counter{}, proc)
//	if err != nil { ... }
//	defer d.Close(context.Background())
//
//	_ = d.Dispatch(ctx, Op(1))
//	fmt.Println(d.State().N) // 1
//
// # Tasks
//
// Returning result.Run from a handler starts an operation under a task id.
// Starting under an id that is already running cancels the earlier run
// first; the superseded run's error callback never fires. Operations
// observe cancellation through their context and apply state changes
// with task.State.Update, which refuses once the run was cancelled.
//
// # Reentrancy
//
// Handlers and middleware receive a context that identifies the writer
// goroutine. Send called with that context never blocks: it fails with
// ErrMailboxFull instead. Receipt.Wait called with it fails with
// ErrReentrantWait.
//
// All identifiers use TypeID: type-prefixed, K-sortable, UUIDv7-based.
package uniflow
