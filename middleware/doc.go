// Package middleware provides the hook pipeline that runs around action
// handling.
//
// A middleware is any value with an ID that opts in to one or more
// capabilities by implementing the matching interface:
//
//   - [BeforeAction]: runs before the handler with a read-only state copy
//   - [AfterAction]: runs after the handler, sees the result and elapsed time
//   - [ErrorHandling]: runs when a before/after hook failed
//
// [Full] is the composition of all three.
//
// A [Manager] holds middleware in registration order and filters by
// capability at registration time, so each stage runs its hooks in the
// order the middleware were added. Before and after stages are fail-fast:
// the first error stops the stage. The error stage is resilient: every
// error hook runs, and their failures are logged and joined.
//
// # Built-in Middleware
//
//   - [Logging]: structured slog records for every stage
//   - [Tracing]: one OpenTelemetry span per processed action
//   - [Metrics]: OpenTelemetry duration histogram and outcome counter
//   - [RateLimit]: token-bucket admission control before the handler
//   - [Before], [After], [OnError]: adapt plain functions
//
// # Writing Custom Middleware
//
//	type audit struct{}
//
//	func (audit) ID() string { return "audit" }
//
//	func (audit) AfterAction(ctx context.Context, a Action, s State, r result.Result[State], d time.Duration) error {
//	    // ...
//	    return nil
//	}
package middleware
