// Package processor turns actions into results.
//
// A Processor wraps a user handler with a middleware pipeline:
//
//	before hooks (fail-fast) -> handler -> after hooks (fail-fast)
//	                    \________ on failure ________/
//	                              error hooks (resilient) -> error callback
//
// Before and after hooks observe a copy of the state. Only the handler
// receives mutable access, and it runs on the dispatcher's writer
// goroutine, so it never races with another handler.
//
// Processors are immutable. WithMiddleware, WithErrorHandler,
// WithResultTransform and WithLogger return a new Processor, which makes
// it safe to derive several processors from a shared base.
package processor
