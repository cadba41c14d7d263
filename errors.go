package uniflow

import "errors"

var (
	// Lifecycle errors.
	ErrClosed = errors.New("uniflow: dispatcher closed")

	// Mailbox errors.
	ErrMailboxFull   = errors.New("uniflow: mailbox full")
	ErrReentrantWait = errors.New("uniflow: wait from the writer goroutine would deadlock")

	// Construction errors.
	ErrNilProcessor  = errors.New("uniflow: nil processor")
	ErrInvalidConfig = errors.New("uniflow: invalid config")
)
