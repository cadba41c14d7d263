package uniflow

import (
	"context"

	"github.com/xraph/uniflow/result"
)

// Receipt tracks one sent action until the writer goroutine has processed
// it and carried out its side effect.
type Receipt struct {
	id    ID
	owner any
	done  chan struct{}

	// written before done is closed
	kind result.Kind
	err  error
}

func newReceipt(owner any) *Receipt {
	return &Receipt{
		id:    newReceiptID(),
		owner: owner,
		done:  make(chan struct{}),
	}
}

func (r *Receipt) finish(kind result.Kind, err error) {
	r.kind = kind
	r.err = err
	close(r.done)
}

// ID returns the receipt's unique id.
func (r *Receipt) ID() ID { return r.id }

// Done is closed once the action has been processed.
func (r *Receipt) Done() <-chan struct{} { return r.done }

// Err returns the pipeline error after Done is closed, or nil.
func (r *Receipt) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Kind returns the side effect that was carried out after Done is closed.
// A failed pipeline always reports result.KindNone.
func (r *Receipt) Kind() result.Kind {
	select {
	case <-r.done:
		return r.kind
	default:
		return result.KindNone
	}
}

// Wait blocks until the action has been processed and returns its
// pipeline error. It returns ctx.Err() if ctx ends first, and
// ErrReentrantWait when called from the writer goroutine of the
// dispatcher that issued the receipt.
func (r *Receipt) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	default:
	}
	if onWriter(ctx, r.owner) {
		return ErrReentrantWait
	}
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
