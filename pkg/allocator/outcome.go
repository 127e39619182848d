package allocator

import (
	"context"
	"sync"
)

// Outcome is the one-shot provisioning-complete signal for a scope. It
// resolves exactly once, to success or to a permanently recorded error, and
// every observer sees the same result.
type Outcome struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

// resolve settles the outcome. Later calls are no-ops, so a registry close
// cannot overwrite a real result and vice versa.
func (o *Outcome) resolve(err error) {
	o.once.Do(func() {
		o.err = err
		close(o.done)
	})
}

// Done is closed when provisioning has resolved either way.
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Err returns the recorded error, or nil while pending or after success.
func (o *Outcome) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Ready reports a successful resolution.
func (o *Outcome) Ready() bool {
	select {
	case <-o.done:
		return o.err == nil
	default:
		return false
	}
}

// Pending reports that provisioning has not resolved yet.
func (o *Outcome) Pending() bool {
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the outcome resolves or the context is cancelled,
// returning the recorded error on resolution.
func (o *Outcome) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
