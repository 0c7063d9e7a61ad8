package engine

import "sync"

// Cancellation is a one-shot cooperative cancellation signal observed by
// the file-mode planner goroutine (before each send), the stream Planner
// (between reads), the workers (before each partition), the Job after the
// workers finish (to skip Finish), and optionally by Map implementations.
// Setting it is idempotent and irreversible within a job instance.
//
// A Strategy receives a *Cancellation at construction time and nothing
// else that reaches back into the engine (spec §9 design note: "the
// strategy holds no back-reference to the engine except an atomic
// cancellation handle passed in at construction").
type Cancellation struct {
	once sync.Once
	ch   chan struct{}
}

// NewCancellation returns a fresh, un-triggered Cancellation.
func NewCancellation() *Cancellation {
	return &Cancellation{ch: make(chan struct{})}
}

// Cancel raises the signal. Safe to call multiple times and from multiple
// goroutines.
func (c *Cancellation) Cancel() {
	c.once.Do(func() { close(c.ch) })
}

// Cancelled reports whether Cancel has been called.
func (c *Cancellation) Cancelled() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when Cancel is called, for use in
// select statements.
func (c *Cancellation) Done() <-chan struct{} {
	return c.ch
}
