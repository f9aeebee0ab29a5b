package ducking

import (
	"context"
	"sync"
)

// coordinator nests one cancellation scope per fade batch under the loop's
// scope. Launch cancels the running batch before the next one is created but
// never waits for it to finish, so writes from both batches may briefly overlap.
// It is owned by the decision loop goroutine.
type coordinator struct {
	parent context.Context
	cancel context.CancelFunc // scope of the current batch, nil when none
	seq    uint64
	wg     sync.WaitGroup
}

// newCoordinator returns a coordinator whose batch scopes derive from parent.
func newCoordinator(parent context.Context) *coordinator {
	return &coordinator{parent: parent}
}

// Launch supersedes the current batch and runs fn in a fresh scope.
// It returns the sequence number of the new batch.
func (c *coordinator) Launch(fn func(ctx context.Context, seq uint64)) uint64 {
	if c.cancel != nil {
		c.cancel()
	}

	ctx, cancel := context.WithCancel(c.parent)
	c.cancel = cancel
	c.seq++
	seq := c.seq

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		fn(ctx, seq)
	}()
	return seq
}

// Cancel cancels the current batch, if any.
func (c *coordinator) Cancel() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Wait blocks until every launched batch has returned.
func (c *coordinator) Wait() {
	c.wg.Wait()
}

// Done returns a channel closed once every launched batch has returned.
func (c *coordinator) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	return done
}
