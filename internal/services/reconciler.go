package services

import (
	"context"
	"log"
	"sync"

	"github.com/ajramos/echomail/internal/mediator"
)

// Reconciler runs the assistant poller for the duration of a session and merges every diff it
// emits into the draft
type Reconciler struct {
	poller  *mediator.Poller
	compose ComposeService
	logger  *log.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewReconciler wires poller diffs into compose
func NewReconciler(poller *mediator.Poller, compose ComposeService, logger *log.Logger) *Reconciler {
	return &Reconciler{poller: poller, compose: compose, logger: logger}
}

// Start begins polling. Calling Start while running is a no-op.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poller.Running() {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	diffs, err := r.poller.Start(ctx)
	if err != nil {
		cancel()
		return err
	}
	r.cancel = cancel
	r.wg.Add(1)
	go r.consume(ctx, diffs)
	return nil
}

// Stop halts polling and waits until the last diff has been merged
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.poller.Stop()
	r.wg.Wait()
}

func (r *Reconciler) consume(ctx context.Context, diffs <-chan mediator.Diff) {
	defer r.wg.Done()
	for d := range diffs {
		r.compose.ApplyDiff(d)
		if _, err := r.compose.MaybeGenerate(ctx); err != nil && ctx.Err() == nil {
			if r.logger != nil {
				r.logger.Printf("reconciler: %v", err)
			}
		}
	}
}
