package mediator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
)

const (
	// DefaultInterval is the polling period of the assistant state
	DefaultInterval = time.Second

	defaultTickTimeout = 10 * time.Second
)

// ErrAlreadyRunning is returned by Start while a polling loop is active
var ErrAlreadyRunning = errors.New("mediator poller already running")

// StateSource provides the current assistant snapshot
type StateSource interface {
	MediatorState(ctx context.Context) (*mailbox.Snapshot, error)
}

// Options configures a Poller
type Options struct {
	Interval    time.Duration
	TickTimeout time.Duration
	Logger      *log.Logger
}

// Poller polls a StateSource on a fixed period while started, keeps the previous and current
// snapshots and emits a Diff after each successful tick once both exist.
type Poller struct {
	source      StateSource
	interval    time.Duration
	tickTimeout time.Duration
	logger      *log.Logger

	mu       sync.Mutex
	previous *mailbox.Snapshot
	current  *mailbox.Snapshot
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPoller creates an idle poller
func NewPoller(source StateSource, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	tickTimeout := opts.TickTimeout
	if tickTimeout <= 0 {
		tickTimeout = defaultTickTimeout
	}
	return &Poller{
		source:      source,
		interval:    interval,
		tickTimeout: tickTimeout,
		logger:      opts.Logger,
	}
}

// Start begins polling. Diffs are delivered on the returned channel, which is closed once the
// loop exits after Stop or cancellation of ctx.
func (p *Poller) Start(ctx context.Context) (<-chan Diff, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil, ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	diffs := make(chan Diff, 1)
	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done

	go p.loop(loopCtx, diffs, done)
	p.logf("mediator poller: started (interval %s)", p.interval)
	return diffs, nil
}

// Stop halts polling and waits for the loop to exit. Snapshots are discarded so the next
// session starts from scratch.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	p.mu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.previous = nil
	p.current = nil
	p.mu.Unlock()
	p.logf("mediator poller: stopped")
}

// Running reports whether the poller is in the polling state
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Snapshots returns copies of the previous and current snapshots, nil when absent
func (p *Poller) Snapshots() (previous, current *mailbox.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneSnapshot(p.previous), cloneSnapshot(p.current)
}

func (p *Poller) loop(ctx context.Context, diffs chan<- Diff, done chan<- struct{}) {
	defer close(done)
	defer close(diffs)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d, ok, err := p.Tick(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logf("mediator poller: tick failed: %v", err)
				}
				continue
			}
			if !ok {
				continue
			}
			select {
			case diffs <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Tick polls once. On success the current snapshot becomes the previous one and the fetched
// snapshot becomes current; ok is true when both exist and d holds their diff. A failed tick
// leaves both snapshots unchanged.
func (p *Poller) Tick(ctx context.Context) (d Diff, ok bool, err error) {
	tctx, cancel := context.WithTimeout(ctx, p.tickTimeout)
	defer cancel()

	snap, err := p.source.MediatorState(tctx)
	if err != nil {
		return Diff{}, false, err
	}
	if snap == nil {
		return Diff{}, false, errors.New("empty mediator state")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.previous = p.current
	p.current = cloneSnapshot(snap)
	if p.previous == nil {
		return Diff{}, false, nil
	}
	return Compute(*cloneSnapshot(p.previous), *cloneSnapshot(p.current)), true, nil
}

func (p *Poller) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}

func cloneSnapshot(s *mailbox.Snapshot) *mailbox.Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.CC = append([]string(nil), s.CC...)
	out.BCC = append([]string(nil), s.BCC...)
	if s.RecipientOptions != nil {
		out.RecipientOptions = append([]byte(nil), s.RecipientOptions...)
	}
	return &out
}
