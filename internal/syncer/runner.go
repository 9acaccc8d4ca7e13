// Package syncer contains the sync engine: it coalesces trigger signals
// into at-most-one active run, pulls paid quotes from the remote source
// since the stored watermark, forwards them grouped by namespace into the
// downstream ledger, and advances the watermark only after a fully
// successful cycle.
package syncer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quotesync/quote-sync-service/internal/ledger"
	"github.com/quotesync/quote-sync-service/internal/models"
	"github.com/quotesync/quote-sync-service/internal/source"
	"github.com/quotesync/quote-sync-service/internal/watermark"
)

// State is the runner's lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateReady
	StateShuttingDown
	StateShutDown
)

// Host service names the runner requires.
const (
	ServiceNamespaces = "ledger.namespaces"
	ServiceIngest     = "ledger.ingest"
)

// ReconnectConfig shapes the push channel's exponential backoff.
type ReconnectConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (c ReconnectConfig) withDefaults() ReconnectConfig {
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = time.Minute
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	return c
}

// Options configures a Runner. Source is required; a nil Store falls back to
// an in-memory watermark and a nil Logger to a discard logger, both decided
// once here. A zero Interval disables the timer trigger.
type Options struct {
	Source    source.Client
	Store     watermark.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Push      bool
	Reconnect ReconnectConfig
}

// Runner owns the trigger-coalescing state machine, the fetch cycle, and the
// push-channel reconnection state machine.
type Runner struct {
	source  source.Client
	store   watermark.Store
	logger  *slog.Logger
	backoff ReconnectConfig

	interval time.Duration
	push     bool

	mu      sync.Mutex
	state   State
	pending bool
	done    chan struct{}

	namespaces ledger.NamespaceRegistry
	ingestor   ledger.RecordIngestor

	timer *time.Timer

	connected      bool
	attempts       int
	reconnectTimer *time.Timer
	unsubscribe    source.UnsubscribeFunc
}

// noopDone is handed to callers whose request was a no-op: already closed,
// so waiting on it returns immediately.
var noopDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewRunner creates a sync runner. The downstream ledger handles arrive
// later, through OnInit.
func NewRunner(opts Options) *Runner {
	if opts.Store == nil {
		opts.Store = watermark.NewMemoryStore(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		source:   opts.Source,
		store:    opts.Store,
		logger:   opts.Logger.With("component", "syncer"),
		backoff:  opts.Reconnect.withDefaults(),
		interval: opts.Interval,
		push:     opts.Push,
	}
}

// RequestSync asks for a sync run. Safe to call concurrently from any
// trigger source.
//
// Before the runner is ready, or once shutdown has begun, the request is
// silently ignored and the returned channel is already closed. If a run is
// in flight the request is coalesced onto it: the pending flag makes the run
// execute one more full cycle, and the caller gets the same completion
// channel as everyone else waiting on that run. The channel closes when all
// pending work is done; cycle failures are logged, never surfaced to
// waiters.
func (r *Runner) RequestSync(trigger models.Trigger) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReady {
		r.logger.Debug("sync request ignored", "trigger", trigger, "state", r.state)
		return noopDone
	}
	if r.done != nil {
		r.pending = true
		r.logger.Debug("sync already running, queued follow-up", "trigger", trigger)
		return r.done
	}

	done := make(chan struct{})
	r.done = done
	go r.run(trigger, done)
	return done
}

// Sync triggers a manual run and waits for it to complete. Internal cycle
// failures do not surface here; the only error is a cancelled context.
func (r *Runner) Sync(ctx context.Context) error {
	done := r.RequestSync(models.TriggerManual)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes cycles until no follow-up request is pending. A failed cycle
// breaks the loop rather than retrying; the next trigger starts fresh from
// the unchanged watermark.
func (r *Runner) run(trigger models.Trigger, done chan struct{}) {
	defer close(done)

	ctx := context.Background()
	for {
		logger := r.logger.With("trigger", string(trigger), "cycle", uuid.NewString())
		err := r.syncOnce(ctx, logger)

		r.mu.Lock()
		if err != nil {
			logger.Error("sync cycle failed", "error", err)
			r.pending = false
			r.done = nil
			r.mu.Unlock()
			return
		}
		if !r.pending {
			r.done = nil
			r.mu.Unlock()
			return
		}
		r.pending = false
		r.mu.Unlock()
	}
}

// armTimerLocked schedules the next timer tick. Caller holds r.mu.
func (r *Runner) armTimerLocked() {
	if r.interval <= 0 {
		return
	}
	r.timer = time.AfterFunc(r.interval, r.timerTick)
}

// timerTick re-arms the next tick before requesting the sync, so the cadence
// is measured from tick start rather than cycle end.
func (r *Runner) timerTick() {
	r.mu.Lock()
	if r.state != StateReady {
		r.mu.Unlock()
		return
	}
	r.armTimerLocked()
	r.mu.Unlock()

	r.RequestSync(models.TriggerTimer)
}

// Status returns a point-in-time snapshot of the runner.
func (r *Runner) Status() models.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.Status{
		IsInitialized:   r.state >= StateInitialized,
		IsReady:         r.state == StateReady,
		IsSyncing:       r.done != nil,
		IsPushConnected: r.connected,
	}
}
