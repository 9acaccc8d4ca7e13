package syncer

import (
	"context"
	"math"
	"time"

	"github.com/quotesync/quote-sync-service/internal/models"
)

// connectPush attempts to open the push channel. On success the attempt
// counter resets; on failure the error path schedules the next attempt.
func (r *Runner) connectPush() {
	r.mu.Lock()
	if r.state != StateReady {
		r.mu.Unlock()
		return
	}
	r.reconnectTimer = nil
	r.mu.Unlock()

	unsubscribe, err := r.source.Subscribe(context.Background(),
		func(event []byte) {
			r.RequestSync(models.TriggerPush)
		},
		r.pushError,
	)
	if err != nil {
		r.pushError(err)
		return
	}

	r.mu.Lock()
	if r.state != StateReady {
		// Shutdown raced the connect; drop the fresh subscription.
		r.mu.Unlock()
		if err := unsubscribe(); err != nil {
			r.logger.Warn("push unsubscribe failed", "error", err)
		}
		return
	}
	r.unsubscribe = unsubscribe
	r.connected = true
	r.attempts = 0
	r.mu.Unlock()

	r.logger.Info("push channel connected")
}

// pushError handles both synchronous subscribe failures and mid-stream
// errors. Scheduling is idempotent: while a reconnect is pending, further
// errors are dropped.
func (r *Runner) pushError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connected = false
	r.unsubscribe = nil

	if r.state != StateReady || r.reconnectTimer != nil {
		return
	}

	delay := r.backoff.delay(r.attempts)
	r.attempts++
	r.logger.Warn("push channel error, scheduling reconnect",
		"error", err, "attempt", r.attempts, "delay", delay)
	r.reconnectTimer = time.AfterFunc(delay, r.connectPush)
}

// delay is min(initial * multiplier^attempts, max).
func (c ReconnectConfig) delay(attempts int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempts))
	if d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}
