package syncer

import (
	"context"
	"fmt"

	"github.com/quotesync/quote-sync-service/internal/ledger"
	"github.com/quotesync/quote-sync-service/internal/plugin"
)

// RequiredServices names the downstream handles the runner cannot operate
// without. The host checks these before OnInit is ever called.
func (r *Runner) RequiredServices() []string {
	return []string{ServiceNamespaces, ServiceIngest}
}

// OnInit records the host's downstream service handles and moves the runner
// to initialized. The returned teardown is Shutdown.
func (r *Runner) OnInit(ctx context.Context, host plugin.Host) (plugin.Teardown, error) {
	handle, err := host.Service(ServiceNamespaces)
	if err != nil {
		return nil, err
	}
	namespaces, ok := handle.(ledger.NamespaceRegistry)
	if !ok {
		return nil, fmt.Errorf("service %q does not implement NamespaceRegistry", ServiceNamespaces)
	}

	handle, err = host.Service(ServiceIngest)
	if err != nil {
		return nil, err
	}
	ingestor, ok := handle.(ledger.RecordIngestor)
	if !ok {
		return nil, fmt.Errorf("service %q does not implement RecordIngestor", ServiceIngest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateUninitialized {
		return nil, fmt.Errorf("runner already initialized")
	}
	r.namespaces = namespaces
	r.ingestor = ingestor
	r.state = StateInitialized
	return r.Shutdown, nil
}

// OnReady moves the runner to ready and starts the configured triggers: the
// first timer tick, and the push channel's first connect attempt.
func (r *Runner) OnReady(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateInitialized {
		r.mu.Unlock()
		return fmt.Errorf("runner is not initialized")
	}
	r.state = StateReady
	r.armTimerLocked()
	push := r.push
	r.mu.Unlock()

	r.logger.Info("sync runner ready", "interval", r.interval, "push", push)
	if push {
		go r.connectPush()
	}
	return nil
}

// Shutdown makes all further sync requests no-ops, cancels pending timers,
// closes the push channel, then waits for any in-flight run (including
// cycles it chained) to drain. Unsubscribe errors are logged, not returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateShuttingDown || r.state == StateShutDown {
		r.mu.Unlock()
		return nil
	}
	r.state = StateShuttingDown
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.reconnectTimer != nil {
		r.reconnectTimer.Stop()
		r.reconnectTimer = nil
	}
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.connected = false
	done := r.done
	r.mu.Unlock()

	if unsubscribe != nil {
		if err := unsubscribe(); err != nil {
			r.logger.Warn("push unsubscribe failed", "error", err)
		}
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.state = StateShutDown
	r.mu.Unlock()
	r.logger.Info("sync runner shut down")
	return nil
}
