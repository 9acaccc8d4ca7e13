package syncer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotesync/quote-sync-service/internal/models"
	"github.com/quotesync/quote-sync-service/internal/source"
)

func TestReconnectDelay(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}

	assert.Equal(t, 1*time.Second, cfg.delay(0))
	assert.Equal(t, 2*time.Second, cfg.delay(1))
	assert.Equal(t, 4*time.Second, cfg.delay(2))
	assert.Equal(t, 8*time.Second, cfg.delay(3))
	assert.Equal(t, 10*time.Second, cfg.delay(4), "capped at max delay")
	assert.Equal(t, 10*time.Second, cfg.delay(20), "stays capped")
}

func TestRunner_PushEventTriggersSync(t *testing.T) {
	fetched := make(chan struct{}, 16)
	var (
		mu        sync.Mutex
		onMessage func([]byte)
	)

	src := &fakeSource{
		fetchFn: func(ctx context.Context, since int64) ([]models.RawRecord, error) {
			select {
			case fetched <- struct{}{}:
			default:
			}
			return nil, nil
		},
		subscribeFn: func(ctx context.Context, onMsg func([]byte), onErr func(error)) (source.UnsubscribeFunc, error) {
			mu.Lock()
			onMessage = onMsg
			mu.Unlock()
			return func() error { return nil }, nil
		},
	}

	runner := newReadyRunner(t, Options{Source: src, Push: true}, newCountingSink())

	require.Eventually(t, func() bool {
		return runner.Status().IsPushConnected
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	deliver := onMessage
	mu.Unlock()
	require.NotNil(t, deliver)
	deliver([]byte(`{"event":"quote.paid"}`))

	select {
	case <-fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("push event did not trigger a sync")
	}
}

func TestRunner_PushReconnectsWithBackoff(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)

	src := &fakeSource{
		subscribeFn: func(ctx context.Context, onMsg func([]byte), onErr func(error)) (source.UnsubscribeFunc, error) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n < 3 {
				return nil, fmt.Errorf("connection refused")
			}
			return func() error { return nil }, nil
		},
	}

	runner := newReadyRunner(t, Options{
		Source: src,
		Push:   true,
		Reconnect: ReconnectConfig{
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
	}, newCountingSink())

	require.Eventually(t, func() bool {
		return runner.Status().IsPushConnected
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()

	// A successful connection resets the attempt counter.
	runner.mu.Lock()
	assert.Equal(t, 0, runner.attempts)
	runner.mu.Unlock()
}

func TestRunner_MidStreamErrorReconnects(t *testing.T) {
	var (
		mu      sync.Mutex
		subs    int
		onError func(error)
	)

	src := &fakeSource{
		subscribeFn: func(ctx context.Context, onMsg func([]byte), onErr func(error)) (source.UnsubscribeFunc, error) {
			mu.Lock()
			subs++
			onError = onErr
			mu.Unlock()
			return func() error { return nil }, nil
		},
	}

	runner := newReadyRunner(t, Options{
		Source: src,
		Push:   true,
		Reconnect: ReconnectConfig{
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     200 * time.Millisecond,
			Multiplier:   2,
		},
	}, newCountingSink())

	require.Eventually(t, func() bool {
		return runner.Status().IsPushConnected
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	fail := onError
	mu.Unlock()

	// Two errors while the same reconnect is pending schedule it only once.
	fail(fmt.Errorf("stream reset"))
	assert.False(t, runner.Status().IsPushConnected)
	fail(fmt.Errorf("stream reset again"))

	require.Eventually(t, func() bool {
		return runner.Status().IsPushConnected
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 2, subs, "duplicate errors do not double-schedule reconnects")
	mu.Unlock()
}

func TestRunner_ShutdownUnsubscribesAndSwallowsErrors(t *testing.T) {
	var (
		mu          sync.Mutex
		unsubCalled bool
	)

	src := &fakeSource{
		subscribeFn: func(ctx context.Context, onMsg func([]byte), onErr func(error)) (source.UnsubscribeFunc, error) {
			return func() error {
				mu.Lock()
				unsubCalled = true
				mu.Unlock()
				return fmt.Errorf("already gone")
			}, nil
		},
	}

	runner := newReadyRunner(t, Options{Source: src, Push: true}, newCountingSink())

	require.Eventually(t, func() bool {
		return runner.Status().IsPushConnected
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, runner.Shutdown(context.Background()), "unsubscribe errors are logged, not returned")

	mu.Lock()
	assert.True(t, unsubCalled)
	mu.Unlock()
	assert.False(t, runner.Status().IsPushConnected)
}

func TestRunner_ShutdownCancelsPendingReconnect(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)

	src := &fakeSource{
		subscribeFn: func(ctx context.Context, onMsg func([]byte), onErr func(error)) (source.UnsubscribeFunc, error) {
			mu.Lock()
			attempts++
			mu.Unlock()
			return nil, fmt.Errorf("connection refused")
		},
	}

	runner := newReadyRunner(t, Options{
		Source: src,
		Push:   true,
		Reconnect: ReconnectConfig{
			InitialDelay: time.Hour, // pending reconnect that must be cancelled
			MaxDelay:     time.Hour,
			Multiplier:   2,
		},
	}, newCountingSink())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, runner.Shutdown(context.Background()))

	mu.Lock()
	assert.Equal(t, 1, attempts, "no reconnect fires after shutdown")
	mu.Unlock()
}
