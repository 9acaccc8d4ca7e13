package watermark

import (
	"context"
	"fmt"
	"sync"

	"github.com/quotesync/quote-sync-service/internal/config"
)

// Store is the durable single-value store for the "processed up to"
// timestamp. Get returns the fallback value (0 unless the adapter was built
// with another) when no watermark has been written yet.
type Store interface {
	Get(ctx context.Context) (int64, error)
	Set(ctx context.Context, ts int64) error
}

// Clearer is implemented by adapters that can drop the stored watermark.
type Clearer interface {
	Clear(ctx context.Context) error
}

// New creates a watermark store based on configuration.
func New(cfg config.WatermarkConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(0), nil
	case "file":
		return NewFileStore(cfg.Path, 0), nil
	case "dynamodb":
		return NewDynamoDBStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported watermark store type: %s", cfg.Type)
	}
}

// MemoryStore keeps the watermark in process memory. It does not survive a
// restart; it exists for tests and for hosts that track progress themselves.
type MemoryStore struct {
	mu       sync.Mutex
	value    int64
	set      bool
	fallback int64
}

// NewMemoryStore creates an in-memory store that reports fallback until the
// first Set.
func NewMemoryStore(fallback int64) *MemoryStore {
	return &MemoryStore{fallback: fallback}
}

func (m *MemoryStore) Get(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return m.fallback, nil
	}
	return m.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ts
	m.set = true
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = 0
	m.set = false
	return nil
}
