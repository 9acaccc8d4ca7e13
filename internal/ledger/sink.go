package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/quotesync/quote-sync-service/internal/config"
	"github.com/quotesync/quote-sync-service/internal/models"
)

// NamespaceRegistry registers a namespace with the downstream ledger. The
// call is idempotent: registering an existing namespace is a no-op.
type NamespaceRegistry interface {
	EnsureNamespace(ctx context.Context, key string) error
}

// RecordIngestor ingests a batch of transformed records into a namespace.
type RecordIngestor interface {
	IngestRecords(ctx context.Context, key string, recs []models.TransformedRecord) error
}

// Sink is the full downstream contract the sync runner forwards into.
type Sink interface {
	NamespaceRegistry
	RecordIngestor
	Close(ctx context.Context) error
}

// New creates a ledger sink based on configuration.
func New(ctx context.Context, cfg config.LedgerConfig) (Sink, error) {
	switch cfg.Type {
	case "memory":
		return NewMemorySink(), nil
	case "postgresql":
		return NewPostgresSink(cfg.PostgresURI)
	case "mongodb":
		return NewMongoSink(ctx, cfg.MongoDBURI, cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", cfg.Type)
	}
}

// MemorySink keeps ingested records in process memory, grouped by namespace.
// Used for local runs and tests.
type MemorySink struct {
	mu         sync.Mutex
	namespaces map[string]bool
	records    map[string][]models.TransformedRecord
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		namespaces: make(map[string]bool),
		records:    make(map[string][]models.TransformedRecord),
	}
}

func (m *MemorySink) EnsureNamespace(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces[key] = true
	return nil
}

func (m *MemorySink) IngestRecords(ctx context.Context, key string, recs []models.TransformedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.namespaces[key] {
		return fmt.Errorf("namespace %s not registered", key)
	}
	m.records[key] = append(m.records[key], recs...)
	return nil
}

// Records returns a copy of everything ingested into a namespace.
func (m *MemorySink) Records(key string) []models.TransformedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TransformedRecord, len(m.records[key]))
	copy(out, m.records[key])
	return out
}

// Namespaces returns the registered namespace keys.
func (m *MemorySink) Namespaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.namespaces))
	for key := range m.namespaces {
		keys = append(keys, key)
	}
	return keys
}

func (m *MemorySink) Close(ctx context.Context) error {
	return nil
}
