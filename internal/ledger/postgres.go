package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/quotesync/quote-sync-service/internal/models"
)

// PostgresSink implements the ledger contract on PostgreSQL. Namespaces live
// in one table, records in another with the full transformed payload stored
// as JSONB so passthrough extras survive round trips.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink connects to PostgreSQL and ensures the ledger schema.
func NewPostgresSink(uri string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	sink := &PostgresSink{db: db}
	if err := sink.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return sink, nil
}

func (p *PostgresSink) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ledger_namespaces (
			key TEXT PRIMARY KEY,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_records (
			identifier TEXT PRIMARY KEY,
			namespace TEXT NOT NULL REFERENCES ledger_namespaces(key),
			paid_at BIGINT NOT NULL,
			payload JSONB NOT NULL,
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ledger_records_namespace_idx
			ON ledger_records (namespace)`,
	}
	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresSink) EnsureNamespace(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO ledger_namespaces (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return fmt.Errorf("failed to ensure namespace %s: %w", key, err)
	}
	return nil
}

func (p *PostgresSink) IngestRecords(ctx context.Context, key string, recs []models.TransformedRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.Identifier, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ledger_records (identifier, namespace, paid_at, payload)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (identifier) DO UPDATE SET payload = EXCLUDED.payload`,
			rec.Identifier, key, rec.PaidAt, payload)
		if err != nil {
			return fmt.Errorf("failed to ingest record %s: %w", rec.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ingestion: %w", err)
	}
	return nil
}

func (p *PostgresSink) Close(ctx context.Context) error {
	return p.db.Close()
}
