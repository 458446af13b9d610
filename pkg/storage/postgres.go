package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/electrohold/pkg/types"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS tariff_snapshots (
	resolver_id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	entry JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresProvider implements Store with a single row per resolver.
type PostgresProvider struct {
	db  *sql.DB
	dsn string
}

func configuredPostgres() *PostgresProvider {
	dsn := lflag.String("postgres-dsn", "", "Postgres connection string for the snapshot store")

	p := &PostgresProvider{}

	lflag.Do(func() {
		p.dsn = *dsn
	})

	return p
}

// Validate checks if the provider is properly configured.
func (p *PostgresProvider) Validate() error {
	if p.dsn == "" {
		return fmt.Errorf("postgres-dsn is required")
	}
	return nil
}

// Init opens the connection and creates the table if needed.
func (p *PostgresProvider) Init(ctx context.Context) error {
	db, err := sql.Open("pgx", p.dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}
	p.db = db
	return nil
}

// Close closes the database.
func (p *PostgresProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetSnapshot implements Store.
func (p *PostgresProvider) GetSnapshot(ctx context.Context, resolverID string) (types.CacheEntry, bool, error) {
	if resolverID == "" {
		return types.CacheEntry{}, false, fmt.Errorf("resolverID cannot be empty")
	}
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT entry FROM tariff_snapshots WHERE resolver_id = $1`,
		resolverID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CacheEntry{}, false, nil
	}
	if err != nil {
		return types.CacheEntry{}, false, fmt.Errorf("failed to query snapshot: %w", err)
	}
	var entry types.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return types.CacheEntry{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return entry, true, nil
}

// SaveSnapshot implements Store.
func (p *PostgresProvider) SaveSnapshot(ctx context.Context, resolverID string, entry types.CacheEntry) error {
	if resolverID == "" {
		return fmt.Errorf("resolverID cannot be empty")
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO tariff_snapshots (resolver_id, version, entry, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (resolver_id) DO UPDATE
		SET version = EXCLUDED.version, entry = EXCLUDED.entry, updated_at = EXCLUDED.updated_at`,
		resolverID, CurrentSnapshotVersion, string(b),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
