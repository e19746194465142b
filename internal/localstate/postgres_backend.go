package localstate

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores records in the local_state table.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend wraps a pgx pool. The local_state table comes from the
// persistence migrations.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) Load(ctx context.Context, key string) (Record, error) {
	const query = `SELECT version, data FROM local_state WHERE key=$1`
	var rec Record
	var data []byte
	if err := b.pool.QueryRow(ctx, query, key).Scan(&rec.Version, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.Data = data
	return rec, nil
}

func (b *PostgresBackend) Save(ctx context.Context, key string, rec Record) error {
	const query = `
        INSERT INTO local_state (key, version, data)
        VALUES ($1,$2,$3)
        ON CONFLICT (key) DO UPDATE SET version=EXCLUDED.version, data=EXCLUDED.data, updated_at=NOW()`
	_, err := b.pool.Exec(ctx, query, key, rec.Version, string(rec.Data))
	return err
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM local_state WHERE key=$1`, key)
	return err
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}
