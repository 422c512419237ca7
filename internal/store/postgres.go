package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores documents in a single key/value table. Prefix scans lean on
// the primary-key btree via a range predicate, so they stay ordered and cheap.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the documents table if missing. Dev helper, mirrors the
// migrate-on-start behavior behind DB_MIGRATE.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS documents (
		key   text PRIMARY KEY,
		value jsonb NOT NULL
	)`)
	return err
}

func (p *Postgres) Write(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO documents (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, data)
	return err
}

func (p *Postgres) Read(ctx context.Context, key string, out any) error {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *Postgres) ListByPrefix(ctx context.Context, prefix, fromKey string, limit int) ([]KV, error) {
	// keyUpperBound gives the smallest key greater than every key with this
	// prefix, which keeps the scan inside the btree range.
	low := prefix
	if fromKey != "" && fromKey > low {
		low = fromKey
	}
	q := `SELECT key, value FROM documents WHERE key >= $1 AND key < $2 ORDER BY key`
	args := []any{low, keyUpperBound(prefix)}
	if limit > 0 {
		q += ` LIMIT $3`
		// One extra row covers the exclusive fromKey skipped below.
		args = append(args, limit+1)
	}
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KV
	for rows.Next() {
		var kv KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, err
		}
		if fromKey != "" && kv.Key <= fromKey {
			continue
		}
		out = append(out, kv)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE key = $1`, key)
	return err
}

func (p *Postgres) Close() error { return p.db.Close() }

// Ping exposes connectivity for the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// keyUpperBound returns the smallest string greater than every string that has
// prefix as a prefix. Point/track/room keys never contain 0xff bytes.
func keyUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return string(rune(0x10ffff))
}
