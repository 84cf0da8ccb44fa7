// Package postgres implements kvstore.Store on PostgreSQL. It exists for
// development and emulator rigs where several client instances share one
// backing store; on a real device the sqlite store is used instead.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore"
)

var (
	// ErrPingFailed is returned if the initial ping to the database returns an error
	ErrPingFailed = errors.New("ping returned error")
)

var (
	//go:embed create_table.sql
	queryCreateTable string
	//go:embed fetch_by_key.sql
	queryFetchByKey string
	//go:embed upsert_item.sql
	queryUpsertItem string
	//go:embed remove_item.sql
	queryRemoveItem string
	//go:embed list_keys.sql
	queryListKeys string
)

// Store implements the kvstore.Store interface using PostgreSQL as the
// storage backend.
type Store struct {
	db *sql.DB

	now func() time.Time
}

func (p *Store) Get(ctx context.Context, key string) ([]byte, error) {
	stmt, err := p.db.PrepareContext(ctx, queryFetchByKey)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var value []byte
	if err := stmt.QueryRowContext(ctx, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kvstore.ErrNotFound
		}
		return nil, err
	}

	return value, nil
}

func (p *Store) Set(ctx context.Context, key string, value []byte) error {
	stmt, err := p.db.PrepareContext(ctx, queryUpsertItem)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, key, value, p.now().UTC())
	return err
}

func (p *Store) Remove(ctx context.Context, key string) error {
	stmt, err := p.db.PrepareContext(ctx, queryRemoveItem)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, key)
	return err
}

func (p *Store) ListKeys(ctx context.Context) ([]string, error) {
	stmt, err := p.db.PrepareContext(ctx, queryListKeys)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

func createTable(ctx context.Context, db *sql.DB) error {
	stmt, err := db.PrepareContext(ctx, queryCreateTable)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx)
	return err
}

// New creates a new PostgreSQL store with the provided connection. It
// verifies the connection and creates the blob table if missing.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, kvstore.ValidationError{Reason: "nil db"}
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(ErrPingFailed, err)
	}

	if err := createTable(ctx, db); err != nil {
		return nil, err
	}

	return &Store{
		db: db,

		now: time.Now,
	}, nil
}
