// Package sqlitestore persists the local op log in a SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/storage"
)

const schema = `CREATE TABLE IF NOT EXISTS local_ops (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	record     BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`

const upsert = `INSERT INTO local_ops(key, kind, record, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, record = excluded.record, updated_at = excluded.updated_at`

// Store is a storage.OpLog backed by one SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.OpLog = (*Store)(nil)

// Open opens or creates the database at path. Use ":memory:" for a
// throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.WrapFatal(err, "sqlitestore", "Open", "open "+path)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapFatal(err, "sqlitestore", "Open", "create schema")
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Put(ctx context.Context, recs ...storage.Record) error {
	return s.tx(ctx, "Put", func(tx *sql.Tx) error {
		return s.put(ctx, tx, recs)
	})
}

func (s *Store) put(ctx context.Context, tx *sql.Tx, recs []storage.Record) error {
	if len(recs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return err
	}
	defer stmt.Close()
	at := s.now().UTC().Format(time.RFC3339Nano)
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.Key, string(r.Kind), []byte(r.Data), at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.tx(ctx, "Delete", func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM local_ops WHERE key = ?`, k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceAll swaps the whole log in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, recs []storage.Record) error {
	return s.tx(ctx, "ReplaceAll", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM local_ops`); err != nil {
			return err
		}
		return s.put(ctx, tx, recs)
	})
}

// LoadAll returns every record sorted by key.
func (s *Store) LoadAll(ctx context.Context) ([]storage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, kind, record FROM local_ops ORDER BY key`)
	if err != nil {
		return nil, errors.WrapTransient(err, "sqlitestore", "LoadAll", "query")
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var (
			r    storage.Record
			kind string
			data []byte
		)
		if err := rows.Scan(&r.Key, &kind, &data); err != nil {
			return nil, errors.WrapTransient(err, "sqlitestore", "LoadAll", "scan")
		}
		r.Kind = storage.Kind(kind)
		r.Data = data
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "sqlitestore", "LoadAll", "iterate")
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) tx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.WrapTransient(err, "sqlitestore", op, "begin")
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return errors.WrapTransient(err, "sqlitestore", op, "exec")
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "sqlitestore", op, "commit")
	}
	return nil
}
