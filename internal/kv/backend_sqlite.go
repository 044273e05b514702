package kv

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/coredb/qlcore/internal/errs"
)

// SqliteBackend persists the same flat byte-key/byte-value model atop a
// single SQLite table (spec.md §6's "disk (sqlite)" backend), using the
// pure-Go modernc.org/sqlite driver so qlcore never needs cgo. SQLite's
// default rollback journal already serializes writers the same way bbolt
// does, so, like BoltBackend, Conflict is structurally unreachable here.
type SqliteBackend struct {
	db *sql.DB
}

// OpenSqliteBackend opens (creating if absent) a SQLite database at path.
func OpenSqliteBackend(path string) (*SqliteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "opening sqlite database", errs.F("path", path))
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (k BLOB PRIMARY KEY, v BLOB NOT NULL)`); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "creating sqlite kv table")
	}
	return &SqliteBackend{db: db}, nil
}

func (s *SqliteBackend) Name() string { return "sqlite" }

func (s *SqliteBackend) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.Wrap(errs.Internal, err, "closing sqlite database")
	}
	return nil
}

func (s *SqliteBackend) Open(ctx context.Context, readonly bool) (BackendTx, error) {
	stx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readonly})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "beginning sqlite transaction")
	}
	return &sqliteTx{tx: stx, readonly: readonly}, nil
}

type sqliteTx struct {
	tx       *sql.Tx
	readonly bool
}

func (t *sqliteTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "sqlite get")
	}
	return v, nil
}

func (t *sqliteTx) Put(ctx context.Context, key, val []byte) error {
	existing, err := t.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.New(errs.AlreadyExists, "key already exists", errs.F("key", string(key)))
	}
	return t.Set(ctx, key, val)
}

func (t *sqliteTx) Set(ctx context.Context, key, val []byte) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, val)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "sqlite set")
	}
	return nil
}

func (t *sqliteTx) Del(ctx context.Context, key []byte) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "sqlite delete")
	}
	return nil
}

func (t *sqliteTx) Scan(ctx context.Context, lo, hi []byte, limit int) ([]Pair, error) {
	query := `SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`
	if limit > 0 {
		query += ` LIMIT ?`
	}
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = t.tx.QueryContext(ctx, query, lo, hi, limit)
	} else {
		rows, err = t.tx.QueryContext(ctx, query, lo, hi)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "sqlite scan")
	}
	defer rows.Close()
	out := []Pair{}
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "sqlite scan row")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "sqlite scan rows")
	}
	return out, nil
}

func (t *sqliteTx) DelRange(ctx context.Context, lo, hi []byte, limit int) (int, error) {
	pairs, err := t.Scan(ctx, lo, hi, limit)
	if err != nil {
		return 0, err
	}
	for _, p := range pairs {
		if err := t.Del(ctx, p.Key); err != nil {
			return 0, err
		}
	}
	return len(pairs), nil
}

func (t *sqliteTx) Commit(_ context.Context) error {
	if t.readonly {
		return t.tx.Rollback()
	}
	if err := t.tx.Commit(); err != nil {
		return errs.Wrap(errs.Internal, err, "sqlite commit")
	}
	return nil
}

func (t *sqliteTx) Cancel(_ context.Context) error {
	return t.tx.Rollback()
}
