// Package kv implements the transactional key-value plane of spec.md §4.6:
// an abstraction over a pluggable ordered byte-key/byte-value store that
// provides atomic multi-key reads and writes, range scans, and a
// definitions cache, addressed by the keys package's byte layout.
//
// What: A Backend interface any ordered store can satisfy (see
// backend_memory.go, backend_bolt.go, backend_sqlite.go for the three
// concrete implementations spec.md §6 calls for), and a Transaction type
// layered on top that adds read-your-writes and Clr invalidation of the
// shared LRU DefinitionCache (Transaction never stores or reads cache
// entries). Conflict detection is the Backend's: MemoryBackend checks its
// read set at commit.
// How: Transaction keeps an in-memory overlay of pending writes so reads
// within the same transaction observe prior writes before commit; Commit
// hands the overlay to the Backend atomically.
// Why: Every statement in the executor borrows exactly one Transaction
// (spec.md §4.6/§4.7); keeping the KV contract narrow lets qlcore run
// against wildly different storage engines without leaking engine-specific
// behavior into the executor.
package kv

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/coredb/qlcore/internal/errs"
)

// Pair is one key/value row returned from a range scan.
type Pair struct {
	Key   []byte
	Value []byte
}

// BackendTx is the narrow contract a concrete storage engine exposes for a
// single open transaction (spec.md §6).
type BackendTx interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Put inserts key with value, failing with errs.AlreadyExists if key is
	// already present.
	Put(ctx context.Context, key, val []byte) error
	// Set upserts key unconditionally.
	Set(ctx context.Context, key, val []byte) error
	Del(ctx context.Context, key []byte) error
	// Scan returns up to limit pairs in [lo, hi) in ascending key order.
	// limit <= 0 means unbounded.
	Scan(ctx context.Context, lo, hi []byte, limit int) ([]Pair, error)
	// DelRange deletes up to limit keys in [lo, hi) and returns the count
	// deleted.
	DelRange(ctx context.Context, lo, hi []byte, limit int) (int, error)
	// Commit finalizes the transaction's writes. Returns an *errs.Error of
	// kind errs.Conflict if a concurrent writer touched an overlapping key
	// since this transaction's snapshot was taken.
	Commit(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// Backend is the pluggable storage engine qlcore's Transaction wraps.
// Concrete backends are selected once at process start (spec.md §6, §9:
// "no global mutable state" — backend selection is immutable config).
type Backend interface {
	Open(ctx context.Context, readonly bool) (BackendTx, error)
	Close() error
	// Name identifies the backend for logs and diagnostics.
	Name() string
}

// Transaction is the exclusive handle a statement executes within
// (spec.md §4.6). It is never cloned; sharing across sub-tasks of the same
// statement goes through the embedded mutex.
type Transaction struct {
	mu       sync.Mutex
	backend  BackendTx
	readonly bool
	failed   bool
	done     bool

	// writes overlays pending mutations so reads observe prior writes of
	// this same transaction before commit (read-your-writes, spec.md §5).
	writes map[string]*[]byte // nil pointer entry == pending delete

	cache *DefinitionCache
	log   *logrus.Entry

	maxRetries int
}

// Open begins a new Transaction against backend.
func Open(ctx context.Context, backend Backend, readonly bool, cache *DefinitionCache, log *logrus.Entry, maxRetries int) (*Transaction, error) {
	btx, err := backend.Open(ctx, readonly)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "opening backend transaction")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Transaction{
		backend:    btx,
		readonly:   readonly,
		writes:     make(map[string]*[]byte),
		cache:      cache,
		log:        log,
		maxRetries: maxRetries,
	}, nil
}

func (tx *Transaction) checkUsable() error {
	if tx.done {
		return errs.New(errs.Internal, "transaction already committed or cancelled")
	}
	if tx.failed {
		return errs.New(errs.Internal, "transaction is in a failed state; only cancel is permitted")
	}
	return nil
}

// Get returns the value at key, observing this transaction's own pending
// writes first.
func (tx *Transaction) Get(ctx context.Context, key []byte) ([]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return nil, err
	}
	if ov, ok := tx.writes[string(key)]; ok {
		if ov == nil {
			return nil, nil
		}
		return *ov, nil
	}
	return tx.backend.Get(ctx, key)
}

// Getr performs a range scan over [lo, hi), folding in this transaction's
// own pending overlay writes so reads observe prior writes in the same
// transaction.
func (tx *Transaction) Getr(ctx context.Context, lo, hi []byte, limit int) ([]Pair, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return nil, err
	}
	base, err := tx.backend.Scan(ctx, lo, hi, 0)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "range scan")
	}
	merged := mergeOverlay(base, tx.writes, lo, hi)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func mergeOverlay(base []Pair, writes map[string]*[]byte, lo, hi []byte) []Pair {
	byKey := make(map[string][]byte, len(base))
	order := make([]string, 0, len(base))
	for _, p := range base {
		byKey[string(p.Key)] = p.Value
		order = append(order, string(p.Key))
	}
	for k, v := range writes {
		if !inRange([]byte(k), lo, hi) {
			continue
		}
		if v == nil {
			delete(byKey, k)
			continue
		}
		if _, existed := byKey[k]; !existed {
			order = append(order, k)
		}
		byKey[k] = *v
	}
	sort.Strings(order)
	out := make([]Pair, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		if v, ok := byKey[k]; ok {
			out = append(out, Pair{Key: []byte(k), Value: v})
		}
	}
	return out
}

func inRange(key, lo, hi []byte) bool {
	return bytesCompare(key, lo) >= 0 && bytesCompare(key, hi) < 0
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Put writes key with val, failing if key already exists anywhere visible
// to this transaction (own overlay or backend).
func (tx *Transaction) Put(ctx context.Context, key, val []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if tx.readonly {
		return errs.New(errs.PermissionDenied, "cannot write in a read-only transaction")
	}
	existing, err := tx.getLocked(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.New(errs.AlreadyExists, "key already exists", errs.F("key", string(key)))
	}
	v := append([]byte(nil), val...)
	tx.writes[string(key)] = &v
	return nil
}

func (tx *Transaction) getLocked(ctx context.Context, key []byte) ([]byte, error) {
	if ov, ok := tx.writes[string(key)]; ok {
		if ov == nil {
			return nil, nil
		}
		return *ov, nil
	}
	return tx.backend.Get(ctx, key)
}

// Set upserts key unconditionally.
func (tx *Transaction) Set(ctx context.Context, key, val []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if tx.readonly {
		return errs.New(errs.PermissionDenied, "cannot write in a read-only transaction")
	}
	v := append([]byte(nil), val...)
	tx.writes[string(key)] = &v
	return nil
}

// Del marks key for deletion.
func (tx *Transaction) Del(ctx context.Context, key []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if tx.readonly {
		return errs.New(errs.PermissionDenied, "cannot write in a read-only transaction")
	}
	tx.writes[string(key)] = nil
	return nil
}

// Delr deletes up to limit keys in [lo, hi), returning the count deleted.
func (tx *Transaction) Delr(ctx context.Context, lo, hi []byte, limit int) (int, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return 0, err
	}
	if tx.readonly {
		return 0, errs.New(errs.PermissionDenied, "cannot write in a read-only transaction")
	}
	pairs, err := tx.getrLocked(ctx, lo, hi, limit)
	if err != nil {
		return 0, err
	}
	for _, p := range pairs {
		tx.writes[string(p.Key)] = nil
	}
	return len(pairs), nil
}

func (tx *Transaction) getrLocked(ctx context.Context, lo, hi []byte, limit int) ([]Pair, error) {
	base, err := tx.backend.Scan(ctx, lo, hi, 0)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "range scan")
	}
	merged := mergeOverlay(base, tx.writes, lo, hi)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Clr invalidates any cached definitions whose key falls under prefix, as
// part of the same transaction that mutated them (spec.md §4.6).
func (tx *Transaction) Clr(prefix []byte) {
	if tx.cache != nil {
		tx.cache.InvalidatePrefix(prefix)
	}
}

// Commit applies the pending write overlay to the backend and finalizes
// the transaction. A Conflict error leaves the transaction Failed (per
// spec.md §7, only Cancel is accepted afterward); retrying a conflicting
// statement means opening a fresh Transaction and recomputing it from
// scratch, which is the executor's responsibility (spec.md §7), not this
// type's — re-issuing the same overlay against a newer snapshot would not
// re-validate reads that fed into computing that overlay.
func (tx *Transaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if tx.readonly {
		tx.done = true
		return tx.backend.Cancel(ctx)
	}
	for k, v := range tx.writes {
		if v == nil {
			if err := tx.backend.Del(ctx, []byte(k)); err != nil {
				tx.failed = true
				return err
			}
			continue
		}
		if err := tx.backend.Set(ctx, []byte(k), *v); err != nil {
			tx.failed = true
			return err
		}
	}
	if err := tx.backend.Commit(ctx); err != nil {
		tx.failed = true
		return err
	}
	tx.done = true
	return nil
}

// Cancel discards all pending writes.
func (tx *Transaction) Cancel(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.done = true
	return tx.backend.Cancel(ctx)
}
