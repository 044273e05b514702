package kv

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/coredb/qlcore/internal/errs"
)

// MemoryBackend is an in-memory, sorted-key store: the "in-memory (B-tree)"
// concrete backend from spec.md §6. It is the default backend for tests and
// embedded use, and the only backend that needs to implement optimistic
// conflict detection itself (bbolt and sqlite already serialize writers, so
// their BackendTx implementations never observe a conflicting concurrent
// writer — see backend_bolt.go, backend_sqlite.go).
type MemoryBackend struct {
	mu       sync.RWMutex
	data     map[string][]byte
	versions map[string]uint64
	seq      atomic.Uint64
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:     make(map[string][]byte),
		versions: make(map[string]uint64),
	}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Close() error { return nil }

func (m *MemoryBackend) Open(_ context.Context, readonly bool) (BackendTx, error) {
	m.mu.RLock()
	snapshot := m.seq.Load()
	m.mu.RUnlock()
	return &memoryTx{backend: m, readonly: readonly, snapshotSeq: snapshot, readSet: map[string]uint64{}, pending: map[string]*[]byte{}}, nil
}

type memoryTx struct {
	backend     *MemoryBackend
	readonly    bool
	snapshotSeq uint64
	readSet     map[string]uint64

	// pending holds this transaction's own writes, staged but not yet
	// visible to any other transaction (nil entry == pending delete).
	// Commit applies them to the shared backend only after the read-set
	// check below passes, so a write this same transaction made never
	// shows up as a conflict against its own prior read of that key.
	pending map[string]*[]byte
}

func (t *memoryTx) Get(_ context.Context, key []byte) ([]byte, error) {
	k := string(key)
	if ov, staged := t.pending[k]; staged {
		if ov == nil {
			return nil, nil
		}
		return append([]byte(nil), *ov...), nil
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	// Pin the read set to the first version observed for k: re-reading a
	// key later in the same transaction must not slide the check forward
	// and hide a writer that landed in between.
	if _, seen := t.readSet[k]; !seen {
		t.readSet[k] = t.backend.versions[k]
	}
	v, ok := t.backend.data[k]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *memoryTx) Put(ctx context.Context, key, val []byte) error {
	existing, err := t.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.New(errs.AlreadyExists, "key already exists", errs.F("key", string(key)))
	}
	return t.Set(ctx, key, val)
}

// Set stages val under key without touching the shared backend map. The
// write becomes visible to other transactions only once Commit applies the
// whole staged batch, after validating this transaction's read set.
func (t *memoryTx) Set(_ context.Context, key, val []byte) error {
	v := append([]byte(nil), val...)
	t.pending[string(key)] = &v
	return nil
}

// Del stages key's removal; see Set.
func (t *memoryTx) Del(_ context.Context, key []byte) error {
	t.pending[string(key)] = nil
	return nil
}

func (t *memoryTx) Scan(_ context.Context, lo, hi []byte, limit int) ([]Pair, error) {
	t.backend.mu.RLock()
	keys := make([]string, 0, len(t.backend.data))
	for k := range t.backend.data {
		if inRange([]byte(k), lo, hi) {
			keys = append(keys, k)
		}
	}
	byKey := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if _, seen := t.readSet[k]; !seen {
			t.readSet[k] = t.backend.versions[k]
		}
		byKey[k] = append([]byte(nil), t.backend.data[k]...)
	}
	t.backend.mu.RUnlock()

	// Overlay this transaction's own staged writes, the same way
	// kv.Transaction.Getr overlays its write map over a backend scan.
	for k, v := range t.pending {
		if !inRange([]byte(k), lo, hi) {
			continue
		}
		if v == nil {
			delete(byKey, k)
			continue
		}
		if _, existed := byKey[k]; !existed {
			keys = append(keys, k)
		}
		byKey[k] = *v
	}
	sort.Strings(keys)

	out := make([]Pair, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		v, ok := byKey[k]
		if !ok {
			continue
		}
		out = append(out, Pair{Key: []byte(k), Value: v})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (t *memoryTx) DelRange(ctx context.Context, lo, hi []byte, limit int) (int, error) {
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

// Commit validates that nothing in this transaction's read set changed
// since its snapshot was taken (spec.md §8: "over overlapping writes, at
// least one of {commit(T1), commit(T2)} fails with Conflict"), then applies
// this transaction's own staged writes. Both happen under the same write
// lock so the two steps are atomic: a losing Commit returns Conflict
// without mutating backend.data/versions at all, and a winning Commit's
// read-set check only ever compares against versions bumped by other
// transactions, never by this one's own Set/Del (those only touch
// t.pending until this point).
func (t *memoryTx) Commit(_ context.Context) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	for k, seenVersion := range t.readSet {
		if t.backend.versions[k] != seenVersion {
			return errs.New(errs.Conflict, "concurrent write to an overlapping key", errs.F("key", k))
		}
	}
	for k, v := range t.pending {
		if v == nil {
			delete(t.backend.data, k)
		} else {
			t.backend.data[k] = append([]byte(nil), *v...)
		}
		t.backend.versions[k] = t.backend.seq.Add(1)
	}
	return nil
}

func (t *memoryTx) Cancel(_ context.Context) error { return nil }
