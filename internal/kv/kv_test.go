package kv

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestReadYourOwnWrites(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	backend := NewMemoryBackend()
	cache := NewDefinitionCache(16)

	tx, err := Open(ctx, backend, false, cache, nil, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(tx.Set(ctx, []byte("a"), []byte("1")), qt.IsNil)
	v, err := tx.Get(ctx, []byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("1"))
	c.Assert(tx.Commit(ctx), qt.IsNil)
}

func TestDisjointConcurrentWritesBothCommit(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	backend := NewMemoryBackend()
	cache := NewDefinitionCache(16)

	tx1, err := Open(ctx, backend, false, cache, nil, 5)
	c.Assert(err, qt.IsNil)
	tx2, err := Open(ctx, backend, false, cache, nil, 5)
	c.Assert(err, qt.IsNil)

	c.Assert(tx1.Set(ctx, []byte("k1"), []byte("v1")), qt.IsNil)
	c.Assert(tx2.Set(ctx, []byte("k2"), []byte("v2")), qt.IsNil)

	c.Assert(tx1.Commit(ctx), qt.IsNil)
	c.Assert(tx2.Commit(ctx), qt.IsNil)
}

func TestOverlappingConcurrentWritesOneConflicts(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	backend := NewMemoryBackend()
	cache := NewDefinitionCache(16)

	// tx1 reads k, establishing it in its read set, then tx2 commits a
	// write to k before tx1 commits.
	tx1, err := Open(ctx, backend, false, cache, nil, 5)
	c.Assert(err, qt.IsNil)
	_, err = tx1.Get(ctx, []byte("k"))
	c.Assert(err, qt.IsNil)

	tx2, err := Open(ctx, backend, false, cache, nil, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(tx2.Set(ctx, []byte("k"), []byte("from-tx2")), qt.IsNil)
	c.Assert(tx2.Commit(ctx), qt.IsNil)

	c.Assert(tx1.Set(ctx, []byte("k"), []byte("from-tx1")), qt.IsNil)
	err = tx1.Commit(ctx)
	c.Assert(err, qt.ErrorMatches, "(?i).*conflict.*", qt.Commentf("expected a Conflict error, got: %v", err))
}

func TestPutFailsOnExistingKey(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	backend := NewMemoryBackend()
	cache := NewDefinitionCache(16)

	tx, err := Open(ctx, backend, false, cache, nil, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(tx.Put(ctx, []byte("a"), []byte("1")), qt.IsNil)
	err = tx.Put(ctx, []byte("a"), []byte("2"))
	c.Assert(err, qt.ErrorMatches, ".*already exists.*")
	c.Assert(tx.Cancel(ctx), qt.IsNil)
}

func TestScanOrdersAscending(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	backend := NewMemoryBackend()
	cache := NewDefinitionCache(16)

	tx, err := Open(ctx, backend, false, cache, nil, 5)
	c.Assert(err, qt.IsNil)
	for _, k := range []string{"c", "a", "b"} {
		c.Assert(tx.Set(ctx, []byte(k), []byte(k)), qt.IsNil)
	}
	c.Assert(tx.Commit(ctx), qt.IsNil)

	tx2, err := Open(ctx, backend, true, cache, nil, 5)
	c.Assert(err, qt.IsNil)
	pairs, err := tx2.Getr(ctx, []byte("a"), []byte("z"), 0)
	c.Assert(err, qt.IsNil)
	c.Assert(len(pairs), qt.Equals, 3)
	c.Assert(string(pairs[0].Key), qt.Equals, "a")
	c.Assert(string(pairs[1].Key), qt.Equals, "b")
	c.Assert(string(pairs[2].Key), qt.Equals, "c")
}

func TestDefinitionCacheInvalidation(t *testing.T) {
	c := qt.New(t)
	cache := NewDefinitionCache(16)
	cache.Put([]byte("tb:users"), []byte("def"))
	_, ok := cache.Get([]byte("tb:users"))
	c.Assert(ok, qt.IsTrue)
	cache.InvalidatePrefix([]byte("tb:"))
	_, ok = cache.Get([]byte("tb:users"))
	c.Assert(ok, qt.IsFalse)
}
