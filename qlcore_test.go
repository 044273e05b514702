package qlcore

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/coredb/qlcore/internal/config"
	"github.com/coredb/qlcore/internal/exec"
	"github.com/coredb/qlcore/internal/kv"
	"github.com/coredb/qlcore/internal/value"
)

func newTestSession(c *qt.C) *Session {
	store := NewStore(kv.NewMemoryBackend(), config.Default())
	opts := exec.Options{Namespace: "test", Database: "test", Root: true}
	return NewSession(store, opts)
}

// Scenario (a): arithmetic modulo evaluates to a single-row array.
func TestModuloExpression(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(c)
	results, err := s.Execute(context.Background(), "SELECT 8 % 3;")
	c.Assert(err, qt.IsNil)
	c.Assert(results, qt.HasLen, 1)
	arr, ok := results[0].Value.(value.Array)
	c.Assert(ok, qt.IsTrue)
	c.Assert(arr, qt.HasLen, 1)
	c.Assert(arr[0], qt.DeepEquals, value.Int(2))
}

// Scenario (b): a record created by explicit id is retrievable by that id.
func TestCreateAndSelectByRecordID(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(c)
	ctx := context.Background()

	_, err := s.Execute(ctx, `CREATE user:alice CONTENT { name: "Alice" };`)
	c.Assert(err, qt.IsNil)

	results, err := s.Execute(ctx, "SELECT * FROM user:alice;")
	c.Assert(err, qt.IsNil)
	arr := results[0].Value.(value.Array)
	c.Assert(arr, qt.HasLen, 1)
	row := arr[0].(value.Object)
	name, ok := row.Get("name")
	c.Assert(ok, qt.IsTrue)
	c.Assert(name, qt.DeepEquals, value.Str("Alice"))
}

// Scenario (c): CANCEL discards every write made since BEGIN, leaving
// nothing behind.
func TestBeginCancelDiscardsWrites(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(c)
	ctx := context.Background()

	_, err := s.Execute(ctx, `
		BEGIN;
		CREATE user:bob CONTENT { name: "Bob" };
		CANCEL;
	`)
	c.Assert(err, qt.IsNil)

	results, err := s.Execute(ctx, "SELECT * FROM user:bob;")
	c.Assert(err, qt.IsNil)
	arr := results[0].Value.(value.Array)
	c.Assert(arr, qt.HasLen, 0)
}

// Scenario (d): a field typed as int coerces a numeric-looking string on
// write, per DEFINE FIELD ... TYPE int's coercion rule.
func TestDefineFieldCoercesType(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(c)
	ctx := context.Background()

	_, err := s.Execute(ctx, "DEFINE FIELD age ON TABLE user TYPE int;")
	c.Assert(err, qt.IsNil)

	results, err := s.Execute(ctx, `CREATE user:carol CONTENT { age: "42" };`)
	c.Assert(err, qt.IsNil)
	row := results[0].Value.(value.Array)[0].(value.Object)
	age, ok := row.Get("age")
	c.Assert(ok, qt.IsTrue)
	c.Assert(age, qt.DeepEquals, value.Int(42))
}

// Scenario (e): ORDER BY + LIMIT returns the two youngest rows in order.
func TestOrderByLimit(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(c)
	ctx := context.Background()

	_, err := s.Execute(ctx, `
		CREATE user:a CONTENT { age: 30 };
		CREATE user:b CONTENT { age: 20 };
		CREATE user:c CONTENT { age: 40 };
	`)
	c.Assert(err, qt.IsNil)

	results, err := s.Execute(ctx, "SELECT * FROM user ORDER BY age LIMIT 2;")
	c.Assert(err, qt.IsNil)
	arr := results[0].Value.(value.Array)
	c.Assert(arr, qt.HasLen, 2)
	first := arr[0].(value.Object)
	second := arr[1].(value.Object)
	firstAge, _ := first.Get("age")
	secondAge, _ := second.Get("age")
	c.Assert(firstAge, qt.DeepEquals, value.Int(20))
	c.Assert(secondAge, qt.DeepEquals, value.Int(30))
}

// Scenario (f): removing a field drops it from INFO FOR TABLE's listing.
func TestRemoveFieldUpdatesInfo(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(c)
	ctx := context.Background()

	_, err := s.Execute(ctx, "DEFINE FIELD age ON TABLE user TYPE int;")
	c.Assert(err, qt.IsNil)

	results, err := s.Execute(ctx, "INFO FOR TABLE user;")
	c.Assert(err, qt.IsNil)
	info := results[0].Value.(value.Object)
	fieldsVal, _ := info.Get("fields")
	fieldsObj := fieldsVal.(value.Object)
	c.Assert(fieldsObj.Len(), qt.Equals, 1)

	_, err = s.Execute(ctx, "REMOVE FIELD age ON TABLE user;")
	c.Assert(err, qt.IsNil)

	results, err = s.Execute(ctx, "INFO FOR TABLE user;")
	c.Assert(err, qt.IsNil)
	info = results[0].Value.(value.Object)
	fieldsVal, _ = info.Get("fields")
	fieldsObj = fieldsVal.(value.Object)
	c.Assert(fieldsObj.Len(), qt.Equals, 0)
}

// UPDATE ... SET visits += 1 on an existing record persists the
// incremented value for a later SELECT.
func TestUpdateSetIncrement(t *testing.T) {
	c := qt.New(t)
	store := NewStore(kv.NewMemoryBackend(), config.Default())
	opts := exec.Options{Namespace: "test", Database: "test", Root: true}
	s := NewSession(store, opts)
	ctx := context.Background()

	_, err := s.Execute(ctx, `CREATE user:dave CONTENT { visits: 0 };`)
	c.Assert(err, qt.IsNil)

	_, err = s.Execute(ctx, `UPDATE user:dave SET visits += 1;`)
	c.Assert(err, qt.IsNil)

	results, err := s.Execute(ctx, "SELECT * FROM user:dave;")
	c.Assert(err, qt.IsNil)
	row := results[0].Value.(value.Array)[0].(value.Object)
	visits, _ := row.Get("visits")
	c.Assert(visits, qt.DeepEquals, value.Int(1))
}
