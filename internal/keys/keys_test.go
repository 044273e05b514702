package keys

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCategoriesDoNotOverlap(t *testing.T) {
	c := qt.New(t)
	tbKey := TB("n", "d", "users")
	recPrefix := RecordPrefix("n", "d", "users")
	recSuffix := RecordSuffix("n", "d", "users")
	c.Assert(InRange(tbKey, recPrefix, recSuffix), qt.IsFalse)
}

func TestRecordRangeContainsOnlyItsRecords(t *testing.T) {
	c := qt.New(t)
	lo := RecordPrefix("n", "d", "users")
	hi := RecordSuffix("n", "d", "users")

	inTable := Record("n", "d", "users", []byte("alice"))
	c.Assert(InRange(inTable, lo, hi), qt.IsTrue)

	otherTable := Record("n", "d", "posts", []byte("alice"))
	c.Assert(InRange(otherTable, lo, hi), qt.IsFalse)

	otherDB := Record("n", "d2", "users", []byte("alice"))
	c.Assert(InRange(otherDB, lo, hi), qt.IsFalse)
}

func TestKeyOrderingMatchesDomainOrdering(t *testing.T) {
	c := qt.New(t)
	a := Record("n", "d", "users", []byte("alice"))
	b := Record("n", "d", "users", []byte("bob"))
	c.Assert(bytes.Compare(a, b) < 0, qt.IsTrue)
}

func TestFieldRangeExcludesOtherFields(t *testing.T) {
	c := qt.New(t)
	lo := FieldPrefix("n", "d", "users", "age")
	hi := FieldSuffix("n", "d", "users", "age")
	other := FieldPrefix("n", "d", "users", "agent")
	c.Assert(InRange(other, lo, hi), qt.IsFalse)
}

func TestIncrementedHandlesAllFF(t *testing.T) {
	c := qt.New(t)
	b := []byte{0xFF, 0xFF}
	out := incremented(b)
	c.Assert(bytes.Compare(out, b) > 0, qt.IsTrue)
}
