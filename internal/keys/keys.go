// Package keys implements the deterministic big-endian key codec of
// spec.md §4.5: a prefix byte discriminator per category, with a
// Prefix/Suffix pair bracketing a contiguous, half-open lexicographic
// range for each category.
//
// What: One byte-slice builder per key category (namespace, database,
// table, record, field, index, index data, user, token, changefeed,
// definition cache). Every category's Prefix is a strict byte-prefix of
// every key it contains, and Suffix is the first key strictly greater
// than every key in the category — obtained by incrementing the final
// encoded path segment.
// How: Segments are length-prefixed (a uint32 big-endian length followed
// by the raw bytes) so that no segment's content can be mistaken for a
// category boundary, and the category byte always leads.
// Why: Lexicographic byte order must equal semantic (ns, db, tb, id, ...)
// order so range scans over the underlying ordered store return records
// in a predictable order without a secondary sort.
package keys

import "encoding/binary"

// Category is the leading discriminator byte of every key.
type Category byte

const (
	CatNamespace Category = iota + 1
	CatDatabase
	CatTable
	CatRecord
	CatField
	CatIndex
	CatIndexData
	CatUser
	CatToken
	CatChangefeed
	CatDefinitionCache
)

// builder accumulates length-prefixed segments behind a category byte.
type builder struct {
	b []byte
}

func newBuilder(cat Category) *builder {
	return &builder{b: []byte{byte(cat)}}
}

func (bl *builder) seg(s string) *builder {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	bl.b = append(bl.b, lenBuf[:]...)
	bl.b = append(bl.b, s...)
	return bl
}

func (bl *builder) bytes() []byte { return bl.b }

// incremented returns the smallest byte slice strictly greater than b under
// lexicographic order, by incrementing the last byte that can be
// incremented without carrying past 0xFF, truncating any trailing 0xFF
// bytes first. This is the standard "successor key" construction used to
// turn a prefix into an exclusive range end.
func incremented(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	// All 0xFF: no finite successor: the caller's category must then be
	// the last possible category, and an all-0xFF-extended key is the
	// practical upper bound for its range.
	return append(out, 0xFF)
}

// KV returns the root key for a namespace's catalog entry.
func KV(ns string) []byte {
	return newBuilder(CatNamespace).seg(ns).bytes()
}

// NS returns the key for a database's catalog entry within a namespace.
func NS(ns, db string) []byte {
	return newBuilder(CatDatabase).seg(ns).seg(db).bytes()
}

// TB returns the key for a table's catalog entry.
func TB(ns, db, tb string) []byte {
	return newBuilder(CatTable).seg(ns).seg(db).seg(tb).bytes()
}

// Record returns the key for a single record's body, addressed by its
// canonically encoded RecordIdKey bytes.
func Record(ns, db, tb string, idKeyBytes []byte) []byte {
	bl := newBuilder(CatRecord).seg(ns).seg(db).seg(tb)
	bl.b = append(bl.b, idKeyBytes...)
	return bl.bytes()
}

// RecordPrefix returns the inclusive lower bound of every record key in a
// table.
func RecordPrefix(ns, db, tb string) []byte {
	return newBuilder(CatRecord).seg(ns).seg(db).seg(tb).bytes()
}

// RecordSuffix returns the exclusive upper bound of every record key in a
// table.
func RecordSuffix(ns, db, tb string) []byte {
	return incremented(RecordPrefix(ns, db, tb))
}

// FieldPrefix returns the inclusive lower bound of a single field
// definition's range (itself exactly one key, but expressed as a range so
// callers can use the same getr/delr helper uniformly).
func FieldPrefix(ns, db, tb, field string) []byte {
	return newBuilder(CatField).seg(ns).seg(db).seg(tb).seg(field).bytes()
}

// FieldSuffix returns the exclusive upper bound of a field definition key.
func FieldSuffix(ns, db, tb, field string) []byte {
	return incremented(FieldPrefix(ns, db, tb, field))
}

// FieldTablePrefix returns the inclusive lower bound of every field
// definition in a table.
func FieldTablePrefix(ns, db, tb string) []byte {
	return newBuilder(CatField).seg(ns).seg(db).seg(tb).bytes()
}

// FieldTableSuffix returns the exclusive upper bound of every field
// definition in a table.
func FieldTableSuffix(ns, db, tb string) []byte {
	return incremented(FieldTablePrefix(ns, db, tb))
}

// IndexPrefix returns the inclusive lower bound of an index definition key.
func IndexPrefix(ns, db, tb, ix string) []byte {
	return newBuilder(CatIndex).seg(ns).seg(db).seg(tb).seg(ix).bytes()
}

// IndexSuffix returns the exclusive upper bound of an index definition key.
func IndexSuffix(ns, db, tb, ix string) []byte {
	return incremented(IndexPrefix(ns, db, tb, ix))
}

// IndexDataPrefix returns the inclusive lower bound of an index's entries.
func IndexDataPrefix(ns, db, tb, ix string) []byte {
	return newBuilder(CatIndexData).seg(ns).seg(db).seg(tb).seg(ix).bytes()
}

// IndexDataSuffix returns the exclusive upper bound of an index's entries.
func IndexDataSuffix(ns, db, tb, ix string) []byte {
	return incremented(IndexDataPrefix(ns, db, tb, ix))
}

// IndexEntry returns the key for one index entry, addressed by its
// canonically encoded index-key bytes followed by the referenced record's
// id bytes (so duplicate index keys still produce distinct storage keys).
func IndexEntry(ns, db, tb, ix string, indexKeyBytes, recordIDBytes []byte) []byte {
	bl := newBuilder(CatIndexData).seg(ns).seg(db).seg(tb).seg(ix)
	bl.b = append(bl.b, indexKeyBytes...)
	bl.b = append(bl.b, recordIDBytes...)
	return bl.bytes()
}

// User returns the key for a user definition scoped to ns/db (db == "" for
// a namespace- or root-level user, per the Base glossary entry).
func User(ns, db, name string) []byte {
	return newBuilder(CatUser).seg(ns).seg(db).seg(name).bytes()
}

// Token returns the key for an issued token's metadata.
func Token(ns, db, name string) []byte {
	return newBuilder(CatToken).seg(ns).seg(db).seg(name).bytes()
}

// ChangefeedPrefix returns the inclusive lower bound of a table's
// changefeed entries.
func ChangefeedPrefix(ns, db, tb string) []byte {
	return newBuilder(CatChangefeed).seg(ns).seg(db).seg(tb).bytes()
}

// ChangefeedSuffix returns the exclusive upper bound of a table's
// changefeed entries.
func ChangefeedSuffix(ns, db, tb string) []byte {
	return incremented(ChangefeedPrefix(ns, db, tb))
}

// ChangefeedEntry returns the key for one changefeed entry at a given
// big-endian sequence number, which keeps entries in commit order.
func ChangefeedEntry(ns, db, tb string, seq uint64) []byte {
	bl := newBuilder(CatChangefeed).seg(ns).seg(db).seg(tb)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	bl.b = append(bl.b, seqBuf[:]...)
	return bl.bytes()
}

// DefinitionCacheKey returns an in-process cache key for a definition
// lookup; it is never written to the backend. Nothing in this module calls
// it: internal/kv's definition cache is only ever invalidated, never filled.
func DefinitionCacheKey(cat Category, parts ...string) []byte {
	bl := newBuilder(CatDefinitionCache).seg(string(byte(cat)))
	for _, p := range parts {
		bl.seg(p)
	}
	return bl.bytes()
}

// InRange reports whether key falls in the half-open range [lo, hi).
func InRange(key, lo, hi []byte) bool {
	return compareBytes(key, lo) >= 0 && compareBytes(key, hi) < 0
}

func compareBytes(a, b []byte) int {
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
