// Package value implements the runtime value algebra described in
// spec.md §3/§4.4: a tagged union over None, Null, Bool, Number, String,
// Duration, Datetime, Uuid, Array, Object, Bytes, and RecordId, plus
// deterministic comparison, arithmetic, coercion, and canonical encoding.
//
// What: Value is a closed interface implemented by one concrete type per
// variant, following the teacher parser's `Expr interface{}` sum-type style
// rather than a tagged struct — type switches in compare.go/arith.go/
// encode.go dispatch on the concrete type.
// How: Object uses github.com/wk8/go-ordered-map/v2 so insertion order is
// available to callers while canonical encoding always walks keys sorted.
// Number.Decimal uses github.com/shopspring/decimal for 128-bit-equivalent
// fixed point. Uuid uses github.com/google/uuid.
// Why: A closed interface keeps every consumer exhaustive (the compiler
// flags a missing case in a type switch at the default branch) without the
// boilerplate of a hand-rolled reflection-based tagged union.
package value

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	om "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies a Value's variant for canonical ranking and wire tags.
type Kind int

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindDuration
	KindDatetime
	KindUuid
	KindArray
	KindObject
	KindBytes
	KindRecordID
)

// Rank returns the canonical cross-variant ordering position used when
// comparing values of different kinds (spec.md §4.4).
func (k Kind) Rank() int { return int(k) }

var kindNames = [...]string{
	KindNone:     "none",
	KindNull:     "null",
	KindBool:     "bool",
	KindNumber:   "number",
	KindString:   "string",
	KindDuration: "duration",
	KindDatetime: "datetime",
	KindUuid:     "uuid",
	KindArray:    "array",
	KindObject:   "object",
	KindBytes:    "bytes",
	KindRecordID: "record",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is the closed set of runtime value variants.
type Value interface {
	Kind() Kind
	String() string
}

// None represents "no value" — distinct from explicit Null.
type None struct{}

func (None) Kind() Kind     { return KindNone }
func (None) String() string { return "NONE" }

// Null represents an explicit SQL-style null.
type Null struct{}

func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "NULL" }

// Bool wraps a boolean.
type Bool bool

func (Bool) Kind() Kind       { return KindBool }
func (b Bool) String() string { return fmt.Sprintf("%t", bool(b)) }

// Str wraps a UTF-8 string. Named Str, not String, to avoid colliding with
// the String() method every Value implements.
type Str string

func (Str) Kind() Kind       { return KindString }
func (s Str) String() string { return string(s) }

// Duration wraps time.Duration. Encoding nests a version field per the
// open question preserved in spec.md §9.
type Duration time.Duration

func (Duration) Kind() Kind       { return KindDuration }
func (d Duration) String() string { return time.Duration(d).String() }

// Datetime wraps an RFC 3339 instant.
type Datetime time.Time

func (Datetime) Kind() Kind       { return KindDatetime }
func (d Datetime) String() string { return time.Time(d).Format(time.RFC3339Nano) }

// Uuid wraps google/uuid.UUID.
type Uuid uuid.UUID

func (Uuid) Kind() Kind       { return KindUuid }
func (u Uuid) String() string { return uuid.UUID(u).String() }

// Bytes wraps an opaque byte string.
type Bytes []byte

func (Bytes) Kind() Kind       { return KindBytes }
func (b Bytes) String() string { return fmt.Sprintf("%x", []byte(b)) }

// Array is an ordered list of values.
type Array []Value

func (Array) Kind() Kind { return KindArray }
func (a Array) String() string {
	s := "["
	for i, v := range a {
		if i > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s + "]"
}

// Object is an ordered string-keyed map. Canonical consumers (encode.go,
// compare.go) always range over SortedKeys(), not the map's native iteration
// order; author-facing consumers that want insertion order use Oldest()/
// Newer() directly on the embedded OrderedMap.
type Object struct {
	*om.OrderedMap[string, Value]
}

// NewObject returns an empty Object.
func NewObject() Object {
	return Object{OrderedMap: om.New[string, Value]()}
}

func (Object) Kind() Kind { return KindObject }

func (o Object) String() string {
	s := "{"
	first := true
	for _, k := range o.SortedKeys() {
		v, _ := o.Get(k)
		if !first {
			s += ", "
		}
		first = false
		s += k + ": " + v.String()
	}
	return s + "}"
}

// SortedKeys returns the object's keys in canonical (lexicographic) order,
// independent of insertion order.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, o.Len())
	for pair := o.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	sort.Strings(keys)
	return keys
}

// RecordIDKey is the in-table identity of a record: string, integer, array,
// or object (spec.md §3).
type RecordIDKey interface {
	Value
	isRecordIDKey()
}

func (Str) isRecordIDKey()    {}
func (Array) isRecordIDKey()  {}
func (Object) isRecordIDKey() {}

// Int is a 64-bit signed integer number and, when used as a record id key,
// the Integer RecordIdKey variant from spec.md §3.
type Int int64

func (Int) Kind() Kind       { return KindNumber }
func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }
func (Int) isRecordIDKey()   {}

// RecordID identifies a record as {table, key}.
type RecordID struct {
	Table string
	Key   RecordIDKey
}

func (RecordID) Kind() Kind { return KindRecordID }
func (r RecordID) String() string {
	return fmt.Sprintf("%s:%s", r.Table, r.Key.String())
}

// Equal reports structural equality of two record ids (spec.md §3: equal
// iff table and key are equal by the value equality of each component).
func (r RecordID) Equal(other RecordID) bool {
	return r.Table == other.Table && Equal(r.Key, other.Key)
}

