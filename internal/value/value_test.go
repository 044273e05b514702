package value

import (
	"math"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func sampleValues() []Value {
	obj := NewObject()
	obj.Set("b", Int(2))
	obj.Set("a", Int(1))
	return []Value{
		None{},
		Null{},
		Bool(true),
		Int(42),
		Float(3.5),
		Decimal{decimal.RequireFromString("1.23")},
		Str("hello"),
		Duration(5 * time.Second),
		Datetime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		Uuid(uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301")),
		Array{Int(1), Str("x")},
		obj,
		Bytes("raw"),
		RecordID{Table: "person", Key: Str("tobie")},
	}
}

func TestRoundTrip(t *testing.T) {
	c := qt.New(t)
	for _, v := range sampleValues() {
		encoded := Encode(v)
		decoded, err := Decode(encoded)
		c.Assert(err, qt.IsNil)
		c.Assert(Equal(decoded, v), qt.IsTrue, qt.Commentf("%v != %v", decoded, v))
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	c := qt.New(t)
	b := Encode(Int(1))
	b[1] = 0xFF // corrupt the low byte of the u16 version
	_, err := Decode(b)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestDecodeRejectsUnknownVariant(t *testing.T) {
	c := qt.New(t)
	b := Encode(Int(1))
	// version (2 bytes) then a 4-byte discriminant; corrupt the discriminant.
	b[5] = 0xFF
	_, err := Decode(b)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestEqualityNaN(t *testing.T) {
	c := qt.New(t)
	nan := Float(math.NaN())
	c.Assert(Equal(nan, nan), qt.IsFalse)
}

func TestEqualityCrossVariantNumeric(t *testing.T) {
	c := qt.New(t)
	c.Assert(Equal(Int(2), Float(2.0)), qt.IsTrue)
}

func TestArithmeticOverflowWidensToDecimal(t *testing.T) {
	c := qt.New(t)
	v, err := Add(Int(math.MaxInt64), Int(1))
	c.Assert(err, qt.IsNil)
	_, isDecimal := v.(Decimal)
	c.Assert(isDecimal, qt.IsTrue)
}

func TestDivisionByZero(t *testing.T) {
	c := qt.New(t)
	_, err := Div(Int(1), Int(0))
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestArrayConcat(t *testing.T) {
	c := qt.New(t)
	v, err := Add(Array{Int(1)}, Array{Int(2)})
	c.Assert(err, qt.IsNil)
	c.Assert(Equal(v, Array{Int(1), Int(2)}), qt.IsTrue)
}

func TestObjectMergeRightBiased(t *testing.T) {
	c := qt.New(t)
	a := NewObject()
	a.Set("x", Int(1))
	b := NewObject()
	b.Set("x", Int(2))
	v, err := Add(a, b)
	c.Assert(err, qt.IsNil)
	obj := v.(Object)
	got, _ := obj.Get("x")
	c.Assert(Equal(got, Int(2)), qt.IsTrue)
}

func TestCanonicalRank(t *testing.T) {
	c := qt.New(t)
	c.Assert(Compare(None{}, Null{}) < 0, qt.IsTrue)
	c.Assert(Compare(Null{}, Bool(true)) < 0, qt.IsTrue)
	c.Assert(Compare(Bool(true), Int(1)) < 0, qt.IsTrue)
}

func TestRecordIDEquality(t *testing.T) {
	c := qt.New(t)
	a := RecordID{Table: "user", Key: Str("alice")}
	b := RecordID{Table: "user", Key: Str("alice")}
	d := RecordID{Table: "user", Key: Str("bob")}
	c.Assert(a.Equal(b), qt.IsTrue)
	c.Assert(a.Equal(d), qt.IsFalse)
}
