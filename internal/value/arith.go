package value

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"

	"github.com/coredb/qlcore/internal/errs"
)

// addOverflows reports whether x+y overflows a signed integer type T,
// generic over any width so the same check covers Int's underlying int64
// today and any narrower record-id integer representation later.
func addOverflows[T constraints.Signed](x, y T) bool {
	sum := x + y
	return (sum > x) != (y > 0)
}

// subOverflows reports whether x-y overflows a signed integer type T.
func subOverflows[T constraints.Signed](x, y T) bool {
	diff := x - y
	return (diff < x) != (y > 0)
}

// Add implements `+` for two Values: numeric addition, Array concatenation,
// Object right-biased merge, or Str concatenation.
func Add(a, b Value) (Value, error) {
	if IsNumber(a) && IsNumber(b) {
		return numericOp(a, b, "+",
			func(x, y int64) (Value, bool) {
				if addOverflows(x, y) {
					return nil, false // overflow: widen to decimal
				}
				return Int(x + y), true
			},
			func(x, y float64) Value { return Float(x + y) },
			func(x, y decimal.Decimal) Value { return Decimal{x.Add(y)} },
		)
	}
	if as, ok := a.(Str); ok {
		if bs, ok := b.(Str); ok {
			return as + bs, nil
		}
	}
	if aa, ok := a.(Array); ok {
		if ba, ok := b.(Array); ok {
			out := make(Array, 0, len(aa)+len(ba))
			out = append(out, aa...)
			out = append(out, ba...)
			return out, nil
		}
	}
	if ao, ok := a.(Object); ok {
		if bo, ok := b.(Object); ok {
			return mergeObjects(ao, bo), nil
		}
	}
	return nil, errs.New(errs.Arithmetic, "cannot add "+a.Kind().String()+" and "+b.Kind().String())
}

func mergeObjects(a, b Object) Object {
	out := NewObject()
	for _, k := range a.SortedKeys() {
		v, _ := a.Get(k)
		out.Set(k, v)
	}
	// right-biased: b's keys win on conflict.
	for _, k := range b.SortedKeys() {
		v, _ := b.Get(k)
		out.Set(k, v)
	}
	return out
}

// Sub implements `-`.
func Sub(a, b Value) (Value, error) {
	return numericOp(a, b, "-",
		func(x, y int64) (Value, bool) {
			if subOverflows(x, y) {
				return nil, false
			}
			return Int(x - y), true
		},
		func(x, y float64) Value { return Float(x - y) },
		func(x, y decimal.Decimal) Value { return Decimal{x.Sub(y)} },
	)
}

// Mul implements `×`.
func Mul(a, b Value) (Value, error) {
	return numericOp(a, b, "×",
		func(x, y int64) (Value, bool) {
			if x == 0 || y == 0 {
				return Int(0), true
			}
			p := x * y
			if p/y != x {
				return nil, false
			}
			return Int(p), true
		},
		func(x, y float64) Value { return Float(x * y) },
		func(x, y decimal.Decimal) Value { return Decimal{x.Mul(y)} },
	)
}

// Div implements `÷`. Division by zero is an Arithmetic error regardless of
// numeric representation.
func Div(a, b Value) (Value, error) {
	if isZero(b) {
		return nil, errs.New(errs.Arithmetic, "division by zero")
	}
	return numericOp(a, b, "÷",
		func(x, y int64) (Value, bool) {
			if x%y != 0 {
				return nil, false // widen so e.g. 1÷3 keeps precision
			}
			return Int(x / y), true
		},
		func(x, y float64) Value { return Float(x / y) },
		func(x, y decimal.Decimal) Value { return Decimal{x.Div(y)} },
	)
}

// Mod implements the `%` remainder operator. Modulo by zero is an
// Arithmetic error, same as Div.
func Mod(a, b Value) (Value, error) {
	if isZero(b) {
		return nil, errs.New(errs.Arithmetic, "modulo by zero")
	}
	return numericOp(a, b, "%",
		func(x, y int64) (Value, bool) { return Int(x % y), true },
		func(x, y float64) Value { return Float(math.Mod(x, y)) },
		func(x, y decimal.Decimal) Value { return Decimal{x.Mod(y)} },
	)
}

// Pow implements `**`.
func Pow(a, b Value) (Value, error) {
	af, _ := asFloat(a)
	bf, _ := asFloat(b)
	_, aDec := a.(Decimal)
	_, bDec := b.(Decimal)
	if aDec || bDec {
		return Decimal{toDecimal(a).Pow(toDecimal(b))}, nil
	}
	return Float(math.Pow(af, bf)), nil
}

func isZero(v Value) bool {
	switch n := v.(type) {
	case Int:
		return n == 0
	case Float:
		return n == 0
	case Decimal:
		return n.Decimal.IsZero()
	default:
		return false
	}
}

func numericOp(a, b Value, op string,
	intOp func(x, y int64) (Value, bool),
	floatOp func(x, y float64) Value,
	decOp func(x, y decimal.Decimal) Value,
) (Value, error) {
	if !IsNumber(a) || !IsNumber(b) {
		return nil, errs.New(errs.Arithmetic, "non-numeric operand to "+op)
	}
	_, aDec := a.(Decimal)
	_, bDec := b.(Decimal)
	if aDec || bDec {
		return decOp(toDecimal(a), toDecimal(b)), nil
	}
	ai, aIsInt := a.(Int)
	bi, bIsInt := b.(Int)
	if aIsInt && bIsInt {
		if v, ok := intOp(int64(ai), int64(bi)); ok {
			return v, nil
		}
		return decOp(toDecimal(a), toDecimal(b)), nil
	}
	af, _ := asFloat(a)
	bf, _ := asFloat(b)
	return floatOp(af, bf), nil
}

// --- Coercions (spec.md §4.4) ---

// AsBool coerces v to a boolean. None/Null/zero/empty are false.
func AsBool(v Value) bool {
	switch t := v.(type) {
	case None, Null:
		return false
	case Bool:
		return bool(t)
	case Int:
		return t != 0
	case Float:
		return t != 0
	case Decimal:
		return !t.Decimal.IsZero()
	case Str:
		return t != ""
	case Array:
		return len(t) > 0
	case Object:
		return t.Len() > 0
	default:
		return true
	}
}

// AsInt coerces v to an int64, truncating float/decimal toward zero.
func AsInt(v Value) (int64, error) {
	switch t := v.(type) {
	case Int:
		return int64(t), nil
	case Float:
		return int64(t), nil
	case Decimal:
		return t.Decimal.Truncate(0).IntPart(), nil
	case Bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case Str:
		n, err := strconv.ParseInt(string(t), 10, 64)
		if err != nil {
			return 0, errs.Wrap(errs.Conversion, err, "cannot convert string to int")
		}
		return n, nil
	default:
		return 0, errs.New(errs.Conversion, "cannot convert "+v.Kind().String()+" to int")
	}
}

// AsFloat coerces v to a float64.
func AsFloat(v Value) (float64, error) {
	switch t := v.(type) {
	case Int:
		return float64(t), nil
	case Float:
		return float64(t), nil
	case Decimal:
		f, _ := t.Decimal.Float64()
		return f, nil
	case Str:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return 0, errs.Wrap(errs.Conversion, err, "cannot convert string to float")
		}
		return f, nil
	default:
		return 0, errs.New(errs.Conversion, "cannot convert "+v.Kind().String()+" to float")
	}
}

// AsDecimal coerces v to a Decimal.
func AsDecimal(v Value) (Decimal, error) {
	switch t := v.(type) {
	case Decimal:
		return t, nil
	case Int:
		return Decimal{decimal.NewFromInt(int64(t))}, nil
	case Float:
		return Decimal{decimal.NewFromFloat(float64(t))}, nil
	case Str:
		d, err := decimal.NewFromString(string(t))
		if err != nil {
			return Decimal{}, errs.Wrap(errs.Conversion, err, "cannot convert string to decimal")
		}
		return Decimal{d}, nil
	default:
		return Decimal{}, errs.New(errs.Conversion, "cannot convert "+v.Kind().String()+" to decimal")
	}
}

// AsString coerces v to its canonical textual form.
func AsString(v Value) (string, error) {
	switch v.(type) {
	case None, Null:
		return "", nil
	default:
		return v.String(), nil
	}
}

// AsDatetime coerces v to a Datetime, parsing RFC 3339 strings.
func AsDatetime(v Value) (Datetime, error) {
	switch t := v.(type) {
	case Datetime:
		return t, nil
	case Str:
		tm, err := time.Parse(time.RFC3339, string(t))
		if err != nil {
			return Datetime{}, errs.Wrap(errs.Conversion, err, "cannot parse datetime")
		}
		return Datetime(tm), nil
	default:
		return Datetime{}, errs.New(errs.Conversion, "cannot convert "+v.Kind().String()+" to datetime")
	}
}

// AsDuration coerces v to a Duration, parsing the query language's duration
// suffix set (ns, µs/us, ms, s, m, h, d, w, y) via the lexer's own parser is
// avoided here to keep value from importing lexer; string durations that
// use Go's native suffixes are parsed via time.ParseDuration, and qlcore's
// extended suffixes (d, w, y) are handled by the lexer before a Duration
// literal ever reaches this package.
func AsDuration(v Value) (Duration, error) {
	switch t := v.(type) {
	case Duration:
		return t, nil
	case Str:
		d, err := time.ParseDuration(string(t))
		if err != nil {
			return 0, errs.Wrap(errs.Conversion, err, "cannot parse duration")
		}
		return Duration(d), nil
	default:
		return 0, errs.New(errs.Conversion, "cannot convert "+v.Kind().String()+" to duration")
	}
}
