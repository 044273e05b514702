package value

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Equal reports structural equality under the rules of spec.md §4.4:
// Float NaN is never equal to anything, including itself; Integer and
// Float compare numerically across variants.
func Equal(a, b Value) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			if math.IsNaN(af) || math.IsNaN(bf) {
				return false
			}
			return af == bf
		}
	}
	switch av := a.(type) {
	case None:
		_, ok := b.(None)
		return ok
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Duration:
		bv, ok := b.(Duration)
		return ok && av == bv
	case Datetime:
		bv, ok := b.(Datetime)
		return ok && time.Time(av).Equal(time.Time(bv))
	case Uuid:
		bv, ok := b.(Uuid)
		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && string(av) == string(bv)
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.SortedKeys() {
			av1, _ := av.Get(k)
			bv1, ok := bv.Get(k)
			if !ok || !Equal(av1, bv1) {
				return false
			}
		}
		return true
	case RecordID:
		bv, ok := b.(RecordID)
		return ok && av.Equal(bv)
	case Decimal:
		bv, ok := b.(Decimal)
		return ok && av.Decimal.Equal(bv.Decimal)
	}
	return false
}

// asFloat extracts a float64 view of a, used only to unify Integer/Float/
// Decimal equality and ordering; it never mutates a.
func asFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	case Decimal:
		f, _ := n.Decimal.Float64()
		return f, true
	default:
		return 0, false
	}
}

// Compare returns -1, 0, 1 comparing a and b. Values of different kinds
// compare by Kind.Rank(); NaN floats sort as if greater than everything
// (they cannot be equal, but Compare still needs a total order for
// ORDER BY, unlike Equal).
func Compare(a, b Value) int {
	if IsNumber(a) && IsNumber(b) {
		return compareNumeric(a, b)
	}
	ra, rb := a.Kind().Rank(), b.Kind().Rank()
	if ra != rb {
		return sign(ra - rb)
	}
	switch av := a.(type) {
	case None, Null:
		return 0
	case Bool:
		bv := b.(Bool)
		if av == bv {
			return 0
		}
		if !bool(av) {
			return -1
		}
		return 1
	case Str:
		bv := b.(Str)
		return compareStrings(string(av), string(bv))
	case Duration:
		bv := b.(Duration)
		return sign64(int64(av) - int64(bv))
	case Datetime:
		bv := b.(Datetime)
		ta, tb := time.Time(av), time.Time(bv)
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		default:
			return 0
		}
	case Uuid:
		bv := b.(Uuid)
		return compareStrings(av.String(), bv.String())
	case Array:
		bv := b.(Array)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return sign(len(av) - len(bv))
	case Object:
		bv := b.(Object)
		ak, bk := av.SortedKeys(), bv.SortedKeys()
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := compareStrings(ak[i], bk[i]); c != 0 {
				return c
			}
			av1, _ := av.Get(ak[i])
			bv1, _ := bv.Get(bk[i])
			if c := Compare(av1, bv1); c != 0 {
				return c
			}
		}
		return sign(len(ak) - len(bk))
	case Bytes:
		bv := b.(Bytes)
		return compareStrings(string(av), string(bv))
	case RecordID:
		bv := b.(RecordID)
		if c := compareStrings(av.Table, bv.Table); c != 0 {
			return c
		}
		return Compare(av.Key, bv.Key)
	}
	return 0
}

func compareNumeric(a, b Value) int {
	// Widen to decimal whenever either side is Decimal to avoid float
	// rounding; otherwise compare as float64.
	_, aDec := a.(Decimal)
	_, bDec := b.(Decimal)
	if aDec || bDec {
		da := toDecimal(a)
		db := toDecimal(b)
		return da.Cmp(db)
	}
	af, _ := asFloat(a)
	bf, _ := asFloat(b)
	aNaN, bNaN := math.IsNaN(af), math.IsNaN(bf)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func toDecimal(v Value) decimal.Decimal {
	switch n := v.(type) {
	case Int:
		return decimal.NewFromInt(int64(n))
	case Float:
		return decimal.NewFromFloat(float64(n))
	case Decimal:
		return n.Decimal
	default:
		return decimal.Zero
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func sign64(n int64) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
