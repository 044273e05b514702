package value

import (
	"github.com/shopspring/decimal"
)

// Float is the 64-bit floating point Number variant.
type Float float64

func (Float) Kind() Kind { return KindNumber }
func (f Float) String() string {
	d := decimal.NewFromFloat(float64(f))
	return d.String()
}

// Decimal is the fixed-point Number variant, backed by shopspring/decimal
// (a big.Int mantissa plus exponent, the practical Go equivalent of the
// spec's 128-bit fixed-point decimal).
type Decimal struct{ decimal.Decimal }

func (Decimal) Kind() Kind       { return KindNumber }
func (d Decimal) String() string { return d.Decimal.String() }

// NewDecimal wraps a shopspring/decimal.Decimal as a Value.
func NewDecimal(d decimal.Decimal) Decimal { return Decimal{d} }

// DecimalFromString parses a decimal literal's raw digits (as lexed, with
// its "dec" suffix already stripped) into a Decimal value.
func DecimalFromString(raw string) (Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{d}, nil
}

// IsNumber reports whether v is one of Int, Float, Decimal.
func IsNumber(v Value) bool {
	switch v.(type) {
	case Int, Float, Decimal:
		return true
	default:
		return false
	}
}
