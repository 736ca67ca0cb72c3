package value

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/tablecore/pkg/errors"
)

type numberKind uint8

const (
	kindInt numberKind = iota
	kindBigInt
	kindDecimal
)

// Number is an exact numeric value. It holds a machine integer, an
// arbitrary-precision integer or an arbitrary-precision decimal. The zero
// value is the integer 0.
type Number struct {
	kind numberKind
	i    int64
	bi   *big.Int
	d    decimal.Decimal
}

// Int returns the Number for v.
func Int(v int64) Number {
	return Number{kind: kindInt, i: v}
}

// BigInt returns the Number for v. v is copied.
func BigInt(v *big.Int) Number {
	return Number{kind: kindBigInt, bi: new(big.Int).Set(v)}
}

// Decimal returns the Number for d.
func Decimal(d decimal.Decimal) Number {
	return Number{kind: kindDecimal, d: d}
}

// ParseNumber reads the canonical numeric literal syntax: an optional sign,
// digits, and an optional fraction. It tries a machine integer first, then an
// arbitrary-precision integer, then a decimal. Exponents are not accepted.
func ParseNumber(s string) (Number, error) {
	if !validNumberLiteral(s) {
		return Number{}, errors.Data("not a number", s, "Number", s)
	}
	unsigned := strings.TrimPrefix(s, "+")
	if !strings.Contains(s, ".") {
		if v, err := strconv.ParseInt(unsigned, 10, 64); err == nil {
			return Int(v), nil
		}
		if bi, ok := new(big.Int).SetString(unsigned, 10); ok {
			return Number{kind: kindBigInt, bi: bi}, nil
		}
	}
	d, err := decimal.NewFromString(unsigned)
	if err != nil {
		return Number{}, errors.Wrap(err, errors.ErrorTypeData, "not a number").
			WithDetail(errors.DetailSnippet, s).
			WithDetail(errors.DetailExpectedType, "Number").
			WithDetail(errors.DetailText, s)
	}
	return Decimal(d), nil
}

func validNumberLiteral(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	intPart, frac, hasDot := strings.Cut(s, ".")
	if !allDigits(intPart) || intPart == "" {
		return false
	}
	return !hasDot || (frac != "" && allDigits(frac))
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Int64 returns the value as an int64 when it is an integer that fits.
func (n Number) Int64() (int64, bool) {
	switch n.kind {
	case kindInt:
		return n.i, true
	case kindBigInt:
		if n.bi.IsInt64() {
			return n.bi.Int64(), true
		}
	case kindDecimal:
		if n.d.IsInteger() {
			bi := n.d.BigInt()
			if bi.IsInt64() {
				return bi.Int64(), true
			}
		}
	}
	return 0, false
}

// IsDecimal reports whether n is held as a decimal, even if its value is integral.
func (n Number) IsDecimal() bool { return n.kind == kindDecimal }

// IsBigInt reports whether n is held as an arbitrary-precision integer.
func (n Number) IsBigInt() bool { return n.kind == kindBigInt }

// IsInteger reports whether the value of n is integral.
func (n Number) IsInteger() bool {
	return n.kind != kindDecimal || n.d.IsInteger()
}

// BigInt returns the value as a new big.Int when it is integral.
func (n Number) BigInt() (*big.Int, bool) {
	switch n.kind {
	case kindInt:
		return big.NewInt(n.i), true
	case kindBigInt:
		return new(big.Int).Set(n.bi), true
	default:
		if !n.d.IsInteger() {
			return nil, false
		}
		return n.d.BigInt(), true
	}
}

// AsDecimal returns the value as a decimal.
func (n Number) AsDecimal() decimal.Decimal {
	switch n.kind {
	case kindInt:
		return decimal.NewFromInt(n.i)
	case kindBigInt:
		return decimal.NewFromBigInt(n.bi, 0)
	default:
		return n.d
	}
}

// Cmp compares the values of n and o numerically.
func (n Number) Cmp(o Number) int {
	if n.kind == kindInt && o.kind == kindInt {
		switch {
		case n.i < o.i:
			return -1
		case n.i > o.i:
			return 1
		}
		return 0
	}
	return n.AsDecimal().Cmp(o.AsDecimal())
}

// Equal reports numeric equality: 4.50 equals 4.5 and a big integer equals
// the machine integer of the same value.
func (n Number) Equal(o Number) bool {
	return n.Cmp(o) == 0
}

// String returns the canonical literal: no grouping, no exponent, no
// trailing fractional zeros.
func (n Number) String() string {
	switch n.kind {
	case kindInt:
		return strconv.FormatInt(n.i, 10)
	case kindBigInt:
		return n.bi.String()
	default:
		return n.d.String()
	}
}

// StringMinDecimals returns the canonical literal padded with fractional
// zeros to at least places decimal places.
func (n Number) StringMinDecimals(places int) string {
	s := n.String()
	if places <= 0 {
		return s
	}
	_, frac, hasDot := strings.Cut(s, ".")
	if !hasDot {
		return s + "." + strings.Repeat("0", places)
	}
	if len(frac) < places {
		return s + strings.Repeat("0", places-len(frac))
	}
	return s
}

