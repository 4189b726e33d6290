package corebank

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact fixed-point amount at scale 2. It exists so the
// rest of the module never touches decimal.Decimal's rounding modes or
// float64 directly. Every monetary value that enters the ledger is
// rounded to scale 2 by NewMoney, NewMoneyFromDecimal or UnmarshalJSON,
// always half-up ("all rounding is half-up").
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// NewMoney builds a Money from a decimal string such as "1000.00". It
// panics on malformed input, matching the teacher's convention of
// treating malformed literal amounts as a programming error rather
// than a runtime one (see MustParseDecimal in the timeoff pack).
func NewMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("corebank: invalid money literal %q: %v", s, err))
	}
	return Money{d: d.Round(2)}
}

// NewMoneyFromDecimal rounds an arbitrary-precision decimal to scale 2,
// half-up.
func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

// MulRate multiplies by an arbitrary-precision rate (e.g. a percentage
// expressed as a fraction) and rounds the result to scale 2, half-up.
// Daily interest accrual does not call it; it rounds through
// NewMoneyFromDecimal.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money{d: m.d.Mul(rate).Round(2)}
}

func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) String() string { return m.d.StringFixed(2) }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.StringFixed(2) + `"`), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	m.d = d.Round(2)
	return nil
}

func Sum(ms...Money) Money {
	total := Zero
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}
