// Package money holds monetary amounts as integer cents.
package money

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Money is an amount in cents.
type Money int64

// Max is the largest amount accepted from outside: ten trillion units. Sums of a
// few thousand such amounts still fit in an int64.
const Max = Money(1_000_000_000_000_000)

// ErrOutOfRange is returned for amounts beyond ±Max.
var ErrOutOfRange = errors.New("amount out of range")

var (
	hundred = decimal.NewFromInt(100)
	maxDec  = decimal.NewFromInt(int64(Max))
)

func Cents(c int64) Money { return Money(c) }

// FromDecimal rounds d half-up to the nearest cent. d must lie within ±Max;
// Parse is the checked entry point for outside input.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Round(0).IntPart())
}

// Parse reads a decimal amount such as "12.5" or "1200".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if c := d.Shift(2).Round(0); c.Abs().GreaterThan(maxDec) {
		return 0, fmt.Errorf("amount %q: %w", s, ErrOutOfRange)
	}
	return FromDecimal(d), nil
}

func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Cents() int64 { return int64(m) }

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }

func (m Money) Mul(qty int) Money { return m * Money(qty) }

// MulChecked multiplies in decimal and reports false when |m × qty| is over Max.
func (m Money) MulChecked(qty int) (Money, bool) {
	p := decimal.NewFromInt(int64(m)).Mul(decimal.NewFromInt(int64(qty)))
	if p.Abs().GreaterThan(maxDec) {
		return 0, false
	}
	return Money(p.IntPart()), true
}

// InRange reports whether m is within ±Max.
func (m Money) InRange() bool { return m >= -Max && m <= Max }

// Percent returns pct percent of m, rounded half-up to the cent.
func (m Money) Percent(pct decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(pct).Div(hundred))
}

func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -2) }

// String renders the plain decimal form, "1234.50".
func (m Money) String() string { return m.Decimal().StringFixed(2) }

// Display renders "$1,234.50" for messages meant for people.
func (m Money) Display() string {
	sign := ""
	c := int64(m)
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(c/100), c%100)
}

// Abs returns |m|.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*m = 0
		return nil
	}
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
