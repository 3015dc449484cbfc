package model

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyScale is the number of fractional digits kept for every amount.
const moneyScale = 2

// ErrMoneyPrecision is returned when an amount carries more fractional
// digits than the ledger stores.
var ErrMoneyPrecision = errors.New("amount has more than two decimal places")

// Money is a fixed-point currency amount in minor units (paise).  All
// balances and ledger amounts use it so that arithmetic is exact; the
// decimal representation only exists at the edges (JSON, config, logs).
type Money int64

// NewMoney builds a Money value from whole units and minor units, e.g.
// NewMoney(100, 0) is 100.00.
func NewMoney(units, minor int64) Money {
	return Money(units*100 + minor)
}

// MoneyFromDecimal converts a decimal into Money, rejecting values that
// cannot be represented without rounding.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(moneyScale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrMoneyPrecision
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return Money(shifted.IntPart()), nil
}

// ParseMoney parses decimal text such as "150", "150.5" or "150.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// Decimal returns the amount as a decimal in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -moneyScale)
}

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(moneyScale)
}

// Neg returns the negated amount.
func (m Money) Neg() Money { return -m }

// MarshalJSON writes the amount as a JSON number with two decimals so
// that clients doing parseFloat on the value keep working.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	b = bytes.Trim(b, `"`)
	if len(b) == 0 {
		return errors.New("empty amount")
	}
	v, err := ParseMoney(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalText lets seed files and env values write amounts as plain text.
func (m *Money) UnmarshalText(b []byte) error {
	v, err := ParseMoney(string(bytes.TrimSpace(b)))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
