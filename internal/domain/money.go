package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision every monetary amount is normalised to
const MoneyPlaces = 2

// Money represents monetary values with precision (GLI-19 §2.5.6)
type Money struct {
	Amount   int64  `json:"amount"`   // Amount in smallest unit (cents)
	Currency string `json:"currency"` // ISO 4217 currency code
}

// Normalize rounds d to two places with banker's rounding. Negative amounts
// become zero.
func Normalize(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	r := d.RoundBank(MoneyPlaces)
	if r.IsZero() {
		return decimal.Zero
	}
	return r
}

// NormalizeFloat is Normalize for float input; NaN and infinities become zero
func NormalizeFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return Normalize(decimal.NewFromFloat(f))
}

// NewMoney creates a new Money value from dollars/major unit
func NewMoney(amount float64, currency string) Money {
	return MoneyFromDecimal(NormalizeFloat(amount), currency)
}

// MoneyFromDecimal normalises d and converts it to cents
func MoneyFromDecimal(d decimal.Decimal, currency string) Money {
	return Money{
		Amount:   Normalize(d).Shift(MoneyPlaces).IntPart(),
		Currency: currency,
	}
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -MoneyPlaces)
}

// Float64 returns the monetary value as a float
func (m Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

// Add adds two money values
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Sub subtracts money value
func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// IsPositive reports whether the amount is above zero
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(MoneyPlaces), m.Currency)
}
