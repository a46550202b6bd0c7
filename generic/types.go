/*
Package generic provides the domain-agnostic primitives of the payroll engine.

PURPOSE:
  Money, calendar dates, pay periods and an append-only accumulation ledger.
  Nothing in this package knows about taxes, deductions or employees beyond
  an opaque EntityID; the payroll package builds its semantics on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity in a currency (e.g., 1800.00 USD)
  - Transaction: An immutable ledger entry recording an accumulation
  - EntityID / AccumulatorID: Type-safe identifiers for ledger keys

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal, never float64, for money
  3. Type Safety: Strong typing for IDs prevents mixing entity/accumulator IDs

USAGE:
  wages := generic.NewAmount(1800, generic.CurrencyUSD)
  tx := generic.Transaction{
      EntityID:      "emp-123",
      AccumulatorID: "social_security",
      Delta:         wages,
      Type:          generic.TxWages,
  }

SEE ALSO:
  - period.go: Pay periods and frequencies
  - ledger.go: Year-to-date accumulation over transactions
*/
package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// =============================================================================
// AMOUNT - Decimal quantity with currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

// Currency is an ISO 4217 code.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
)

// Valid reports whether c is a registered ISO 4217 code in upper case.
func (c Currency) Valid() bool {
	if len(c) != 3 || strings.ToUpper(string(c)) != string(c) {
		return false
	}
	_, err := currency.ParseISO(string(c))
	return err == nil
}

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromDecimal(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

// ParseAmount parses a decimal string such as "1662.30".
func ParseAmount(s string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{Value: d, Currency: currency}, nil
}

// Cents rounds d to two decimal places using banker's rounding.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) Round() Amount                { return Amount{Value: Cents(a.Value), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func (a Amount) String() string {
	return a.Value.StringFixed(2) + " " + string(a.Currency)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type AccumulatorID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to an accumulator
// =============================================================================

type TransactionType string

const (
	TxWages      TransactionType = "wages"      // Taxable wages recorded when a period is committed
	TxAdjustment TransactionType = "adjustment" // Manual correction (prior employer wages, imports)
	TxReversal   TransactionType = "reversal"   // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	AccumulatorID  AccumulatorID
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	CreatedBy string
	CreatedAt TimePoint
}
