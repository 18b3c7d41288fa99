// Package validate implements the client-side checks applied to trade, sell
// and deposit intents before anything is sent to the backend.
//
// A failed check never reaches the network. Every failure wraps
// ErrValidation so callers can tell it apart from gateway failures.
package validate

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation is wrapped by every error this package returns.
	ErrValidation = errors.New("validate: invalid input")

	// ErrZeroAmount is returned for amounts that are zero or negative.
	ErrZeroAmount = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)

	// ErrAmountOutOfRange is returned when an amount falls outside the
	// configured bounds.
	ErrAmountOutOfRange = fmt.Errorf("%w: amount out of range", ErrValidation)

	// ErrInsufficientHoldings is returned when a sell exceeds the net
	// amount held.
	ErrInsufficientHoldings = fmt.Errorf("%w: insufficient holdings", ErrValidation)
)

// Limits holds the numeric bounds the panel enforces.
type Limits struct {
	// MinTrade and MaxTrade bound the coin amount of a buy or sell.
	MinTrade decimal.Decimal
	MaxTrade decimal.Decimal

	// MinDeposit and MaxDeposit bound a deposit request in account currency.
	MinDeposit decimal.Decimal
	MaxDeposit decimal.Decimal
}

// DefaultLimits returns the bounds used by the production panel.
func DefaultLimits() Limits {
	return Limits{
		MinTrade:   decimal.New(1, -8),
		MaxTrade:   decimal.NewFromInt(1_000_000),
		MinDeposit: decimal.NewFromInt(10),
		MaxDeposit: decimal.NewFromInt(50_000),
	}
}

// CheckTradeAmount validates the amount of a buy or sell from the
// trade-entry view.
func (l Limits) CheckTradeAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrZeroAmount
	}
	if amount.LessThan(l.MinTrade) || amount.GreaterThan(l.MaxTrade) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrAmountOutOfRange,
			amount, l.MinTrade, l.MaxTrade)
	}
	return nil
}

// CheckSell validates selling amount out of a holding of held.
func (l Limits) CheckSell(amount, held decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrZeroAmount
	}
	if amount.GreaterThan(held) {
		return fmt.Errorf("%w: selling %s, holding %s", ErrInsufficientHoldings, amount, held)
	}
	return nil
}

// CheckDeposit validates a deposit amount.
func (l Limits) CheckDeposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrZeroAmount
	}
	if amount.LessThan(l.MinDeposit) || amount.GreaterThan(l.MaxDeposit) {
		return fmt.Errorf("%w: deposit %s not in [%s, %s]", ErrAmountOutOfRange,
			amount, l.MinDeposit, l.MaxDeposit)
	}
	return nil
}
