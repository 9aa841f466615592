// Package evaluator holds the pure trigger rules for price targets. It never
// consults history; de-duplication is the caller's responsibility.
package evaluator

import (
	"errors"

	"github.com/shopspring/decimal"

	"stock-target-alerts/internal/errkind"
	"stock-target-alerts/internal/watchlist"
)

// ErrInvalidTarget marks a precondition violation: the repository layer must
// never hand the evaluator a non-positive target price.
var ErrInvalidTarget = errors.New("evaluator: invalid target")

// ErrInvalidQuote marks a non-positive current price from the provider.
var ErrInvalidQuote = errors.New("evaluator: invalid quote price")

var hundred = decimal.NewFromInt(100)

// Outcome is the result of evaluating one (target, price) pair. Delta and
// DeltaPercent are computed regardless of trigger state.
type Outcome struct {
	Triggered    bool
	Delta        decimal.Decimal
	DeltaPercent decimal.Decimal
}

// Evaluate applies the type-specific trigger rule:
//
//	Buy, DCA:   triggered when currentPrice <= target price
//	Sell, Trim: triggered when currentPrice >= target price
//
// Boundaries are inclusive. The function is pure and deterministic.
func Evaluate(target watchlist.Target, currentPrice decimal.Decimal) (Outcome, error) {
	if !target.Type.Valid() {
		return Outcome{}, errkind.Wrap(errkind.DataIntegrity, ErrInvalidTarget)
	}
	if target.Price.Sign() <= 0 {
		return Outcome{}, errkind.Wrap(errkind.DataIntegrity, ErrInvalidTarget)
	}
	if currentPrice.Sign() <= 0 {
		return Outcome{}, errkind.Wrap(errkind.DataIntegrity, ErrInvalidQuote)
	}

	delta := currentPrice.Sub(target.Price)
	outcome := Outcome{
		Delta:        delta,
		DeltaPercent: delta.Div(target.Price).Mul(hundred),
	}

	if target.Type.Entry() {
		outcome.Triggered = currentPrice.LessThanOrEqual(target.Price)
	} else {
		outcome.Triggered = currentPrice.GreaterThanOrEqual(target.Price)
	}
	return outcome, nil
}
