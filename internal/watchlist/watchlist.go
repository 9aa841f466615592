package watchlist

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TargetType enumerates the supported price target kinds.
type TargetType string

const (
	TargetBuy  TargetType = "Buy"
	TargetSell TargetType = "Sell"
	TargetDCA  TargetType = "DCA"
	TargetTrim TargetType = "Trim"
)

// Valid reports whether the type is one of the four known kinds.
func (t TargetType) Valid() bool {
	switch t {
	case TargetBuy, TargetSell, TargetDCA, TargetTrim:
		return true
	}
	return false
}

// Entry reports whether the target triggers on price falling to or below the
// target price (Buy/DCA). The complement triggers on rising to or above it.
func (t TargetType) Entry() bool {
	return t == TargetBuy || t == TargetDCA
}

// Stock is the read-only identity of a tracked instrument. Ownership lives in
// the CRUD layer; within a cycle the snapshot is immutable.
type Stock struct {
	ID          int64
	Symbol      string
	CompanyName string
	Exchange    string
}

// Target is a user-defined price condition attached to a stock. The monitor
// only ever reads targets.
type Target struct {
	ID             int64
	StockID        int64
	Type           TargetType
	Price          decimal.Decimal
	TrimPercentage *decimal.Decimal
	AlertNote      string
	Active         bool
}

// Item pairs a stock with one of its active targets. It is built once at the
// repository boundary and consumed uniformly downstream.
type Item struct {
	Stock  Stock
	Target Target
}

// PriceQuote is a per-cycle observation of a symbol's market price. It is
// consumed within the cycle and never persisted.
type PriceQuote struct {
	Symbol    string
	Price     decimal.Decimal
	FetchedAt time.Time
}

// Repository yields a point-in-time consistent snapshot of the watchlist.
type Repository interface {
	ListActiveTargets(ctx context.Context) ([]Item, error)
}

// Symbols returns the de-duplicated symbol set of a snapshot, in first-seen
// order so batch fetches stay deterministic.
func Symbols(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	symbols := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Stock.Symbol]; ok {
			continue
		}
		seen[item.Stock.Symbol] = struct{}{}
		symbols = append(symbols, item.Stock.Symbol)
	}
	return symbols
}

// Validate checks the invariants the CRUD layer is supposed to uphold before a
// target reaches evaluation.
func (t Target) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("target %d: unknown type %q", t.ID, t.Type)
	}
	if t.Price.Sign() <= 0 {
		return fmt.Errorf("target %d: non-positive price %s", t.ID, t.Price)
	}
	if t.Type == TargetTrim {
		if t.TrimPercentage == nil || t.TrimPercentage.Sign() <= 0 {
			return fmt.Errorf("target %d: trim target requires positive trim percentage", t.ID)
		}
	} else if t.TrimPercentage != nil {
		return fmt.Errorf("target %d: trim percentage only valid for trim targets", t.ID)
	}
	return nil
}
