package alerting

import (
	"time"

	"github.com/shopspring/decimal"

	"stock-target-alerts/internal/watchlist"
)

// Event is the durable record of a target's trigger condition being met during
// a specific cycle. Target attributes are denormalized at trigger time since
// the target may change later. An event is created at most once per
// (target, cycle) pair and never mutated except for its delivery records.
type Event struct {
	ID             int64
	StockID        int64
	TargetID       int64
	Symbol         string
	TargetType     watchlist.TargetType
	TrimPercentage *decimal.Decimal
	AlertNote      string
	CurrentPrice   decimal.Decimal
	TargetPrice    decimal.Decimal
	Delta          decimal.Decimal
	DeltaPercent   decimal.Decimal
	CycleTS        time.Time
	TriggeredAt    time.Time
	Deliveries     []DeliveryResult
}

// DeliveryResult is the outcome of attempting one channel for one event.
type DeliveryResult struct {
	Channel   string
	Attempted bool
	Succeeded bool
	Attempts  int
	LastError string
}
