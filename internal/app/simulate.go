package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"stock-target-alerts/internal/pricing"
	"stock-target-alerts/internal/service"
	"stock-target-alerts/internal/watchlist"
)

// SimulateAlert exercises the full evaluate-and-dispatch path with a synthetic
// target and a caller-supplied price, without touching the database. Useful
// for verifying channel credentials before trusting the daemon.
func (a *App) SimulateAlert(ctx context.Context, symbol string, targetType watchlist.TargetType, targetPrice, currentPrice decimal.Decimal) error {
	if !targetType.Valid() {
		return errors.New("target type must be one of Buy, Sell, DCA, Trim")
	}
	if targetPrice.Sign() <= 0 || currentPrice.Sign() <= 0 {
		return errors.New("target and current price must be positive")
	}

	dispatcher, err := a.newDispatcher(nil)
	if err != nil {
		return err
	}

	var trim *decimal.Decimal
	if targetType == watchlist.TargetTrim {
		pct := decimal.NewFromInt(25)
		trim = &pct
	}

	repo := &staticRepository{item: watchlist.Item{
		Stock: watchlist.Stock{ID: 1, Symbol: symbol, CompanyName: "Simulated"},
		Target: watchlist.Target{
			ID:             1,
			StockID:        1,
			Type:           targetType,
			Price:          targetPrice,
			TrimPercentage: trim,
			AlertNote:      "simulated alert",
			Active:         true,
		},
	}}
	source := &staticSource{price: currentPrice}

	svc := service.New(repo, source, nil, nil, dispatcher, nil, 0, a.Logger)

	cycle := time.Now().UTC().Truncate(a.Config.Scheduler.CheckInterval)
	return svc.ProcessCycle(ctx, cycle)
}

type staticRepository struct {
	item watchlist.Item
}

func (r *staticRepository) ListActiveTargets(ctx context.Context) ([]watchlist.Item, error) {
	return []watchlist.Item{r.item}, nil
}

type staticSource struct {
	price decimal.Decimal
}

func (s *staticSource) FetchBatch(ctx context.Context, symbols []string) map[string]pricing.Result {
	results := make(map[string]pricing.Result, len(symbols))
	for _, symbol := range symbols {
		results[symbol] = pricing.Result{Quote: watchlist.PriceQuote{
			Symbol:    symbol,
			Price:     s.price,
			FetchedAt: time.Now().UTC(),
		}}
	}
	return results
}

var _ watchlist.Repository = (*staticRepository)(nil)
var _ pricing.Source = (*staticSource)(nil)
