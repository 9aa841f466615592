package pricing

import (
	"context"

	"stock-target-alerts/internal/watchlist"
)

// Result carries the per-symbol outcome of a batch fetch. Exactly one of
// Quote/Err is meaningful.
type Result struct {
	Quote watchlist.PriceQuote
	Err   error
}

// Source retrieves current market prices for a de-duplicated symbol set.
// Implementations return one Result per requested symbol so a single bad or
// delisted symbol never fails the whole batch.
type Source interface {
	FetchBatch(ctx context.Context, symbols []string) map[string]Result
}
