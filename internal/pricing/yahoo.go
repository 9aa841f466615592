package pricing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"stock-target-alerts/internal/errkind"
	"stock-target-alerts/internal/watchlist"
)

const chartPathFmt = "/v8/finance/chart/%s"

// YahooOptions parameterise the quote client.
type YahooOptions struct {
	BaseURL     string
	Timeout     time.Duration
	UserAgent   string
	Concurrency int
	RatePerSec  float64
	RateBurst   int
}

// Yahoo fetches last-trade prices from a Yahoo Finance style chart API.
type Yahoo struct {
	opts    YahooOptions
	client  *resty.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewYahoo constructs the quote client.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://query1.finance.yahoo.com"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = opts.Concurrency
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "stockwatcher/1.0"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json")

	return &Yahoo{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RateBurst),
		logger:  logger.With().Str("component", "price_source").Logger(),
	}
}

// FetchBatch retrieves quotes for every symbol, bounded to Concurrency
// simultaneous requests. Failures are captured per symbol; the map always
// holds one entry per requested symbol.
func (y *Yahoo) FetchBatch(ctx context.Context, symbols []string) map[string]Result {
	results := make(map[string]Result, len(symbols))
	if len(symbols) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, y.opts.Concurrency)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			quote, err := y.fetchOne(ctx, symbol)
			mu.Lock()
			if err != nil {
				results[symbol] = Result{Err: err}
			} else {
				results[symbol] = Result{Quote: quote}
			}
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	return results
}

func (y *Yahoo) fetchOne(ctx context.Context, symbol string) (watchlist.PriceQuote, error) {
	if strings.TrimSpace(symbol) == "" {
		return watchlist.PriceQuote{}, errkind.Errorf(errkind.DataIntegrity, "empty symbol")
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return watchlist.PriceQuote{}, errkind.Wrap(errkind.Transient, err)
	}

	var payload chartResponse
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"range": "1d", "interval": "1d"}).
		SetResult(&payload).
		SetError(&payload).
		Get(fmt.Sprintf(chartPathFmt, symbol))
	if err != nil {
		return watchlist.PriceQuote{}, errkind.Errorf(errkind.Transient, "fetch %s: %w", symbol, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return watchlist.PriceQuote{}, classifyStatus(symbol, resp.StatusCode(), payload.errorDescription())
	}

	price, err := payload.lastPrice()
	if err != nil {
		return watchlist.PriceQuote{}, errkind.Errorf(errkind.DataIntegrity, "%s: %w", symbol, err)
	}
	if price.Sign() <= 0 {
		return watchlist.PriceQuote{}, errkind.Errorf(errkind.DataIntegrity, "%s: non-positive price %s", symbol, price)
	}

	y.logger.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("quote fetched")

	return watchlist.PriceQuote{
		Symbol:    symbol,
		Price:     price,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func classifyStatus(symbol string, status int, description string) error {
	msg := description
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusNotFound:
		return errkind.Errorf(errkind.DataIntegrity, "%s: unknown symbol (%d): %s", symbol, status, msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return errkind.Errorf(errkind.Transient, "%s: provider error (%d): %s", symbol, status, msg)
	default:
		return errkind.Errorf(errkind.Fatal, "%s: provider rejected request (%d): %s", symbol, status, msg)
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (r chartResponse) errorDescription() string {
	if r.Chart.Error == nil {
		return ""
	}
	if r.Chart.Error.Description != "" {
		return r.Chart.Error.Description
	}
	return r.Chart.Error.Code
}

func (r chartResponse) lastPrice() (decimal.Decimal, error) {
	if len(r.Chart.Result) == 0 {
		return decimal.Decimal{}, fmt.Errorf("empty chart result")
	}
	return decimal.NewFromFloat(r.Chart.Result[0].Meta.RegularMarketPrice), nil
}

var _ Source = (*Yahoo)(nil)
