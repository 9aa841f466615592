package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stock-target-alerts/internal/errkind"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func chartBody(symbol string, price float64) map[string]any {
	return map[string]any{
		"chart": map[string]any{
			"result": []any{
				map[string]any{
					"meta": map[string]any{
						"symbol":             symbol,
						"regularMarketPrice": price,
					},
				},
			},
		},
	}
}

func newTestYahoo(baseURL string) *Yahoo {
	return NewYahoo(YahooOptions{
		BaseURL:     baseURL,
		Timeout:     time.Second,
		Concurrency: 2,
		RatePerSec:  1000,
		RateBurst:   10,
	}, noopLogger())
}

func TestFetchBatchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		symbol := parts[len(parts)-1]
		price := 101.5
		if symbol == "MSFT" {
			price = 420.0
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chartBody(symbol, price))
	}))
	defer srv.Close()

	y := newTestYahoo(srv.URL)
	results := y.FetchBatch(context.Background(), []string{"AAPL", "MSFT"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	aapl := results["AAPL"]
	if aapl.Err != nil {
		t.Fatalf("AAPL should succeed: %v", aapl.Err)
	}
	if !aapl.Quote.Price.Equal(decimal.RequireFromString("101.5")) {
		t.Fatalf("AAPL price = %s, want 101.5", aapl.Quote.Price)
	}
	if results["MSFT"].Quote.Symbol != "MSFT" {
		t.Fatalf("quote symbol mismatch: %+v", results["MSFT"].Quote)
	}
}

func TestFetchBatchPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/BOGUS") {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"chart": map[string]any{
					"error": map[string]string{"code": "Not Found", "description": "No data found"},
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(chartBody("AAPL", 188.0))
	}))
	defer srv.Close()

	y := newTestYahoo(srv.URL)
	results := y.FetchBatch(context.Background(), []string{"AAPL", "BOGUS"})

	if results["AAPL"].Err != nil {
		t.Fatalf("surviving symbol must not be affected: %v", results["AAPL"].Err)
	}
	bad := results["BOGUS"]
	if bad.Err == nil {
		t.Fatal("unknown symbol should fail")
	}
	if !errkind.IsDataIntegrity(bad.Err) {
		t.Fatalf("unknown symbol should be data integrity, got %s", errkind.Of(bad.Err))
	}
}

func TestFetchBatchServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	y := newTestYahoo(srv.URL)
	results := y.FetchBatch(context.Background(), []string{"AAPL"})

	err := results["AAPL"].Err
	if err == nil {
		t.Fatal("500 should fail")
	}
	if !errkind.IsTransient(err) {
		t.Fatalf("500 should be transient, got %s", errkind.Of(err))
	}
}

func TestFetchBatchRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	y := newTestYahoo(srv.URL)
	results := y.FetchBatch(context.Background(), []string{"AAPL"})

	if !errkind.IsTransient(results["AAPL"].Err) {
		t.Fatalf("429 should be transient, got %v", results["AAPL"].Err)
	}
}

func TestFetchBatchNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chartBody("AAPL", 0))
	}))
	defer srv.Close()

	y := newTestYahoo(srv.URL)
	results := y.FetchBatch(context.Background(), []string{"AAPL"})

	if !errkind.IsDataIntegrity(results["AAPL"].Err) {
		t.Fatalf("zero price should be data integrity, got %v", results["AAPL"].Err)
	}
}

func TestFetchBatchEmptySymbols(t *testing.T) {
	y := newTestYahoo("http://unused.invalid")
	results := y.FetchBatch(context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("expected empty result map, got %d entries", len(results))
	}
}
