package app

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock-target-alerts/internal/alerting"
	"stock-target-alerts/internal/watchlist"
)

func exportEvents(n int) []alerting.Event {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	events := make([]alerting.Event, n)
	for i := range events {
		events[i] = alerting.Event{
			ID:           int64(i + 1),
			Symbol:       "AAPL",
			TargetType:   watchlist.TargetBuy,
			CurrentPrice: decimal.NewFromInt(int64(150 - i)),
			TargetPrice:  decimal.NewFromInt(150),
			Delta:        decimal.NewFromInt(int64(-i)),
			DeltaPercent: decimal.NewFromInt(int64(-i)),
			CycleTS:      base.Add(time.Duration(i) * time.Hour),
			TriggeredAt:  base.Add(time.Duration(i) * time.Hour),
		}
	}
	return events
}

func TestDownsampleEventsUnderLimit(t *testing.T) {
	events := exportEvents(10)
	got := downsampleEvents(events, 100)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10 untouched", len(got))
	}
}

func TestDownsampleEventsKeepsEndpoints(t *testing.T) {
	events := exportEvents(1000)
	got := downsampleEvents(events, 50)

	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	if got[0].ID != events[0].ID {
		t.Fatalf("first element lost: %d", got[0].ID)
	}
	if got[len(got)-1].ID != events[len(events)-1].ID {
		t.Fatalf("last element lost: %d", got[len(got)-1].ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].ID <= got[i-1].ID {
			t.Fatalf("ordering broken at %d: %d after %d", i, got[i].ID, got[i-1].ID)
		}
	}
}

func TestWriteEventsCSV(t *testing.T) {
	trim := decimal.NewFromInt(25)
	events := exportEvents(3)
	events[1].TargetType = watchlist.TargetTrim
	events[1].TrimPercentage = &trim
	events[1].AlertNote = "lighten up"

	path := filepath.Join(t.TempDir(), "out", "alerts.csv")
	if err := writeEventsCSV(path, events); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "triggered_at" || rows[0][2] != "symbol" {
		t.Fatalf("header wrong: %v", rows[0])
	}
	if rows[2][3] != "Trim" || rows[2][8] != "25" || rows[2][9] != "lighten up" {
		t.Fatalf("trim row wrong: %v", rows[2])
	}
}

func TestWriteEventsPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.png")
	if err := writeEventsPNG(path, exportEvents(5)); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("empty png written")
	}
}
