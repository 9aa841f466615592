package watchlist

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSymbolsDeduplicatesInOrder(t *testing.T) {
	items := []Item{
		{Stock: Stock{ID: 1, Symbol: "AAPL"}},
		{Stock: Stock{ID: 2, Symbol: "MSFT"}},
		{Stock: Stock{ID: 1, Symbol: "AAPL"}},
		{Stock: Stock{ID: 3, Symbol: "GOOG"}},
	}

	got := Symbols(items)
	want := []string{"AAPL", "MSFT", "GOOG"}
	if len(got) != len(want) {
		t.Fatalf("Symbols = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Symbols[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTargetValidate(t *testing.T) {
	trim := decimal.NewFromInt(25)
	negTrim := decimal.NewFromInt(-5)

	cases := []struct {
		name   string
		target Target
		ok     bool
	}{
		{"valid buy", Target{ID: 1, Type: TargetBuy, Price: decimal.NewFromInt(100)}, true},
		{"valid trim", Target{ID: 2, Type: TargetTrim, Price: decimal.NewFromInt(100), TrimPercentage: &trim}, true},
		{"unknown type", Target{ID: 3, Type: TargetType("Hold"), Price: decimal.NewFromInt(100)}, false},
		{"zero price", Target{ID: 4, Type: TargetBuy, Price: decimal.Zero}, false},
		{"negative price", Target{ID: 5, Type: TargetSell, Price: decimal.NewFromInt(-1)}, false},
		{"trim without percentage", Target{ID: 6, Type: TargetTrim, Price: decimal.NewFromInt(100)}, false},
		{"trim negative percentage", Target{ID: 7, Type: TargetTrim, Price: decimal.NewFromInt(100), TrimPercentage: &negTrim}, false},
		{"percentage on buy", Target{ID: 8, Type: TargetBuy, Price: decimal.NewFromInt(100), TrimPercentage: &trim}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.target.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTargetTypeEntry(t *testing.T) {
	if !TargetBuy.Entry() || !TargetDCA.Entry() {
		t.Fatal("buy and dca are entry targets")
	}
	if TargetSell.Entry() || TargetTrim.Entry() {
		t.Fatal("sell and trim are exit targets")
	}
}
