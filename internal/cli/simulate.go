package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stock-target-alerts/internal/watchlist"
)

var (
	simulateSymbol  string
	simulateType    string
	simulateTarget  string
	simulateCurrent string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send a synthetic alert through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := decimal.NewFromString(simulateTarget)
		if err != nil {
			return fmt.Errorf("parse --target-price: %w", err)
		}
		current, err := decimal.NewFromString(simulateCurrent)
		if err != nil {
			return fmt.Errorf("parse --current-price: %w", err)
		}

		return getApp().SimulateAlert(cmd.Context(), simulateSymbol, watchlist.TargetType(simulateType), target, current)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "TEST", "Symbol used in the synthetic alert")
	simulateCmd.Flags().StringVar(&simulateType, "type", "Buy", "Target type (Buy, Sell, DCA, Trim)")
	simulateCmd.Flags().StringVar(&simulateTarget, "target-price", "100", "Target price")
	simulateCmd.Flags().StringVar(&simulateCurrent, "current-price", "99", "Simulated current price")
}
