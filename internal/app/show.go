package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"stock-target-alerts/internal/alerting"
)

// Show prints recent alert events with their per-channel delivery status.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show alert history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	events, err := store.ListRecentEvents(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no alert events found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Triggered (UTC)\tSymbol\tType\tCurrent\tTarget\tDelta%\tDelivery")

	for _, event := range events {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			event.TriggeredAt.UTC().Format(time.RFC3339),
			event.Symbol,
			event.TargetType,
			event.CurrentPrice.StringFixed(2),
			event.TargetPrice.StringFixed(2),
			event.DeltaPercent.StringFixed(2),
			formatDeliveries(event.Deliveries),
		)
	}

	writer.Flush()
	return nil
}

func formatDeliveries(deliveries []alerting.DeliveryResult) string {
	if len(deliveries) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		state := "failed"
		switch {
		case d.Succeeded:
			state = "ok"
		case !d.Attempted:
			state = "skipped"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", d.Channel, state))
	}
	return strings.Join(parts, ",")
}
