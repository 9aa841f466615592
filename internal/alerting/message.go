package alerting

import (
	"fmt"
	"html"
	"strings"
)

// renderText produces the plain-text alert body shared by all channels.
func renderText(event Event) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("ALERT: %s\n", event.Symbol))
	builder.WriteString(fmt.Sprintf("Target Type: %s\n", event.TargetType))
	builder.WriteString(fmt.Sprintf("Current Price: $%s\n", event.CurrentPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Target Price: $%s\n", event.TargetPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Change vs Target: %s%%\n", event.DeltaPercent.StringFixed(2)))
	builder.WriteString(adviceLine(event))
	if event.AlertNote != "" {
		builder.WriteString(fmt.Sprintf("Note: %s\n", event.AlertNote))
	}
	return builder.String()
}

func adviceLine(event Event) string {
	switch {
	case event.TargetType.Entry():
		return fmt.Sprintf("Price dropped below target! Consider %sing.\n", strings.ToLower(string(event.TargetType)))
	case event.TrimPercentage != nil:
		return fmt.Sprintf("Price rose above target! Consider trimming %s%% of position.\n", event.TrimPercentage.String())
	default:
		return "Price rose above target! Consider selling.\n"
	}
}

// renderHTML produces the Telegram HTML body.
func renderHTML(event Event) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("<b>🔔 %s: %s target met</b>\n", html.EscapeString(event.Symbol), event.TargetType))
	builder.WriteString(fmt.Sprintf("<code>Current Price: $%s</code>\n", event.CurrentPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("<code>Target Price:  $%s</code>\n", event.TargetPrice.StringFixed(2)))
	builder.WriteString(html.EscapeString(adviceLine(event)))
	if event.AlertNote != "" {
		builder.WriteString(fmt.Sprintf("<i>%s</i>\n", html.EscapeString(event.AlertNote)))
	}
	return builder.String()
}

// subjectLine is the email subject for a single event.
func subjectLine(event Event) string {
	return fmt.Sprintf("Stock Alert: %s %s target met", event.Symbol, event.TargetType)
}
