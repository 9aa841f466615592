package alerting

import (
	"context"
	"net/textproto"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	gomail "gopkg.in/gomail.v2"

	"stock-target-alerts/internal/errkind"
	"stock-target-alerts/internal/watchlist"
)

func newTestEmail(send func(m *gomail.Message) error) *EmailChannel {
	c := NewEmailChannel(EmailOptions{
		Host:      "smtp.example.com",
		Port:      587,
		From:      "alerts@example.com",
		Recipient: "me@example.com",
	}, testLogger())
	c.send = send
	return c
}

func TestEmailSendBuildsMessage(t *testing.T) {
	var captured *gomail.Message
	c := newTestEmail(func(m *gomail.Message) error {
		captured = m
		return nil
	})

	if err := c.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if captured == nil {
		t.Fatal("message never handed to dialer")
	}
	if got := captured.GetHeader("To"); len(got) != 1 || got[0] != "me@example.com" {
		t.Fatalf("To = %v", got)
	}
	if got := captured.GetHeader("Subject"); len(got) != 1 || got[0] != "Stock Alert: AAPL Buy target met" {
		t.Fatalf("Subject = %v", got)
	}
}

func TestEmailSendClassifiesSMTPReplies(t *testing.T) {
	cases := []struct {
		name      string
		code      int
		transient bool
	}{
		{"mailbox busy", 450, true},
		{"insufficient storage", 452, true},
		{"auth rejected", 535, false},
		{"bad recipient", 550, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestEmail(func(m *gomail.Message) error {
				return &textproto.Error{Code: tc.code, Msg: tc.name}
			})
			err := c.Send(context.Background(), testEvent())
			if err == nil {
				t.Fatal("expected error")
			}
			if errkind.IsTransient(err) != tc.transient {
				t.Fatalf("code %d: transient = %v, want %v", tc.code, errkind.IsTransient(err), tc.transient)
			}
		})
	}
}

func TestEmailSendCancelledContext(t *testing.T) {
	c := newTestEmail(func(m *gomail.Message) error {
		t.Fatal("dialer must not be reached")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Send(ctx, testEvent()); err == nil {
		t.Fatal("cancelled context must be an error")
	}
}

func TestRenderTextBuyAdvice(t *testing.T) {
	body := renderText(testEvent())

	for _, want := range []string{
		"ALERT: AAPL",
		"Target Type: Buy",
		"Current Price: $149.99",
		"Target Price: $150.00",
		"Price dropped below target! Consider buying.",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderTextTrimAdvice(t *testing.T) {
	event := testEvent()
	event.TargetType = watchlist.TargetTrim
	trim := decimal.NewFromInt(25)
	event.TrimPercentage = &trim
	event.AlertNote = "lighten up before earnings"

	body := renderText(event)
	if !strings.Contains(body, "Consider trimming 25% of position.") {
		t.Fatalf("trim advice missing:\n%s", body)
	}
	if !strings.Contains(body, "Note: lighten up before earnings") {
		t.Fatalf("note missing:\n%s", body)
	}
}

func TestRenderHTMLEscapesNote(t *testing.T) {
	event := testEvent()
	event.AlertNote = "watch <b>closely</b>"

	body := renderHTML(event)
	if strings.Contains(body, "<b>closely</b>") {
		t.Fatalf("note not escaped:\n%s", body)
	}
	if !strings.Contains(body, "&lt;b&gt;closely&lt;/b&gt;") {
		t.Fatalf("escaped note missing:\n%s", body)
	}
}
