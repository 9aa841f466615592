package alerting

import (
	"context"
	"errors"
	"net"
	"net/textproto"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"

	"stock-target-alerts/internal/errkind"
)

// EmailOptions carry SMTP connectivity and addressing. Credentials are opaque
// configuration supplied at startup.
type EmailOptions struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
}

// EmailChannel delivers alerts over SMTP.
type EmailChannel struct {
	opts   EmailOptions
	dialer *gomail.Dialer
	logger zerolog.Logger

	// send is swappable for tests.
	send func(m *gomail.Message) error
}

// NewEmailChannel constructs the email channel.
func NewEmailChannel(opts EmailOptions, logger zerolog.Logger) *EmailChannel {
	dialer := gomail.NewDialer(opts.Host, opts.Port, opts.Username, opts.Password)
	c := &EmailChannel{
		opts:   opts,
		dialer: dialer,
		logger: logger.With().Str("component", "channel_email").Logger(),
	}
	c.send = func(m *gomail.Message) error { return dialer.DialAndSend(m) }
	return c
}

// Name identifies the channel in delivery records.
func (c *EmailChannel) Name() string { return "email" }

// Send delivers a single alert email. The ctx deadline is not honoured by the
// underlying SMTP dial; the dialer's own timeout bounds the attempt.
func (c *EmailChannel) Send(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return errkind.Wrap(errkind.Transient, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.opts.From)
	m.SetHeader("To", c.opts.Recipient)
	m.SetHeader("Subject", subjectLine(event))
	m.SetBody("text/plain", renderText(event))

	if err := c.send(m); err != nil {
		return classifySMTPError(err)
	}

	c.logger.Info().
		Str("symbol", event.Symbol).
		Str("target_type", string(event.TargetType)).
		Time("cycle", event.CycleTS).
		Msg("alert sent via email")
	return nil
}

// classifySMTPError maps SMTP reply codes onto the retry taxonomy: 4xx replies
// are transient per RFC 5321, 5xx (auth rejection, bad recipient) are final.
func classifySMTPError(err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		if proto.Code >= 400 && proto.Code < 500 {
			return errkind.Wrap(errkind.Transient, err)
		}
		return errkind.Wrap(errkind.Fatal, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errkind.Wrap(errkind.Transient, err)
	}
	return errkind.Wrap(errkind.Transient, err)
}

var _ Channel = (*EmailChannel)(nil)
