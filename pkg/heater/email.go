package heater

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// EmailNotifier announces an account's heating completion over SMTP,
// grounded on the teacher's internal/notification/email.go EmailProvider:
// a gomail.Dialer built once at construction, a message per announce call
// with a plain-text body (the webhook envelope already carries the
// structured fields; this channel is for humans watching an inbox, not
// another system).
type EmailNotifier struct {
	Dialer *gomail.Dialer
	From   string
	To     []string
}

// NewEmailNotifier builds an EmailNotifier whose dialer targets the given
// SMTP host/port with the given credentials.
func NewEmailNotifier(host string, port int, username, password, from string, to []string) *EmailNotifier {
	return &EmailNotifier{
		Dialer: gomail.NewDialer(host, port, username, password),
		From:   from,
		To:     to,
	}
}

func (e *EmailNotifier) Announce(ctx context.Context, event Event) error {
	if len(e.To) == 0 {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", e.From)
	msg.SetHeader("To", strings.Join(e.To, ","))
	msg.SetHeader("Subject", fmt.Sprintf("prodflow heater: %s heated", event.AccountName))
	msg.SetBody("text/plain", fmt.Sprintf(
		"account: %s\nreleases mined: %d\nprs mined: %d\ncompleted at: %s\n",
		event.AccountName, event.ReleasesMined, event.PRsMined, time.Now().UTC().Format(time.RFC3339),
	))

	done := make(chan error, 1)
	go func() { done <- e.Dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send announce email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
