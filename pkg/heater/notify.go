package heater

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
)

// Event is the "account heated" announcement payload a Notifier sends.
type Event struct {
	AccountID     account.ID
	AccountName   string
	ReleasesMined int
	PRsMined      int
}

// Notifier announces that an account finished heating. Adapted from the
// teacher's multi-channel internal/notifications.Notifier; implemented here
// by WebhookNotifier (spec §4.6's "announce via Slack"), EmailNotifier, and
// MultiNotifier, which fans one announce out to several notifiers.
type Notifier interface {
	Announce(ctx context.Context, event Event) error
}

// WebhookNotifier POSTs a JSON envelope to a single webhook URL, grounded
// on the teacher's Notifier.sendWebhook: generic envelope, configurable
// client, 2xx-or-error status handling.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier builds a WebhookNotifier with a sane default client
// timeout when client is nil.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{URL: url, Client: client}
}

func (w *WebhookNotifier) Announce(ctx context.Context, event Event) error {
	if w.URL == "" {
		return nil
	}

	body := map[string]interface{}{
		"event":     "account_heated",
		"account":   event.AccountName,
		"releases":  event.ReleasesMined,
		"prs":       event.PRsMined,
		"timestamp": time.Now().Unix(),
		"source":    "prodflow-heater",
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal announce payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build announce request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send announce request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// MultiNotifier fans one announce out to every configured channel,
// collecting every error instead of stopping at the first (a failed
// email send shouldn't suppress a working Slack webhook, or vice versa).
type MultiNotifier struct {
	Notifiers []Notifier
}

func (m MultiNotifier) Announce(ctx context.Context, event Event) error {
	var errs []string
	for _, n := range m.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Announce(ctx, event); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("announce failed on %d channel(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
