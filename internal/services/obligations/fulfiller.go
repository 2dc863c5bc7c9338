package obligsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerq/ledgerq/internal/obligation"
)

// WebhookFulfiller delivers each fulfillment as a POST to a fixed URL. Any
// non-2xx status is a fulfillment failure, handled by the queue's configured
// FailurePolicy.
type WebhookFulfiller struct {
	URL    string
	Client *http.Client
}

// NewWebhookFulfiller builds a fulfiller with a bounded-timeout client.
func NewWebhookFulfiller(url string) *WebhookFulfiller {
	return &WebhookFulfiller{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookFulfiller) Fulfill(ctx context.Context, subject string, amount uint64) error {
	body, err := json.Marshal(map[string]any{
		"subject": subject,
		"amount":  amount,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", w.URL, resp.StatusCode)
	}
	return nil
}

// AcceptAll fulfills unconditionally. Useful for draining a ledger whose
// side effect happens elsewhere, and as the default for local testing.
var AcceptAll = obligation.FulfillerFunc(func(context.Context, string, uint64) error { return nil })
