package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lexpoint/leadforms/internal/leads"
)

// Relay forwards a stored lead to the form's own webhook.
type Relay interface {
	Deliver(ctx context.Context, url string, lead *leads.Lead) error
}

// HTTPRelay posts the lead as JSON. It makes a single attempt.
type HTTPRelay struct {
	httpClient *http.Client
}

func NewHTTPRelay(client *http.Client) *HTTPRelay {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPRelay{httpClient: client}
}

// RelayPayload is the body delivered to form webhooks.
type RelayPayload struct {
	Event string      `json:"event"`
	Lead  *leads.Lead `json:"lead"`
}

func (r *HTTPRelay) Deliver(ctx context.Context, url string, lead *leads.Lead) error {
	body, err := json.Marshal(RelayPayload{Event: leads.EventTypeFormSubmission, Lead: lead})
	if err != nil {
		return fmt.Errorf("intake: marshal relay payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("intake: build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("intake: relay post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRelayStatus, resp.StatusCode)
	}
	return nil
}
