package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/lexpoint/leadforms/internal/events"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPOption configures the HTTP clients of this package.
type HTTPOption func(*http.Client)

// WithHTTPClient swaps the underlying transport settings.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(dst *http.Client) { *dst = *c }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *http.Client) { c.Timeout = d }
}

func newHTTPClient(opts []HTTPOption) *http.Client {
	c := &http.Client{Timeout: defaultHTTPTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPSubmitter posts the payload to the submission endpoint. It makes a single
// attempt; retries are left to the visitor.
type HTTPSubmitter struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPSubmitter targets endpoint, usually {base}/forms/submit.
func NewHTTPSubmitter(endpoint string, opts ...HTTPOption) *HTTPSubmitter {
	return &HTTPSubmitter{endpoint: endpoint, httpClient: newHTTPClient(opts)}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, payload Payload) (*SubmitResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("submission: marshal payload: %w", err)
	}
	respBody, status, err := postJSON(ctx, s.httpClient, s.endpoint, body)
	if err != nil {
		return nil, err
	}
	var out SubmitResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil && status < 300 {
			return nil, fmt.Errorf("submission: decode response: %w", err)
		}
	}
	if status >= 300 {
		out.Success = false
		if out.Error == "" {
			out.Error = fmt.Sprintf("status %d", status)
		}
	}
	return &out, nil
}

// HTTPAnalytics posts conversion events to the analytics endpoint.
type HTTPAnalytics struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPAnalytics targets endpoint, usually {base}/events/conversion.
func NewHTTPAnalytics(endpoint string, opts ...HTTPOption) *HTTPAnalytics {
	return &HTTPAnalytics{endpoint: endpoint, httpClient: newHTTPClient(opts)}
}

func (a *HTTPAnalytics) TrackConversion(ctx context.Context, event events.ConversionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("submission: marshal conversion: %w", err)
	}
	respBody, status, err := postJSON(ctx, a.httpClient, a.endpoint, body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("submission: analytics returned %d: %s", status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// HTTPPixel fires an image-beacon pixel: a GET to the endpoint with the pixel
// id, the event name and each data entry as cd[key].
type HTTPPixel struct {
	endpoint   string
	pixelID    string
	httpClient *http.Client
}

// NewHTTPPixel targets endpoint, for example https://www.facebook.com/tr.
func NewHTTPPixel(endpoint, pixelID string, opts ...HTTPOption) *HTTPPixel {
	return &HTTPPixel{endpoint: endpoint, pixelID: pixelID, httpClient: newHTTPClient(opts)}
}

func (p *HTTPPixel) Fire(ctx context.Context, event string, data map[string]any) error {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return fmt.Errorf("submission: pixel endpoint: %w", err)
	}
	q := u.Query()
	q.Set("id", p.pixelID)
	q.Set("ev", event)
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set("cd["+k+"]", fmt.Sprint(data[k]))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("submission: build pixel request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submission: fire pixel: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("submission: pixel returned %d", resp.StatusCode)
	}
	return nil
}

var _ Pixel = (*HTTPPixel)(nil)

func postJSON(ctx context.Context, client *http.Client, endpoint string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("submission: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("submission: post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("submission: read response: %w", err)
	}
	return data, resp.StatusCode, nil
}
