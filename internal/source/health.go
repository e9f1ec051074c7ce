package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultHealthTimeout bounds a single provider query. The poll loop
// must never wait on the provider longer than one poll interval.
const DefaultHealthTimeout = 5 * time.Second

// HealthProvider is a pull-style source backed by a local health-data
// service. It answers GET <base>/v1/steps/cumulative with the window as
// query parameters and expects {"cumulative": <int>}.
type HealthProvider struct {
	base   string
	client *http.Client
	origin string
}

// NewHealthProvider creates a provider against the given base URL.
// A non-positive timeout falls back to DefaultHealthTimeout.
func NewHealthProvider(baseURL string, timeout time.Duration) *HealthProvider {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	return &HealthProvider{
		base:   baseURL,
		client: &http.Client{Timeout: timeout},
		origin: "health",
	}
}

// Name identifies the provider for logging.
func (h *HealthProvider) Name() string { return h.origin }

// QueryCumulative fetches the cumulative step count for the window.
// 401/403 map to ErrAuthorizationDenied; everything else that keeps the
// value from arriving maps to ErrUnavailable.
func (h *HealthProvider) QueryCumulative(ctx context.Context, start, end time.Time) (int64, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/v1/steps/cumulative?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, fmt.Errorf("%w: status %d", ErrAuthorizationDenied, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Cumulative int64 `json:"cumulative"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if body.Cumulative < 0 {
		return 0, fmt.Errorf("%w: negative cumulative %d", ErrUnavailable, body.Cumulative)
	}
	return body.Cumulative, nil
}
