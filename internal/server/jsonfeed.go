package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/juju/errors"
)

// HTTPStatusFeed polls a JSON status-feed endpoint over HTTP, a concrete
// stand-in for pyfgc_statussrv.get_status_all's proprietary RPC transport.
// The endpoint is expected to return a StatusSnapshot document directly.
// Uses net/http rather than an ecosystem client: the pack carries no HTTP
// client library, and a bare GET-and-decode needs nothing beyond
// net/http + encoding/json.
type HTTPStatusFeed struct {
	url    string
	client *http.Client
}

// NewHTTPStatusFeed builds a feed against url with the given request timeout.
func NewHTTPStatusFeed(url string, timeout time.Duration) *HTTPStatusFeed {
	return &HTTPStatusFeed{url: url, client: &http.Client{Timeout: timeout}}
}

func (f *HTTPStatusFeed) GetStatusAll(ctx context.Context) (StatusSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errors.Annotate(err, "building status feed request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Annotate(err, "fetching status snapshot")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("status feed returned %s", resp.Status)
	}

	var snapshot StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, errors.Annotate(err, "decoding status snapshot")
	}
	return snapshot, nil
}

func (f *HTTPStatusFeed) Close() error { return nil }
