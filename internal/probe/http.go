// ABOUTME: HTTP time probe reading the server clock from a response header
// ABOUTME: Classifies transport failures, bad statuses, and malformed timestamps
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cms-dev/timeview-go/internal/protocol"
	"github.com/cms-dev/timeview-go/internal/version"
)

var (
	// ErrMissingTimestamp is returned when the response has no Timestamp
	ErrMissingTimestamp = errors.New("missing Timestamp header")

	// ErrMalformedTimestamp is returned when Timestamp is not an integer
	ErrMalformedTimestamp = errors.New("malformed Timestamp header")

	// ErrStatus is returned for non-2xx responses
	ErrStatus = errors.New("unexpected HTTP status")
)

const defaultTimeout = 10 * time.Second

// HTTP fetches the reference clock from the Timestamp header of a GET
type HTTP struct {
	URL    string
	Client *http.Client
}

// NewHTTP creates an HTTP probe for url
func NewHTTP(url string) *HTTP {
	return &HTTP{
		URL:    url,
		Client: &http.Client{Timeout: defaultTimeout},
	}
}

// ServerTimestamp performs one request and returns the header value in ms
func (p *HTTP) ServerTimestamp(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build time request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", uuid.New().String())
	req.Header.Set("User-Agent", version.UserAgent())

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("time request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	return ParseTimestamp(resp.Header.Get(protocol.TimestampHeader))
}

// ParseTimestamp parses a Timestamp header value
func ParseTimestamp(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrMissingTimestamp
	}

	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ts <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, value)
	}
	return ts, nil
}
