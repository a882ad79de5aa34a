// Package sources implements the feedback source collectors. Each collector
// yields FeedbackItems for one configured source instance and must be safe
// to call with the zero time (full fetch) and idempotent under retry.
package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/grumblehq/syncd/internal/types"
)

// Collector fetches items for one configured source instance.
type Collector interface {
	// Name uniquely identifies the source instance (e.g. "github:acme/widget").
	// Watermarks in the sync state are keyed by this name.
	Name() string

	// Fetch returns items published (or updated) after since. A zero since
	// means full, unbounded fetch.
	Fetch(ctx context.Context, since time.Time) ([]*types.FeedbackItem, error)
}

// httpDoer lets tests swap the transport.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// apiClient is the shared HTTP plumbing for the REST-ish collectors:
// client-side rate limiting and retries on 429 and transient 5xx.
type apiClient struct {
	hc      httpDoer
	limiter *rate.Limiter
	retries int
	backoff time.Duration
}

func newAPIClient(rps int) *apiClient {
	if rps <= 0 {
		rps = 5
	}
	return &apiClient{
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		retries: 3,
		backoff: time.Second,
	}
}

// do executes the request built by build, retrying on 429 and 5xx with
// exponential backoff. A fresh request is built per attempt because bodies
// are not rewindable.
func (c *apiClient) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
			resp.Body.Close()

			switch {
			case readErr != nil:
				lastErr = readErr
			case resp.StatusCode == http.StatusOK:
				return body, nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(body))
				// Honor Retry-After when the server provides one.
				if ra := resp.Header.Get("Retry-After"); ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil && secs > 0 && secs <= 120 {
						backoff = time.Duration(secs) * time.Second
					}
				}
			default:
				return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(body))
			}
		}

		if attempt == c.retries {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retries+1, lastErr)
}

// stableID derives a short, deterministic identifier from a source-native
// key. Keeps item IDs stable across runs without leaking full URLs into IDs.
func stableID(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:8])
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
