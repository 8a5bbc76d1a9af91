package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

const userAgent = "listingd/1.0 (+https://github.com/inipew/listingd)"

// client wraps http.Client with request pacing and decode helpers shared by
// all connectors.
type client struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newClient(opts Options) *client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &client{http: &http.Client{Timeout: timeout}}
	if opts.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return c
}

func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	// 4 MiB is generous for listing feeds; anything bigger is a broken provider.
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func (c *client) getJSON(ctx context.Context, url string, v any) error {
	b, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *client) getXML(ctx context.Context, url string, v any) error {
	b, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// truncDesc caps provider descriptions before they reach normalization.
func truncDesc(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max]
}
