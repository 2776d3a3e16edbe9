package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxPageBytes   = 8 << 20
)

// PortalClient fetches pages and attachments from the agency portal.
type PortalClient struct {
	client  *http.Client
	base    *url.URL
	limiter *rate.Limiter
	backoff time.Duration
}

// NewPortalClient creates a client rooted at baseURL. Requests are spaced
// at least delay apart; a zero delay disables throttling.
func NewPortalClient(baseURL string, timeout, delay time.Duration) (*PortalClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid portal base url %q: scheme and host required", baseURL)
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &PortalClient{
		client:  &http.Client{Timeout: timeout},
		base:    base,
		limiter: rate.NewLimiter(limit, 1),
		backoff: initialBackoff,
	}, nil
}

// Resolve turns a board href into an absolute URL.
func (c *PortalClient) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", ref, err)
	}
	return c.base.ResolveReference(u).String(), nil
}

// FetchPage returns the page at ref decoded to UTF-8.
func (c *PortalClient) FetchPage(ctx context.Context, ref string) ([]byte, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}

	body, contentType, err := c.fetchWithRetry(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset of %s: %w", target, err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", target, err)
	}
	return decoded, nil
}

// Download streams the attachment at ref into w.
func (c *PortalClient) Download(ctx context.Context, ref string, w io.Writer) error {
	target, err := c.Resolve(ref)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: unexpected status code: %d", target, resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read %s: %w", target, err)
	}
	return nil
}

// fetchWithRetry performs a GET with exponential backoff on transport
// errors, 429 and 5xx responses.
func (c *PortalClient) fetchWithRetry(ctx context.Context, target string) ([]byte, string, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, resp.Header.Get("Content-Type"), nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			continue
		default:
			return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	return nil, "", fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}
