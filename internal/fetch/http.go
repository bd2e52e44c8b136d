package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/maltedev/listing-scraper/internal/parser"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// HTTPFetcher loads product pages over plain HTTP, without a browser.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Fetch performs one GET bounded by the configured timeout. Timeouts wrap
// scrapeerr.ErrTimeout; every other failure wraps scrapeerr.ErrFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*parser.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", scrapeerr.ErrFetch, url, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d %s", scrapeerr.ErrFetch, url, resp.StatusCode, resp.Status)
	}

	page, err := parser.NewPage(resp.Body)
	if err != nil {
		return nil, classify(url, err)
	}

	return page, nil
}

func classify(url string, err error) error {
	if scrapeerr.IsTimeout(err) {
		return fmt.Errorf("%w: fetching %s: %v", scrapeerr.ErrTimeout, url, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	return fmt.Errorf("%w: fetching %s: %v", scrapeerr.ErrFetch, url, err)
}
