package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/listing-scraper/internal/discovery"
	"github.com/maltedev/listing-scraper/internal/proxy"
)

// ListingOpener launches a fresh proxied browser for every listing load.
type ListingOpener struct {
	opts *Options
}

func NewListingOpener(opts *Options) *ListingOpener {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &ListingOpener{opts: opts}
}

func (o *ListingOpener) Open(ctx context.Context, listingURL string, via proxy.Entry, timeout time.Duration) (discovery.ListingPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := New(o.opts.WithProxy(via.String()))
	if err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, err
	}

	if err := GotoContext(ctx, page, listingURL, timeout); err != nil {
		b.Close()
		return nil, err
	}

	return &listingPage{browser: b, page: page, timeout: timeout}, nil
}

type listingPage struct {
	browser *Browser
	page    playwright.Page
	timeout time.Duration
}

const (
	jsHrefs = `(selector) => Array.from(document.querySelectorAll(selector)).map(a => a.href || a.getAttribute('href') || '')`
	jsCount = `([selector, have]) => document.querySelectorAll(selector).length > have`
)

func (l *listingPage) Links(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := l.page.Evaluate(jsHrefs, selector)
	if err != nil {
		return nil, fmt.Errorf("collect links: %w", translate(err))
	}
	return toStrings(result), nil
}

func (l *listingPage) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := l.page.Evaluate(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return fmt.Errorf("scroll: %w", translate(err))
	}
	return nil
}

func (l *listingPage) WaitForMore(ctx context.Context, selector string, have int, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := l.page.WaitForFunction(jsCount, []interface{}{selector, have}, playwright.PageWaitForFunctionOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for products: %w", translate(err))
	}
	return nil
}

func (l *listingPage) Close() error {
	return l.browser.Close()
}

func toStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
