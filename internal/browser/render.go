package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/listing-scraper/internal/scraper"
)

// PlaywrightFactory gives each product page its own browser.
type PlaywrightFactory struct {
	opts *Options
}

func NewPlaywrightFactory(opts *Options) *PlaywrightFactory {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &PlaywrightFactory{opts: opts}
}

func (f *PlaywrightFactory) NewSession(ctx context.Context) (scraper.RenderSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := New(f.opts)
	if err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, err
	}

	return &playwrightSession{browser: b, page: page}, nil
}

type playwrightSession struct {
	browser *Browser
	page    playwright.Page
}

const jsAttrs = `(els, attr) => els.map(e => e.getAttribute(attr) || '')`

func (s *playwrightSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return GotoContext(ctx, s.page, url, timeout)
}

func (s *playwrightSession) Texts(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts, err := s.page.Locator(selector).AllInnerTexts()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", selector, translate(err))
	}
	return texts, nil
}

func (s *playwrightSession) Attributes(ctx context.Context, selector, attr string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.page.Locator(selector).EvaluateAll(jsAttrs, attr)
	if err != nil {
		return nil, fmt.Errorf("read %s[%s]: %w", selector, attr, translate(err))
	}
	return toStrings(result), nil
}

func (s *playwrightSession) Close() error {
	return s.browser.Close()
}
