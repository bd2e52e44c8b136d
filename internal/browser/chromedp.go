package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
	"github.com/maltedev/listing-scraper/internal/scraper"
)

// ChromedpFactory is the CDP-only alternative to PlaywrightFactory. It needs a
// local Chrome but no playwright driver.
type ChromedpFactory struct {
	opts   *Options
	logger *slog.Logger
}

func NewChromedpFactory(opts *Options) *ChromedpFactory {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &ChromedpFactory{
		opts:   opts,
		logger: slog.Default().With("component", "chromedp"),
	}
}

func (f *ChromedpFactory) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", f.opts.Locale),
		chromedp.WindowSize(f.opts.ViewportWidth, f.opts.ViewportHeight),
		chromedp.UserAgent(f.opts.UserAgent),
	)
	if f.opts.ProxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(f.opts.ProxyServer))
	}
	return opts
}

func (f *ChromedpFactory) NewSession(ctx context.Context) (scraper.RenderSession, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions()...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		f.logger.Debug(fmt.Sprintf(format, args...))
	}))

	s := &chromedpSession{
		ctx:     taskCtx,
		cancels: []context.CancelFunc{taskCancel, allocCancel},
	}

	// The first Run starts the browser; fail here rather than on navigation.
	if err := chromedp.Run(taskCtx, network.Enable(), network.SetExtraHTTPHeaders(headers(f.opts.ExtraHeaders))); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return s, nil
}

type chromedpSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

func (s *chromedpSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: navigate to %s after %s", scrapeerr.ErrTimeout, url, timeout)
	}
	return fmt.Errorf("navigate to %s: %w", url, err)
}

func (s *chromedpSession) Texts(ctx context.Context, selector string) ([]string, error) {
	return s.collect(ctx, fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(e => e.innerText || '')`,
		quote(selector)))
}

func (s *chromedpSession) Attributes(ctx context.Context, selector, attr string) ([]string, error) {
	return s.collect(ctx, fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(e => e.getAttribute(%s) || '')`,
		quote(selector), quote(attr)))
}

func (s *chromedpSession) collect(ctx context.Context, expr string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []string
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(expr, &out)); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return out, nil
}

func (s *chromedpSession) Close() error {
	for _, cancel := range s.cancels {
		cancel()
	}
	return nil
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func headers(h map[string]string) network.Headers {
	out := make(network.Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
