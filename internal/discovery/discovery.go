package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/maltedev/listing-scraper/internal/proxy"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// Mode selects how much of the listing is walked.
type Mode int

const (
	// ModeBounded loads the listing once and reads the visible anchors.
	ModeBounded Mode = iota
	// ModeInfiniteScroll keeps scrolling until the link count stops growing.
	ModeInfiniteScroll
)

// BoundedLimit is the largest product count served by a single page load.
const BoundedLimit = 24

func (m Mode) String() string {
	if m == ModeInfiniteScroll {
		return "infinite_scroll"
	}
	return "bounded"
}

// ModeFor picks the discovery mode for the desired number of products.
func ModeFor(productCount int) Mode {
	if productCount > BoundedLimit {
		return ModeInfiniteScroll
	}
	return ModeBounded
}

// ListingPage is a loaded listing in a browser.
type ListingPage interface {
	// Links returns the href of every element matching selector, in document order.
	Links(ctx context.Context, selector string) ([]string, error)
	ScrollToBottom(ctx context.Context) error
	// WaitForMore blocks until more than have elements match selector. It
	// returns an error wrapping scrapeerr.ErrTimeout when the count is stable
	// for the whole timeout.
	WaitForMore(ctx context.Context, selector string, have int, timeout time.Duration) error
	Close() error
}

// PageOpener loads a listing through one proxy.
type PageOpener interface {
	Open(ctx context.Context, listingURL string, via proxy.Entry, timeout time.Duration) (ListingPage, error)
}

// ProxySource is the part of the proxy pool discovery needs.
type ProxySource interface {
	Next() (proxy.Entry, error)
	MarkBad(proxy.Entry)
}

type Config struct {
	LinkSelector     string
	Timeout          time.Duration
	MaxProxySwitches int
	MaxStableRounds  int
	ScrollWait       time.Duration
}

func DefaultConfig() Config {
	return Config{
		LinkSelector:     "a.product-card__link-overlay",
		Timeout:          10 * time.Second,
		MaxProxySwitches: 3,
		MaxStableRounds:  3,
		ScrollWait:       3 * time.Second,
	}
}

type Discoverer struct {
	opener  PageOpener
	proxies ProxySource
	cfg     Config
	logger  *slog.Logger
	onBad   func(proxy.Entry)
}

type Option func(*Discoverer)

// WithProxyFailureHook is called every time a proxy is demoted.
func WithProxyFailureHook(fn func(proxy.Entry)) Option {
	return func(d *Discoverer) { d.onBad = fn }
}

func New(opener PageOpener, proxies ProxySource, cfg Config, logger *slog.Logger, opts ...Option) *Discoverer {
	d := &Discoverer{
		opener:  opener,
		proxies: proxies,
		cfg:     cfg,
		logger:  logger.With("component", "discovery"),
		onBad:   func(proxy.Entry) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover collects product links from the listing. In infinite-scroll mode
// it stops after MaxStableRounds rounds without new links or once target
// links are known (target <= 0 means no cap).
//
// When proxies run out, or MaxProxySwitches proxies fail in a row without
// adding a link, the links gathered so far are returned together with an
// error wrapping scrapeerr.ErrDiscovery.
func (d *Discoverer) Discover(ctx context.Context, listingURL string, mode Mode, target int) ([]string, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid listing url %q: %v", scrapeerr.ErrDiscovery, listingURL, err)
	}

	links := newLinkSet(base)
	d.logger.Info("starting discovery", "url", listingURL, "mode", mode.String(), "target", target)

	// failures counts consecutive proxies that failed to load or walk the
	// listing. Only a walk that adds links resets it.
	failures := 0

	for {
		page, entry, err := d.open(ctx, listingURL, &failures)
		if err != nil {
			d.logger.Warn("discovery stopped", "error", err, "links", links.Len())
			return links.List(), err
		}

		before := links.Len()
		done, err := d.walk(ctx, page, links, mode, target)
		if closeErr := page.Close(); closeErr != nil {
			d.logger.Debug("failed to close listing page", "error", closeErr)
		}

		if err == nil && done {
			d.logger.Info("discovery completed", "links", links.Len())
			return links.List(), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return links.List(), ctxErr
		}

		if links.Len() > before {
			failures = 0
		}
		failures++

		// The page died mid-walk; demote its proxy and reload through another.
		d.logger.Warn("listing page failed, switching proxy", "proxy", entry.String(), "error", err, "links", links.Len(), "failures", failures)
		d.markBad(entry)

		if failures >= d.cfg.MaxProxySwitches {
			err := fmt.Errorf("%w: %d proxies failed in a row: %v", scrapeerr.ErrDiscovery, failures, err)
			d.logger.Warn("discovery stopped", "error", err, "links", links.Len())
			return links.List(), err
		}
	}
}

// open loads the listing, rotating through proxies until one works or the
// consecutive failure budget is spent.
func (d *Discoverer) open(ctx context.Context, listingURL string, failures *int) (ListingPage, proxy.Entry, error) {
	var lastErr error

	for *failures < d.cfg.MaxProxySwitches {
		if err := ctx.Err(); err != nil {
			return nil, proxy.Entry{}, err
		}

		entry, err := d.proxies.Next()
		if err != nil {
			return nil, proxy.Entry{}, fmt.Errorf("%w: %v", scrapeerr.ErrDiscovery, err)
		}

		page, err := d.opener.Open(ctx, listingURL, entry, d.cfg.Timeout)
		if err == nil {
			d.logger.Debug("listing loaded", "proxy", entry.String(), "failures", *failures)
			return page, entry, nil
		}

		lastErr = err
		*failures++
		d.logger.Warn("listing load failed", "proxy", entry.String(), "failures", *failures, "timeout", scrapeerr.IsTimeout(err), "error", err)
		d.markBad(entry)
	}

	return nil, proxy.Entry{}, fmt.Errorf("%w: %d proxies failed in a row: %v", scrapeerr.ErrDiscovery, *failures, lastErr)
}

// walk reads links from an open page. It reports done when the stop rule
// for the mode has been met.
func (d *Discoverer) walk(ctx context.Context, page ListingPage, links *linkSet, mode Mode, target int) (bool, error) {
	found, err := page.Links(ctx, d.cfg.LinkSelector)
	if err != nil {
		return false, err
	}
	links.Add(found...)

	if mode == ModeBounded {
		return true, nil
	}

	stable := 0
	for {
		if target > 0 && links.Len() >= target {
			return true, nil
		}
		if stable >= d.cfg.MaxStableRounds {
			return true, nil
		}

		if err := page.ScrollToBottom(ctx); err != nil {
			return false, err
		}

		err := page.WaitForMore(ctx, d.cfg.LinkSelector, len(found), d.cfg.ScrollWait)
		if err != nil && !errors.Is(err, scrapeerr.ErrTimeout) {
			return false, err
		}

		found, err = page.Links(ctx, d.cfg.LinkSelector)
		if err != nil {
			return false, err
		}

		added := links.Add(found...)
		if added == 0 {
			stable++
		} else {
			stable = 0
		}
		d.logger.Debug("scrolled", "new_links", added, "links", links.Len(), "stable_rounds", stable)
	}
}

func (d *Discoverer) markBad(e proxy.Entry) {
	d.proxies.MarkBad(e)
	d.onBad(e)
}
