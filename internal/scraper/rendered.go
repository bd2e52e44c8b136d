package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

const (
	SizeSelector      = ".mt2-sm div:not(:has(input[disabled])) label.css-xf3ahq"
	ThumbnailSelector = `[data-testid^="Thumbnail-Img-"]`
)

// RenderSession is one live browser tab.
type RenderSession interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Texts(ctx context.Context, selector string) ([]string, error)
	Attributes(ctx context.Context, selector, attr string) ([]string, error)
	Close() error
}

type SessionFactory interface {
	NewSession(ctx context.Context) (RenderSession, error)
}

type RenderedExtractor struct {
	sessions          SessionFactory
	navigationTimeout time.Duration
	maxAttempts       int
	logger            *slog.Logger
}

func NewRenderedExtractor(sessions SessionFactory, navigationTimeout time.Duration, maxAttempts int, logger *slog.Logger) *RenderedExtractor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RenderedExtractor{
		sessions:          sessions,
		navigationTimeout: navigationTimeout,
		maxAttempts:       maxAttempts,
		logger:            logger.With("component", "rendered_extractor"),
	}
}

// Extract reads sizes and thumbnails from the rendered product page. It never
// fails: navigation timeouts are retried up to the attempt budget and then
// degrade to SentinelTimedOut, any other error degrades to SentinelError at once.
func (e *RenderedExtractor) Extract(ctx context.Context, url string) models.DynamicFields {
	session, err := e.sessions.NewSession(ctx)
	if err != nil {
		e.logger.Error("failed to open browser session", "url", url, "error", err)
		return models.Degraded(models.SentinelError)
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.Warn("failed to close browser session", "url", url, "error", err)
		}
	}()

	for attempt := 1; ; attempt++ {
		err := session.Navigate(ctx, url, e.navigationTimeout)
		if err == nil {
			break
		}

		if !scrapeerr.IsTimeout(err) || errors.Is(err, context.Canceled) {
			e.logger.Error("navigation failed", "url", url, "error", err)
			return models.Degraded(models.SentinelError)
		}
		if attempt >= e.maxAttempts {
			e.logger.Warn("page load timed out", "url", url, "attempts", attempt)
			return models.Degraded(models.SentinelTimedOut)
		}
		e.logger.Info("retrying navigation", "url", url, "attempt", attempt+1, "max_attempts", e.maxAttempts)
	}

	sizes, err := session.Texts(ctx, SizeSelector)
	if err != nil {
		e.logger.Error("failed to read sizes", "url", url, "error", err)
		return models.Degraded(models.SentinelError)
	}

	images, err := session.Attributes(ctx, ThumbnailSelector, "src")
	if err != nil {
		e.logger.Error("failed to read thumbnails", "url", url, "error", err)
		return models.Degraded(models.SentinelError)
	}

	return models.DynamicFields{
		Sizes:  compact(sizes, false),
		Images: compact(images, true),
	}
}

// compact trims values and drops empties, optionally dropping repeats too.
func compact(values []string, unique bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if unique {
			if seen[v] {
				continue
			}
			seen[v] = true
		}
		out = append(out, v)
	}
	return out
}
