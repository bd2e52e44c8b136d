package scraper

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/parser"
)

// PageFetcher loads a product page over plain HTTP.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*parser.Page, error)
}

// DynamicExtractor reads the client-rendered fields.
type DynamicExtractor interface {
	Extract(ctx context.Context, url string) models.DynamicFields
}

// ProductBuilder assembles one record from the static and rendered views of
// a product page.
type ProductBuilder struct {
	fetcher  PageFetcher
	rendered DynamicExtractor
	logger   *slog.Logger
}

func NewProductBuilder(fetcher PageFetcher, rendered DynamicExtractor, logger *slog.Logger) *ProductBuilder {
	return &ProductBuilder{
		fetcher:  fetcher,
		rendered: rendered,
		logger:   logger.With("component", "product_builder"),
	}
}

// Build runs both extractions concurrently. Only the static fetch can fail
// the build; rendered problems show up as degraded fields.
func (b *ProductBuilder) Build(ctx context.Context, url string) (models.ProductRecord, error) {
	var (
		static  models.StaticFields
		dynamic models.DynamicFields
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		page, err := b.fetcher.Fetch(gctx, url)
		if err != nil {
			return err
		}

		fields, parseErr := parser.ParseStatic(page)
		if parseErr != nil {
			b.logger.Warn("structured rating data unreadable, using defaults", "url", url, "error", parseErr)
		}
		static = fields
		return nil
	})

	g.Go(func() error {
		dynamic = b.rendered.Extract(gctx, url)
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.ProductRecord{}, err
	}

	return models.NewProductRecord(url, static, dynamic), nil
}
