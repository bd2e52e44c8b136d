package scraper

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/parser"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*parser.Page, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*parser.Page), args.Error(1)
}

type stubExtractor struct {
	fields models.DynamicFields
}

func (s stubExtractor) Extract(ctx context.Context, url string) models.DynamicFields {
	return s.fields
}

const productHTML = `<html><body>
<img id="pdp_6up-hero" src="https://static.nike.com/hero.png">
<h1 id="pdp_product_title">Nike Air Max 90</h1>
<h2 data-test="product-sub-title">Men's Shoes</h2>
<div data-test="product-price">Rp 1,849,000</div>
<script type="application/ld+json">{"@type":"Product","aggregateRating":{"ratingValue":4.6,"reviewCount":120}}</script>
</body></html>`

func TestProductBuilder_Build(t *testing.T) {
	ctx := context.Background()

	t.Run("merges static and rendered fields", func(t *testing.T) {
		page, err := parser.NewPageFromString(productHTML)
		require.NoError(t, err)

		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, productURL).Return(page, nil)

		rendered := stubExtractor{fields: models.DynamicFields{
			Sizes:  []string{"US 8", "US 9"},
			Images: []string{"https://static.nike.com/a.png"},
		}}

		b := NewProductBuilder(fetcher, rendered, discardLogger)
		rec, err := b.Build(ctx, productURL)
		require.NoError(t, err)

		assert.Equal(t, productURL, rec.URL)
		assert.Equal(t, "Nike Air Max 90", rec.Name)
		assert.Equal(t, "Men's Shoes", rec.Category)
		require.NotNil(t, rec.OriginalPrice)
		assert.Equal(t, "Rp 1,849,000", *rec.OriginalPrice)
		assert.Nil(t, rec.DiscountPercentage)
		assert.Equal(t, 120, rec.Reviews)
		assert.Equal(t, 4.6, rec.Rating)
		assert.Equal(t, []string{"US 8", "US 9"}, rec.Sizes)
		assert.Equal(t, []string{"https://static.nike.com/a.png"}, rec.DetailImages)
		fetcher.AssertExpectations(t)
	})

	t.Run("degraded rendering still builds the record", func(t *testing.T) {
		page, err := parser.NewPageFromString(productHTML)
		require.NoError(t, err)

		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, productURL).Return(page, nil)

		b := NewProductBuilder(fetcher, stubExtractor{fields: models.Degraded(models.SentinelTimedOut)}, discardLogger)
		rec, err := b.Build(ctx, productURL)
		require.NoError(t, err)

		assert.Equal(t, "Nike Air Max 90", rec.Name)
		assert.Empty(t, rec.Sizes)
		assert.Equal(t, models.SentinelTimedOut, rec.Row()[13])
	})

	t.Run("static fetch timeout fails the build", func(t *testing.T) {
		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, productURL).Return(nil, fmt.Errorf("%w: GET %s", scrapeerr.ErrTimeout, productURL))

		b := NewProductBuilder(fetcher, stubExtractor{}, discardLogger)
		_, err := b.Build(ctx, productURL)

		require.Error(t, err)
		assert.True(t, scrapeerr.IsTimeout(err))
	})

	t.Run("malformed rating keeps the rest", func(t *testing.T) {
		page, err := parser.NewPageFromString(`<html><body>
<h1 id="pdp_product_title">Nike Pegasus 41</h1>
<script type="application/ld+json">{not json</script>
</body></html>`)
		require.NoError(t, err)

		fetcher := new(MockFetcher)
		fetcher.On("Fetch", mock.Anything, productURL).Return(page, nil)

		b := NewProductBuilder(fetcher, stubExtractor{}, discardLogger)
		rec, err := b.Build(ctx, productURL)
		require.NoError(t, err)

		assert.Equal(t, "Nike Pegasus 41", rec.Name)
		assert.Equal(t, models.Placeholder, rec.Category)
		assert.Equal(t, 0, rec.Reviews)
		assert.Equal(t, "0.0", rec.Row()[11])
		assert.Equal(t, "[]", rec.Row()[12])
	})
}
