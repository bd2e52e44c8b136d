package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

const (
	selHeroImage          = "img#pdp_6up-hero"
	selName               = "h1#pdp_product_title"
	selCategory           = `h2[data-test="product-sub-title"]`
	selOriginalPrice      = `div[data-test="product-price"]`
	selDiscountPercentage = `span[data-testid="OfferPercentage"]`
	selDiscountedPrice    = `div[data-test="product-price-reduced"]`
	selColor              = "li.description-preview__color-description"
	selStyle              = "li.description-preview__style-color"
	selDescription        = "div.description-preview p"
	selStructuredData     = `script[type="application/ld+json"]`
)

// ReviewSummary is the aggregate rating block of a product page.
type ReviewSummary struct {
	Reviews int
	Rating  float64
}

func HeroImage(p *Page) *string {
	src, ok := p.attr(selHeroImage, "src")
	if !ok || strings.TrimSpace(src) == "" {
		return nil
	}
	return models.String(strings.TrimSpace(src))
}

func Name(p *Page) string {
	return textOrPlaceholder(p, selName)
}

func Category(p *Page) string {
	return textOrPlaceholder(p, selCategory)
}

func OriginalPrice(p *Page) *string {
	return optionalText(p, selOriginalPrice, func(s string) string {
		return strings.TrimSpace(strings.Replace(s, "Discounted from", "", 1))
	})
}

func DiscountPercentage(p *Page) *string {
	return optionalText(p, selDiscountPercentage, func(s string) string {
		return trimSuffixFold(s, "off")
	})
}

func DiscountedPrice(p *Page) *string {
	return optionalText(p, selDiscountedPrice, nil)
}

func Color(p *Page) *string {
	return optionalText(p, selColor, func(s string) string {
		return strings.TrimSpace(strings.TrimPrefix(s, "Colour Shown:"))
	})
}

func Style(p *Page) *string {
	return optionalText(p, selStyle, func(s string) string {
		return strings.TrimSpace(strings.TrimPrefix(s, "Style:"))
	})
}

func Description(p *Page) *string {
	return optionalText(p, selDescription, nil)
}

// ReviewsAndRating reads aggregateRating from the embedded JSON-LD blocks.
// The first block carrying an aggregate wins. When none does and at least one
// block was malformed, the zero summary is returned with an ErrParse error;
// callers treat that as a field default, not a failure.
func ReviewsAndRating(p *Page) (ReviewSummary, error) {
	var (
		summary  ReviewSummary
		found    bool
		parseErr error
	)

	p.each(selStructuredData, func(s *goquery.Selection) {
		if found {
			return
		}

		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			parseErr = fmt.Errorf("%w: %v", scrapeerr.ErrParse, err)
			return
		}

		agg, ok := findAggregate(data)
		if !ok {
			return
		}

		found = true
		if v, ok := number(agg["reviewCount"]); ok {
			summary.Reviews = count(v)
		}
		if v, ok := number(agg["ratingValue"]); ok {
			summary.Rating = v
		}
	})

	if found {
		return summary, nil
	}
	return ReviewSummary{}, parseErr
}

// ParseStatic runs every getter against the page. The rating error is
// returned alongside the fields so the caller can log it.
func ParseStatic(p *Page) (models.StaticFields, error) {
	reviews, err := ReviewsAndRating(p)

	return models.StaticFields{
		HeroImage:          HeroImage(p),
		Name:               Name(p),
		Category:           Category(p),
		OriginalPrice:      OriginalPrice(p),
		DiscountPercentage: DiscountPercentage(p),
		DiscountedPrice:    DiscountedPrice(p),
		Color:              Color(p),
		Style:              Style(p),
		Description:        Description(p),
		Reviews:            reviews.Reviews,
		Rating:             reviews.Rating,
	}, err
}

func textOrPlaceholder(p *Page, selector string) string {
	text, ok := p.text(selector)
	if !ok || text == "" {
		return models.Placeholder
	}
	return text
}

func optionalText(p *Page, selector string, post func(string) string) *string {
	text, ok := p.text(selector)
	if !ok {
		return nil
	}
	if post != nil {
		text = post(text)
	}
	if text == "" {
		return nil
	}
	return models.String(text)
}

func trimSuffixFold(s, suffix string) string {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		s = s[:len(s)-len(suffix)]
	}
	return strings.TrimSpace(s)
}

func findAggregate(data any) (map[string]any, bool) {
	switch v := data.(type) {
	case map[string]any:
		if agg, ok := v["aggregateRating"].(map[string]any); ok {
			return agg, true
		}
		if graph, ok := v["@graph"]; ok {
			return findAggregate(graph)
		}
	case []any:
		for _, item := range v {
			if agg, ok := findAggregate(item); ok {
				return agg, true
			}
		}
	}
	return nil, false
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// count converts a review total, clamped to a non-negative int32 range.
func count(f float64) int {
	switch {
	case f <= 0:
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}
