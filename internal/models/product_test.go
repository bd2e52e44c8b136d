package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductRecordDefaults(t *testing.T) {
	r := NewProductRecord("https://example.com/p/1", StaticFields{}, DynamicFields{})

	assert.Equal(t, "https://example.com/p/1", r.URL)
	assert.Equal(t, Placeholder, r.Name)
	assert.Equal(t, Placeholder, r.Category)
	assert.Nil(t, r.DiscountPercentage)
	assert.Equal(t, 0, r.Reviews)
	assert.Equal(t, 0.0, r.Rating)
	assert.NotNil(t, r.Sizes)
	assert.Empty(t, r.Sizes)
	assert.NotNil(t, r.DetailImages)
	assert.Empty(t, r.DetailImagesFailure)
}

func TestRowShape(t *testing.T) {
	r := NewProductRecord("u", StaticFields{
		Name:          "Air Max",
		Category:      "Men's Shoes",
		OriginalPrice: String("Rp 2,379,000"),
		Reviews:       12,
		Rating:        4.5,
	}, DynamicFields{
		Sizes:  []string{"EU 40", "EU 41"},
		Images: []string{"a.png"},
	})

	row := r.Row()
	require.Len(t, row, len(Columns))

	assert.Equal(t, "u", row[0])
	assert.Equal(t, "", row[1])
	assert.Equal(t, "Air Max", row[2])
	assert.Equal(t, "Rp 2,379,000", row[4])
	assert.Equal(t, "", row[5])
	assert.Equal(t, "12", row[10])
	assert.Equal(t, "4.5", row[11])
	assert.Equal(t, `["EU 40","EU 41"]`, row[12])
	assert.Equal(t, `["a.png"]`, row[13])
}

func TestRowDegradedImages(t *testing.T) {
	r := NewProductRecord("u", StaticFields{Name: "x"}, Degraded(SentinelTimedOut))
	row := r.Row()

	assert.Equal(t, "[]", row[12])
	assert.Equal(t, SentinelTimedOut, row[13])
}

func TestFormatRating(t *testing.T) {
	assert.Equal(t, "0.0", FormatRating(0))
	assert.Equal(t, "5.0", FormatRating(5))
	assert.Equal(t, "4.25", FormatRating(4.25))
}
