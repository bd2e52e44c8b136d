package models

import (
	"encoding/json"
	"strconv"
)

// Placeholder is stored in text fields that have a default instead of being absent.
const Placeholder = "-"

const (
	SentinelTimedOut = "Page load timed out"
	SentinelError    = "An error occurred"
)

// Columns is the stable CSV header order.
var Columns = []string{
	"Product URL",
	"Hero Image",
	"Product Name",
	"Product Category",
	"Original Price",
	"Discount Percentage",
	"Discounted Price",
	"Colour",
	"Style",
	"Product Description",
	"Reviews",
	"Rating",
	"Sizes",
	"Detail Images",
}

// StaticFields holds everything parsed from the plain HTML of a product page.
type StaticFields struct {
	HeroImage          *string `json:"hero_image"`
	Name               string  `json:"name"`
	Category           string  `json:"category"`
	OriginalPrice      *string `json:"original_price"`
	DiscountPercentage *string `json:"discount_percentage"`
	DiscountedPrice    *string `json:"discounted_price"`
	Color              *string `json:"color"`
	Style              *string `json:"style"`
	Description        *string `json:"description"`
	Reviews            int     `json:"reviews"`
	Rating             float64 `json:"rating"`
}

// DynamicFields holds what only exists after client-side rendering.
// ImagesFailure is set instead of Images when rendering was degraded.
type DynamicFields struct {
	Sizes         []string `json:"sizes"`
	Images        []string `json:"images"`
	ImagesFailure string   `json:"images_failure,omitempty"`
}

// Degraded returns the fallback used when the rendered page could not be read.
func Degraded(sentinel string) DynamicFields {
	return DynamicFields{
		Sizes:         []string{},
		Images:        []string{},
		ImagesFailure: sentinel,
	}
}

type ProductRecord struct {
	URL                 string   `json:"url"`
	HeroImage           *string  `json:"hero_image"`
	Name                string   `json:"name"`
	Category            string   `json:"category"`
	OriginalPrice       *string  `json:"original_price"`
	DiscountPercentage  *string  `json:"discount_percentage"`
	DiscountedPrice     *string  `json:"discounted_price"`
	Color               *string  `json:"color"`
	Style               *string  `json:"style"`
	Description         *string  `json:"description"`
	Reviews             int      `json:"reviews"`
	Rating              float64  `json:"rating"`
	Sizes               []string `json:"sizes"`
	DetailImages        []string `json:"detail_images"`
	DetailImagesFailure string   `json:"detail_images_failure,omitempty"`
}

// NewProductRecord merges the two extraction results into one record.
// Nil slices are normalised so every field has a value.
func NewProductRecord(url string, s StaticFields, d DynamicFields) ProductRecord {
	r := ProductRecord{
		URL:                 url,
		HeroImage:           s.HeroImage,
		Name:                s.Name,
		Category:            s.Category,
		OriginalPrice:       s.OriginalPrice,
		DiscountPercentage:  s.DiscountPercentage,
		DiscountedPrice:     s.DiscountedPrice,
		Color:               s.Color,
		Style:               s.Style,
		Description:         s.Description,
		Reviews:             s.Reviews,
		Rating:              s.Rating,
		Sizes:               d.Sizes,
		DetailImages:        d.Images,
		DetailImagesFailure: d.ImagesFailure,
	}

	if r.Name == "" {
		r.Name = Placeholder
	}
	if r.Category == "" {
		r.Category = Placeholder
	}
	if r.Sizes == nil {
		r.Sizes = []string{}
	}
	if r.DetailImages == nil {
		r.DetailImages = []string{}
	}

	return r
}

// Row renders the record in Columns order. Absent values become empty cells.
func (r ProductRecord) Row() []string {
	images := encodeList(r.DetailImages)
	if r.DetailImagesFailure != "" {
		images = r.DetailImagesFailure
	}

	return []string{
		r.URL,
		optional(r.HeroImage),
		r.Name,
		r.Category,
		optional(r.OriginalPrice),
		optional(r.DiscountPercentage),
		optional(r.DiscountedPrice),
		optional(r.Color),
		optional(r.Style),
		optional(r.Description),
		strconv.Itoa(r.Reviews),
		FormatRating(r.Rating),
		encodeList(r.Sizes),
		images,
	}
}

// FormatRating always keeps one decimal place for whole numbers, so 0 reads as 0.0.
func FormatRating(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// String returns a pointer to s, for optional fields.
func String(s string) *string {
	return &s
}
