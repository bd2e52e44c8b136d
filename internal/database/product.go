package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/listing-scraper/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS scraped_products (
	run_id              UUID NOT NULL,
	position            INTEGER NOT NULL,
	url                 TEXT NOT NULL,
	hero_image          TEXT,
	name                TEXT NOT NULL,
	category            TEXT NOT NULL,
	original_price      TEXT,
	discount_percentage TEXT,
	discounted_price    TEXT,
	color               TEXT,
	style               TEXT,
	description         TEXT,
	reviews             INTEGER NOT NULL DEFAULT 0,
	rating              DOUBLE PRECISION NOT NULL DEFAULT 0,
	sizes               JSONB NOT NULL DEFAULT '[]',
	detail_images       JSONB NOT NULL DEFAULT '[]',
	detail_images_error TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (run_id, url)
)`

const upsertProduct = `
	INSERT INTO scraped_products (
		run_id, position, url, hero_image, name, category,
		original_price, discount_percentage, discounted_price,
		color, style, description, reviews, rating,
		sizes, detail_images, detail_images_error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (run_id, url) DO UPDATE SET
		position = EXCLUDED.position,
		hero_image = EXCLUDED.hero_image,
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		original_price = EXCLUDED.original_price,
		discount_percentage = EXCLUDED.discount_percentage,
		discounted_price = EXCLUDED.discounted_price,
		color = EXCLUDED.color,
		style = EXCLUDED.style,
		description = EXCLUDED.description,
		reviews = EXCLUDED.reviews,
		rating = EXCLUDED.rating,
		sizes = EXCLUDED.sizes,
		detail_images = EXCLUDED.detail_images,
		detail_images_error = EXCLUDED.detail_images_error,
		updated_at = CURRENT_TIMESTAMP`

// EnsureSchema creates the products table when it does not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertProducts writes the whole snapshot of a run in one transaction.
// Rows are keyed by run and URL so repeated snapshots overwrite.
func (db *DB) UpsertProducts(ctx context.Context, runID uuid.UUID, records []models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	return db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, r := range records {
			args, err := productArgs(runID, i, r)
			if err != nil {
				return err
			}
			batch.Queue(upsertProduct, args...)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert products: %w", err)
		}
		return nil
	})
}

// CountProducts returns how many rows a run has stored.
func (db *DB) CountProducts(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scraped_products WHERE run_id = $1`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func productArgs(runID uuid.UUID, position int, r models.ProductRecord) ([]any, error) {
	sizes, err := json.Marshal(orEmpty(r.Sizes))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sizes: %w", err)
	}
	images, err := json.Marshal(orEmpty(r.DetailImages))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal images: %w", err)
	}

	var imagesErr *string
	if r.DetailImagesFailure != "" {
		imagesErr = &r.DetailImagesFailure
	}

	return []any{
		runID, position, r.URL, r.HeroImage, r.Name, r.Category,
		r.OriginalPrice, r.DiscountPercentage, r.DiscountedPrice,
		r.Color, r.Style, r.Description, r.Reviews, r.Rating,
		sizes, images, imagesErr,
	}, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
