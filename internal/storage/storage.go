package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// Sink receives the full batch of completed records on every call and
// replaces whatever it stored before.
type Sink interface {
	WriteAll(ctx context.Context, records []models.ProductRecord) error
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) WriteAll(ctx context.Context, records []models.ProductRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteAll(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type productStore interface {
	UpsertProducts(ctx context.Context, runID uuid.UUID, records []models.ProductRecord) error
}

// PostgresSink mirrors the batch into the scraped_products table of one run.
type PostgresSink struct {
	store productStore
	runID uuid.UUID
}

func NewPostgresSink(store productStore, runID uuid.UUID) *PostgresSink {
	return &PostgresSink{store: store, runID: runID}
}

func (s *PostgresSink) WriteAll(ctx context.Context, records []models.ProductRecord) error {
	if err := s.store.UpsertProducts(ctx, s.runID, records); err != nil {
		return fmt.Errorf("%w: postgres: %v", scrapeerr.ErrIO, err)
	}
	return nil
}
