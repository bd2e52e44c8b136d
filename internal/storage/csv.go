package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// CSVSink rewrites one CSV file with the whole batch on every call.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) WriteAll(ctx context.Context, records []models.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(models.Columns); err != nil {
		return fmt.Errorf("%w: encode header: %v", scrapeerr.ErrIO, err)
	}
	for _, r := range records {
		if err := w.Write(r.Row()); err != nil {
			return fmt.Errorf("%w: encode %s: %v", scrapeerr.ErrIO, r.URL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: encode csv: %v", scrapeerr.ErrIO, err)
	}

	// Write to temp file first for atomicity
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", scrapeerr.ErrIO, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", scrapeerr.ErrIO, tmp.Name(), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: chmod %s: %v", scrapeerr.ErrIO, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", scrapeerr.ErrIO, tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", scrapeerr.ErrIO, s.path, err)
	}
	return nil
}
