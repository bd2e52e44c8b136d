package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maltedev/listing-scraper/internal/discovery"
	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

type LinkDiscoverer interface {
	Discover(ctx context.Context, listingURL string, mode discovery.Mode, target int) ([]string, error)
}

type RecordBuilder interface {
	Build(ctx context.Context, url string) (models.ProductRecord, error)
}

type Sink interface {
	WriteAll(ctx context.Context, records []models.ProductRecord) error
}

// LinkRecorder keeps a copy of the discovered links outside the process.
type LinkRecorder interface {
	SaveLinks(ctx context.Context, runID string, links []string) error
}

// Observer receives run counters.
type Observer interface {
	ObserveLinks(n int)
	ObserveAttempt(result string, took time.Duration)
	ObserveProduct(outcome string)
	IncSinkErrors()
}

type Outcome int

const (
	OutcomeBuilt Outcome = iota
	OutcomeSkipped
)

func (o Outcome) String() string {
	if o == OutcomeSkipped {
		return "skipped"
	}
	return "built"
}

type Orchestrator struct {
	discoverer  LinkDiscoverer
	builder     RecordBuilder
	sink        Sink
	recorder    LinkRecorder
	observer    Observer
	runID       string
	workers     int
	maxAttempts int
	logger      *slog.Logger
}

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithLinkRecorder(r LinkRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

func New(discoverer LinkDiscoverer, builder RecordBuilder, sink Sink, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		discoverer:  discoverer,
		builder:     builder,
		sink:        sink,
		observer:    nopObserver{},
		workers:     1,
		maxAttempts: 2,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator", "run_id", o.runID)
	return o
}

// Run discovers product links on the listing and builds a record for each,
// persisting the completed batch after every success and once at the end.
// Only cancellation of ctx is reported as an error; everything else is
// logged and the run carries on.
func (o *Orchestrator) Run(ctx context.Context, listingURL string, productCount int) ([]models.ProductRecord, error) {
	mode := discovery.ModeFor(productCount)

	links, err := o.discoverer.Discover(ctx, listingURL, mode, productCount)
	if err != nil {
		o.logger.Error("discovery incomplete, continuing with collected links", "error", err, "links", len(links))
	}
	o.observer.ObserveLinks(len(links))
	o.recordLinks(ctx, links)

	b := newBatch(len(links))

	if ctx.Err() == nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)

		for i, link := range links {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				rec, outcome := o.buildWithRetry(gctx, i, len(links), link)
				o.observer.ObserveProduct(outcome.String())
				if outcome == OutcomeBuilt {
					b.commit(i, rec, func(records []models.ProductRecord) {
						o.persist(gctx, records)
					})
				}
				return nil
			})
		}
		g.Wait()
	}

	// The final write must happen even after a signal.
	records := b.completed()
	o.persist(context.WithoutCancel(ctx), records)
	o.logger.Info("run finished", "links", len(links), "records", len(records))

	if err := ctx.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// buildWithRetry retries on timeouts only. Any other error skips the product.
func (o *Orchestrator) buildWithRetry(ctx context.Context, index, total int, url string) (models.ProductRecord, Outcome) {
	position := index + 1

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		rec, err := o.builder.Build(ctx, url)
		took := time.Since(start)

		switch {
		case err == nil:
			o.observer.ObserveAttempt("ok", took)
			o.logger.Info("product scraped", "index", position, "total", total, "attempt", attempt, "outcome", OutcomeBuilt.String(), "url", url)
			return rec, OutcomeBuilt

		case scrapeerr.IsTimeout(err) && !errors.Is(err, context.Canceled):
			o.observer.ObserveAttempt("timeout", took)
			o.logger.Warn("product timed out", "index", position, "total", total, "attempt", attempt, "max_attempts", o.maxAttempts, "url", url, "error", err)

		default:
			o.observer.ObserveAttempt("error", took)
			o.logger.Error("product failed", "index", position, "total", total, "attempt", attempt, "outcome", OutcomeSkipped.String(), "url", url, "error", err)
			return models.ProductRecord{}, OutcomeSkipped
		}
	}

	o.logger.Warn("product skipped", "index", position, "total", total, "outcome", OutcomeSkipped.String(), "url", url)
	return models.ProductRecord{}, OutcomeSkipped
}

func (o *Orchestrator) persist(ctx context.Context, records []models.ProductRecord) {
	if err := o.sink.WriteAll(ctx, records); err != nil {
		o.observer.IncSinkErrors()
		o.logger.Error("failed to save records", "records", len(records), "error", err)
	}
}

func (o *Orchestrator) recordLinks(ctx context.Context, links []string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.SaveLinks(ctx, o.runID, links); err != nil {
		o.logger.Warn("failed to record links", "links", len(links), "error", err)
	}
}

// batch holds records by discovery index. Writers run under the same lock
// as the update, so the sink never sees an older snapshot after a newer one.
type batch struct {
	mu    sync.Mutex
	slots []*models.ProductRecord
}

func newBatch(n int) *batch {
	return &batch{slots: make([]*models.ProductRecord, n)}
}

func (b *batch) commit(i int, rec models.ProductRecord, write func([]models.ProductRecord)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[i] = &rec
	write(b.snapshot())
}

func (b *batch) completed() []models.ProductRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

func (b *batch) snapshot() []models.ProductRecord {
	out := make([]models.ProductRecord, 0, len(b.slots))
	for _, r := range b.slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

type nopObserver struct{}

func (nopObserver) ObserveLinks(int) {}

func (nopObserver) ObserveAttempt(string, time.Duration) {}

func (nopObserver) ObserveProduct(string) {}

func (nopObserver) IncSinkErrors() {}
