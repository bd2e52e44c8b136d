package monitoring

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters of one scrape run. They live in their own
// registry and are written out once as a node-exporter textfile.
type Metrics struct {
	registry *prometheus.Registry

	LinksDiscovered prometheus.Gauge
	ProductsTotal   *prometheus.CounterVec
	AttemptsTotal   *prometheus.CounterVec
	BuildDuration   prometheus.Histogram
	ProxiesBad      prometheus.Counter
	SinkErrors      prometheus.Counter
	LastRun         prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LinksDiscovered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_links_discovered",
			Help: "Unique product links found on the listing page",
		}),
		ProductsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_products_total",
			Help: "Products processed, by final outcome",
		}, []string{"outcome"}), // built, skipped
		AttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_product_attempts_total",
			Help: "Product build attempts, by result",
		}, []string{"result"}), // ok, timeout, error
		BuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_product_build_seconds",
			Help:    "Time spent building one product record",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		}),
		ProxiesBad: factory.NewCounter(prometheus.CounterOpts{
			Name: "scraper_proxies_marked_bad_total",
			Help: "Proxies removed from rotation",
		}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "scraper_sink_errors_total",
			Help: "Failed persistence calls",
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveLinks(n int) {
	m.LinksDiscovered.Set(float64(n))
}

func (m *Metrics) ObserveAttempt(result string, took time.Duration) {
	m.AttemptsTotal.WithLabelValues(result).Inc()
	m.BuildDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveProduct(outcome string) {
	m.ProductsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSinkErrors() {
	m.SinkErrors.Inc()
}

func (m *Metrics) IncProxiesBad() {
	m.ProxiesBad.Inc()
}

// WriteTextfile stamps the run end time and writes every metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	m.LastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
