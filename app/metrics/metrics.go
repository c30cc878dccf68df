// Package metrics exposes Prometheus metrics for fetches, deliveries and
// dispatch cycles.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "news_relay"

type Collector struct {
	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	itemsFetched *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	tenants      *prometheus.CounterVec
	cycles       prometheus.Counter
	cycleLatency prometheus.Histogram
	ledgerSize   prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Feed endpoint fetches by category and result.",
		}, []string{"category", "success"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Feed endpoint fetch duration including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"category"}),
		itemsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_items_total",
			Help:      "Items returned by category fetches after filtering and limiting.",
		}, []string{"category"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Message deliveries by category and result.",
		}, []string{"category", "success"}),
		tenants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_resolutions_total",
			Help:      "Destination resolutions by outcome.",
		}, []string{"outcome"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_cycles_total",
			Help:      "Completed or aborted dispatch cycles.",
		}),
		cycleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_cycle_duration_seconds",
			Help:      "Dispatch cycle duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_ids",
			Help:      "Number of ids held by the delivery ledger.",
		}),
	}

	reg.MustRegister(
		c.fetches,
		c.fetchLatency,
		c.itemsFetched,
		c.deliveries,
		c.tenants,
		c.cycles,
		c.cycleLatency,
		c.ledgerSize,
	)

	return c
}

func (c *Collector) ObserveFetch(category string, ok bool, duration time.Duration) {
	c.fetches.WithLabelValues(category, strconv.FormatBool(ok)).Inc()
	c.fetchLatency.WithLabelValues(category).Observe(duration.Seconds())
}

func (c *Collector) ObserveItems(category string, count int) {
	c.itemsFetched.WithLabelValues(category).Add(float64(count))
}

func (c *Collector) ObserveDelivery(category string, ok bool) {
	c.deliveries.WithLabelValues(category, strconv.FormatBool(ok)).Inc()
}

func (c *Collector) ObserveResolution(outcome string) {
	c.tenants.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveCycle(duration time.Duration) {
	c.cycles.Inc()
	c.cycleLatency.Observe(duration.Seconds())
}

func (c *Collector) SetLedgerSize(n int) {
	c.ledgerSize.Set(float64(n))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
