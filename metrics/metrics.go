// Package metrics exposes a Store's aggregate Stats() as Prometheus
// gauges. It registers as a single prometheus.Collector implementation
// rather than promauto package-level globals: Collect calls Store.Stats()
// on scrape, so the exported series always reflect live storage state
// instead of a value some other goroutine remembered to update.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	queue "github.com/relaydb/queue"
)

const namespace = "jobqueue"

var (
	pendingNowDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "jobs", "pending_now"),
		"Number of jobs eligible for reservation right now.",
		[]string{"queue"}, nil,
	)
	pendingLaterDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "jobs", "pending_later"),
		"Number of pending jobs whose available_at is still in the future.",
		[]string{"queue"}, nil,
	)
	reservedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "jobs", "reserved"),
		"Number of jobs currently held under a worker lease.",
		[]string{"queue"}, nil,
	)
	deadLetterDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "jobs", "dead_letter"),
		"Number of jobs parked in the dead-letter table.",
		[]string{"queue"}, nil,
	)
	scrapeErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "stats", "scrape_errors_total"),
		"Number of Stats() calls that returned an error during collection.",
		nil, nil,
	)
)

// Collector adapts a queue.Store to prometheus.Collector, reporting Stats
// per queue name. Register it on whatever *prometheus.Registry the host
// exposes; it holds no mutable state of its own beyond the error counter,
// so it is safe to register once and reused across scrapes.
type Collector struct {
	store   queue.Store
	queues  []string
	timeout time.Duration
	log     *slog.Logger

	scrapeErrors prometheus.Counter
}

// NewCollector returns a Collector reporting Stats for each of queues. An
// empty queues reports a single series labeled queue="all", fed by
// Store.Stats("") under its "empty string means all queues" contract.
func NewCollector(store queue.Store, queues []string, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	if len(queues) == 0 {
		queues = []string{""}
	}
	return &Collector{
		store:   store,
		queues:  queues,
		timeout: 5 * time.Second,
		log:     log,
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "stats", "scrape_errors_total"),
			Help: "Number of Stats() calls that returned an error during collection.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pendingNowDesc
	ch <- pendingLaterDesc
	ch <- reservedDesc
	ch <- deadLetterDesc
	ch <- scrapeErrorsDesc
}

// Collect implements prometheus.Collector, calling Store.Stats once per
// configured queue on every scrape.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	for _, queueName := range c.queues {
		st, err := c.store.Stats(ctx, queueName)
		if err != nil {
			c.scrapeErrors.Inc()
			c.log.Warn("metrics: stats scrape failed", "queue", queueName, "err", err)
			continue
		}
		label := queueName
		if label == "" {
			label = "all"
		}
		ch <- prometheus.MustNewConstMetric(pendingNowDesc, prometheus.GaugeValue, float64(st.PendingNow), label)
		ch <- prometheus.MustNewConstMetric(pendingLaterDesc, prometheus.GaugeValue, float64(st.PendingLater), label)
		ch <- prometheus.MustNewConstMetric(reservedDesc, prometheus.GaugeValue, float64(st.Reserved), label)
		ch <- prometheus.MustNewConstMetric(deadLetterDesc, prometheus.GaugeValue, float64(st.DeadLetter), label)
	}
	ch <- c.scrapeErrors
}
