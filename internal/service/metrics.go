package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bobbot"

// Metrics holds the Prometheus collectors shared by the batch jobs and the
// chatbot handlers.
type Metrics struct {
	CrawledPosts       *prometheus.CounterVec
	BoardFailures      prometheus.Counter
	Conversions        *prometheus.CounterVec
	RegulationsTotal   prometheus.Gauge
	PendingConversions prometheus.Gauge
	DietUploads        *prometheus.CounterVec
	AssistantReplies   *prometheus.CounterVec
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CrawledPosts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "crawler",
			Name:      "posts_total",
			Help:      "Board posts synchronized, by upsert outcome.",
		}, []string{"outcome"}),
		BoardFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "crawler",
			Name:      "board_failures_total",
			Help:      "Board walks that were cut short by a fetch or parse error.",
		}),
		Conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "conversion",
			Name:      "items_total",
			Help:      "Documents processed by the conversion pipeline, by result.",
		}, []string{"result"}),
		RegulationsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "regulations",
			Help:      "Regulations currently stored.",
		}),
		PendingConversions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "pending_conversions",
			Help:      "Regulations with a source file and no HTML artifact.",
		}),
		DietUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "diet",
			Name:      "uploads_total",
			Help:      "Diet image uploads, by result.",
		}, []string{"result"}),
		AssistantReplies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "assistant",
			Name:      "replies_total",
			Help:      "Assistant requests, by how they were answered.",
		}, []string{"result"}),
	}
}

// RegulationCounter reports stored and pending regulation totals.
type RegulationCounter interface {
	Counts(ctx context.Context) (total, pending int, err error)
}

// RefreshStoreGauges copies the store totals into the gauges.
func (m *Metrics) RefreshStoreGauges(ctx context.Context, counter RegulationCounter) error {
	total, pending, err := counter.Counts(ctx)
	if err != nil {
		return err
	}
	m.RegulationsTotal.Set(float64(total))
	m.PendingConversions.Set(float64(pending))
	return nil
}
