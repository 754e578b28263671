// Package metrics registers the gateway's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the retrieval gateway.
type Metrics struct {
	// Payment metrics
	PaymentsTotal       *prometheus.CounterVec
	PaymentsFailedTotal *prometheus.CounterVec
	PaymentAmountTotal  *prometheus.CounterVec
	SettlementDuration  *prometheus.HistogramVec

	// Facilitator call metrics
	FacilitatorCallsTotal  *prometheus.CounterVec
	FacilitatorCallSeconds *prometheus.HistogramVec

	// Retrieval metrics
	RetrievalsTotal       *prometheus.CounterVec
	ChunksServedTotal     *prometheus.CounterVec
	RetrievalDuration     *prometheus.HistogramVec
	LedgerDivergenceTotal prometheus.Counter

	// Indexing metrics
	DocumentsIndexedTotal *prometheus.CounterVec
	ChunksIndexedTotal    prometheus.Counter
	IndexingDuration      *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics. A nil registry uses the
// default registerer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpay_payments_total",
				Help: "Total number of settled payments",
			},
			[]string{"network"},
		),
		PaymentsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpay_payments_failed_total",
				Help: "Total number of failed payment attempts",
			},
			[]string{"stage", "reason"},
		),
		PaymentAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpay_payment_amount_base_units_total",
				Help: "Total settled amount in token base units",
			},
			[]string{"network"},
		),
		SettlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragpay_settlement_duration_seconds",
				Help:    "Time spent settling payments through the facilitator",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"network"},
		),

		FacilitatorCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpay_facilitator_calls_total",
				Help: "Total facilitator API calls",
			},
			[]string{"operation", "outcome"},
		),
		FacilitatorCallSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragpay_facilitator_call_duration_seconds",
				Help:    "Duration of facilitator API calls",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),

		RetrievalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpay_retrievals_total",
				Help: "Total retrieval requests by outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		ChunksServedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpay_chunks_served_total",
				Help: "Total chunks served, split by whether they were newly paid or already owned",
			},
			[]string{"payment_state"},
		),
		RetrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragpay_retrieval_duration_seconds",
				Help:    "End to end retrieval request duration",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		LedgerDivergenceTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ragpay_ledger_divergence_total",
				Help: "Settled payments whose ledger record failed and needs reconciliation",
			},
		),

		DocumentsIndexedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpay_documents_indexed_total",
				Help: "Total documents indexed",
			},
			[]string{"doc_type"},
		),
		ChunksIndexedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ragpay_chunks_indexed_total",
				Help: "Total chunks written to the vector index",
			},
		),
		IndexingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragpay_indexing_duration_seconds",
				Help:    "Time to load, split, embed, and index a document",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"doc_type"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpay_rate_limit_hits_total",
				Help: "Requests rejected by rate limiting",
			},
			[]string{"limiter"},
		),
	}
}

// ObserveSettlement records one settled payment.
func (m *Metrics) ObserveSettlement(network string, amountBaseUnits uint64, took time.Duration) {
	m.PaymentsTotal.WithLabelValues(network).Inc()
	m.PaymentAmountTotal.WithLabelValues(network).Add(float64(amountBaseUnits))
	m.SettlementDuration.WithLabelValues(network).Observe(took.Seconds())
}
