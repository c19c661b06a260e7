package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "factorymind_documents_ingested_total",
			Help: "Total documents successfully ingested",
		},
	)

	DocumentsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "factorymind_documents_deleted_total",
			Help: "Total documents deleted",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "factorymind_chunks_indexed_total",
			Help: "Total chunks written to the vector index",
		},
	)

	IndexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "factorymind_index_entries",
			Help: "Current number of entries in the vector index",
		},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "factorymind_query_duration_seconds",
			Help:    "Question answering duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factorymind_queries_total",
			Help: "Total questions answered",
		},
		[]string{"status"},
	)

	ReportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "factorymind_report_duration_seconds",
			Help:    "Report generation duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	ReportsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factorymind_reports_generated_total",
			Help: "Total reports generated",
		},
		[]string{"status"},
	)

	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factorymind_provider_requests_total",
			Help: "Outbound embedding and completion requests",
		},
		[]string{"provider", "status"},
	)
)

func Init() {
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(DocumentsDeleted)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(IndexEntries)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(ReportDuration)
	prometheus.MustRegister(ReportsGenerated)
	prometheus.MustRegister(ProviderRequests)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
