package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_queries_total",
			Help: "Total number of RAG queries",
		},
		[]string{"country", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "rag_query_duration_seconds",
			Help: "RAG query duration in seconds",
		},
		[]string{"country"},
	)

	RetrievedChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rag_retrieved_chunks",
			Help: "Number of chunks retrieved in last query",
		},
	)
)

var retrievalRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Called once from
// main.
func RegisterRetrievalMetrics() {
	if retrievalRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(RetrievedChunks)
	retrievalRegistered = true
}
