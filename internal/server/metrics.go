// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/ragserve-go/internal/rag"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// questionsTotal counts answered questions, partitioned by mode
	// ("live" or "mock") and outcome ("ok" or "error").
	questionsTotal *prometheus.CounterVec

	// answerDurationSeconds records the pipeline's reported processing time.
	answerDurationSeconds prometheus.Histogram

	// contextDocuments records how many context documents each question
	// retrieved.
	contextDocuments prometheus.Histogram

	// tokensUsed accumulates provider-reported token usage.
	tokensUsed prometheus.Counter

	// documentsAdded counts documents inserted through the API.
	documentsAdded prometheus.Counter
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragserve",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragserve",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),

		questionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragserve",
			Subsystem: "rag",
			Name:      "questions_total",
			Help:      "Questions answered by the pipeline, partitioned by generation mode and outcome.",
		}, []string{"mode", "outcome"}),

		answerDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragserve",
			Subsystem: "rag",
			Name:      "answer_duration_seconds",
			Help:      "End-to-end question answering time as reported in the Answer.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		contextDocuments: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragserve",
			Subsystem: "rag",
			Name:      "context_documents",
			Help:      "Number of context documents retrieved per question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),

		tokensUsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragserve",
			Subsystem: "rag",
			Name:      "tokens_used_total",
			Help:      "Cumulative provider-reported token usage for live generations.",
		}),

		documentsAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragserve",
			Subsystem: "store",
			Name:      "documents_added_total",
			Help:      "Documents inserted through the API.",
		}),
	}
}

// instrument wraps h so each request is counted and timed under the given
// handler name.
func (m *serverMetrics) instrument(name string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		h.ServeHTTP(rw, r)

		m.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}

// observeAnswer records the pipeline-level metrics for one answered question.
func (m *serverMetrics) observeAnswer(ans rag.Answer) {
	mode := "live"
	if ans.ModelUsed == "mock" {
		mode = "mock"
	}
	outcome := "ok"
	if len(ans.Answer) >= 6 && ans.Answer[:6] == "Error:" {
		outcome = "error"
	}

	m.questionsTotal.WithLabelValues(mode, outcome).Inc()
	m.answerDurationSeconds.Observe(ans.ProcessingTime)
	m.contextDocuments.Observe(float64(ans.ContextDocumentsFound))
	if ans.TokensUsed > 0 {
		m.tokensUsed.Add(float64(ans.TokensUsed))
	}
}
