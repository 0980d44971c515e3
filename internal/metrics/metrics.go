package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deusflow/sandboxbot/internal/news"
)

type Metrics struct {
	Registry *prometheus.Registry

	FetchRequests   *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	SurfaceRecords  *prometheus.CounterVec
	SurfaceFailures *prometheus.CounterVec
	FilterDropped   *prometheus.CounterVec
	Searches        *prometheus.CounterVec
	SearchDuration  *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	Translations    *prometheus.CounterVec
	MessagesSent    *prometheus.CounterVec
}

// Global is the process-wide registry served on /metrics.
var Global = New()

// New builds a fresh set of collectors on their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxbot_fetch_requests_total",
			Help: "Outbound page fetches by host and outcome.",
		}, []string{"host", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sandboxbot_fetch_duration_seconds",
			Help:    "Outbound fetch latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 9),
		}, []string{"host"}),
		SurfaceRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxbot_surface_records_total",
			Help: "Raw records extracted per surface.",
		}, []string{"surface"}),
		SurfaceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxbot_surface_failures_total",
			Help: "Surfaces that yielded nothing because fetch or parse failed.",
		}, []string{"surface", "stage"}),
		FilterDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxbot_filter_dropped_total",
			Help: "Records dropped by the normalizer, by step.",
		}, []string{"step"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxbot_searches_total",
			Help: "Searches by mode and outcome.",
		}, []string{"mode", "outcome"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sandboxbot_search_duration_seconds",
			Help:    "End-to-end search latency, cache hits included.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"mode"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxbot_cache_lookups_total",
			Help: "Result cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		Translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxbot_query_steps_total",
			Help: "Query preparation strategy attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandboxbot_telegram_messages_total",
			Help: "Telegram sendMessage calls by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FetchRequests, m.FetchDuration, m.SurfaceRecords, m.SurfaceFailures,
		m.FilterDropped, m.Searches, m.SearchDuration, m.CacheLookups,
		m.Translations, m.MessagesSent,
	)
	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFetch(host, outcome string, elapsed time.Duration) {
	m.FetchRequests.WithLabelValues(host, outcome).Inc()
	m.FetchDuration.WithLabelValues(host).Observe(elapsed.Seconds())
}

// RecordFilterStats adds per-step drop counts from one filter run.
func (m *Metrics) RecordFilterStats(st news.Stats) {
	steps := map[string]int{
		"self_ref":     st.SelfRef,
		"bad_url":      st.BadURL,
		"wrong_region": st.WrongRegion,
		"not_article":  st.NotArticle,
		"short_title":  st.ShortTitle,
		"duplicate":    st.Duplicate,
		"truncated":    st.Truncated,
	}
	for step, n := range steps {
		if n > 0 {
			m.FilterDropped.WithLabelValues(step).Add(float64(n))
		}
	}
}

func (m *Metrics) ObserveSearch(mode news.Mode, outcome string, elapsed time.Duration) {
	m.Searches.WithLabelValues(string(mode), outcome).Inc()
	m.SearchDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}
