package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. Each instance owns
// its registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec

	reviews *prometheus.CounterVec

	sink *CloudWatchSink
}

// NewMetrics creates collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by outcome",
		}, []string{"command", "status"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command handling time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries handled, by outcome",
		}, []string{"query", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query handling time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_reviews_total",
			Help:      "Moderation review requests, by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.commands,
		m.commandDuration,
		m.queries,
		m.queryDuration,
		m.reviews,
	)
	return m
}

// ExportTo mirrors every observation into sink. Call before serving traffic.
func (m *Metrics) ExportTo(sink *CloudWatchSink) *Metrics {
	m.sink = sink
	return m
}

// Flush pushes mirrored observations to CloudWatch. Without a sink it does
// nothing.
func (m *Metrics) Flush(ctx context.Context) error {
	if m.sink == nil {
		return nil
	}
	return m.sink.Flush(ctx)
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
	if m.sink != nil {
		code := strconv.Itoa(status)
		m.sink.record("HTTPRequests", 1, types.StandardUnitCount, "Method", method, "Route", route, "Status", code)
		m.sink.record("HTTPLatency", milliseconds(took), types.StandardUnitMilliseconds, "Method", method, "Route", route)
	}
}

func (m *Metrics) ObserveCommand(name string, took time.Duration, err error) {
	m.commands.WithLabelValues(name, status(err)).Inc()
	m.commandDuration.WithLabelValues(name).Observe(took.Seconds())
	if m.sink != nil {
		m.sink.record("CommandCount", 1, types.StandardUnitCount, "CommandName", name, "Status", status(err))
		m.sink.record("CommandExecution", milliseconds(took), types.StandardUnitMilliseconds, "CommandName", name)
	}
}

func (m *Metrics) ObserveQuery(name string, took time.Duration, err error) {
	m.queries.WithLabelValues(name, status(err)).Inc()
	m.queryDuration.WithLabelValues(name).Observe(took.Seconds())
	if m.sink != nil {
		m.sink.record("QueryCount", 1, types.StandardUnitCount, "QueryName", name, "Status", status(err))
		m.sink.record("QueryExecution", milliseconds(took), types.StandardUnitMilliseconds, "QueryName", name)
	}
}

func (m *Metrics) ObserveReview(outcome string) {
	m.reviews.WithLabelValues(outcome).Inc()
	if m.sink != nil {
		m.sink.record("ModerationReviews", 1, types.StandardUnitCount, "Outcome", outcome)
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
