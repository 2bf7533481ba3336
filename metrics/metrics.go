// Package metrics holds the server's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "officiating"

type Metrics struct {
	registrations  *prometheus.CounterVec
	bulkBatches    *prometheus.CounterVec
	authorityCalls *prometheus.CounterVec
	feedChanges    *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registrant submissions by outcome.",
		}, []string{"outcome"}),
		bulkBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_batches_total",
			Help:      "Bulk registration batches by outcome.",
		}, []string{"outcome"}),
		authorityCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authority_calls_total",
			Help:      "Bracket authority calls by operation and error kind.",
		}, []string{"op", "kind"}),
		feedChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_changes_total",
			Help:      "Change notifications relayed, by table.",
		}, []string{"table"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
}

// RegisterConnections exposes the live presence connection count.
func (m *Metrics) RegisterConnections(reg prometheus.Registerer, count func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "presence_connections",
		Help:      "Judge websocket connections currently joined to a room.",
	}, func() float64 { return float64(count()) }))
}

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BulkBatch(outcome string) {
	if m == nil {
		return
	}
	m.bulkBatches.WithLabelValues(outcome).Inc()
}

// AuthorityCall records one authority round trip; kind is "ok" on success.
func (m *Metrics) AuthorityCall(op string, err error) {
	if m == nil {
		return
	}
	kind := "ok"
	if err != nil {
		kind = string(authority.KindTransient)
		if ae, ok := authority.AsError(err); ok {
			kind = string(ae.Kind)
		}
	}
	m.authorityCalls.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) FeedChange(table string) {
	if m == nil {
		return
	}
	if table == "" {
		table = "resync"
	}
	m.feedChanges.WithLabelValues(table).Inc()
}

// Middleware observes request latency labelled with the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
