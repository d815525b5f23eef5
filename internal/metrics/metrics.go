// Package metrics содержит метрики Prometheus сервиса: HTTP-запросы,
// сверку платежей, проверки сессий и отказы в доступе.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pivot_calculator"

// Metrics содержит все метрики сервиса.
type Metrics struct {
	httpDuration    *prometheus.HistogramVec
	reconciliations *prometheus.CounterVec
	reconcileErrors *prometheus.CounterVec
	sessionsIssued  prometheus.Counter
	sessionRejects  *prometheus.CounterVec
	accessDenied    *prometheus.CounterVec
}

// New создает метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "reconciliations_total",
				Help:      "Payment reconciliations by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		reconcileErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "reconciliation_errors_total",
				Help:      "Rejected or failed payment reconciliations",
			},
			[]string{"source", "reason"},
		),
		sessionsIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "issued_total",
				Help:      "Session tokens issued",
			},
		),
		sessionRejects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "rejected_total",
				Help:      "Session validations that failed",
			},
			[]string{"reason"},
		),
		accessDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "access",
				Name:      "denied_total",
				Help:      "Requests denied by the access middleware",
			},
			[]string{"reason"},
		),
	}
	reg.MustRegister(
		m.httpDuration,
		m.reconciliations,
		m.reconcileErrors,
		m.sessionsIssued,
		m.sessionRejects,
		m.accessDenied,
	)
	return m
}

func (m *Metrics) Reconciled(source, outcome string) {
	m.reconciliations.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ReconcileFailed(source, reason string) {
	m.reconcileErrors.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) SessionIssued() {
	m.sessionsIssued.Inc()
}

func (m *Metrics) SessionRejected(reason string) {
	m.sessionRejects.WithLabelValues(reason).Inc()
}

func (m *Metrics) AccessDenied(reason string) {
	m.accessDenied.WithLabelValues(reason).Inc()
}

// Middleware измеряет длительность запросов. Маршрут берется из шаблона chi,
// чтобы идентификаторы в пути не раздували число серий.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
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
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
