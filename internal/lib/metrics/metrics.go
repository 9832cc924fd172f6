// Package metrics метрики Prometheus: HTTP-запросы и события членства.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "union"

// Metrics набор счетчиков сервиса.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	registrations prometheus.Counter
	checkouts     *prometheus.CounterVec
	payments      *prometheus.CounterVec
	lapsed        prometheus.Counter
	notifications *prometheus.CounterVec
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "code"}),
		registrations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Members registered.",
		}),
		checkouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Payment orders created, by plan.",
		}, []string{"plan"}),
		payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment orders settled, by final status.",
		}, []string{"status"}),
		lapsed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memberships_lapsed_total",
			Help:      "Memberships moved to inactive by the sweep.",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications delivered, by kind and result.",
		}, []string{"kind", "result"}),
	}
}

// Middleware считает запросы и их длительность по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		code := strconv.Itoa(status)
		m.httpRequests.WithLabelValues(r.Method, path, code).Inc()
		m.httpDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}

// Registered отмечает нового участника.
func (m *Metrics) Registered() { m.registrations.Inc() }

// CheckoutCreated отмечает созданный заказ.
func (m *Metrics) CheckoutCreated(plan string) { m.checkouts.WithLabelValues(plan).Inc() }

// PaymentSettled отмечает платеж в финальном статусе.
func (m *Metrics) PaymentSettled(status string) { m.payments.WithLabelValues(status).Inc() }

// Lapsed отмечает n просроченных членств.
func (m *Metrics) Lapsed(n int) { m.lapsed.Add(float64(n)) }

// Notified отмечает результат доставки уведомления.
func (m *Metrics) Notified(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}
