package api

import (
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmcleod/keyguard/events"
	"github.com/jmcleod/keyguard/keymanager"
)

// metricsCollector tracks request and operation counters plus the
// active-session gauge. Each collector owns its own registry so multiple
// instances can coexist in one process.
type metricsCollector struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	operations     *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

func newMetricsCollector() *metricsCollector {
	m := &metricsCollector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyguard",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyguard",
			Name:      "operations_total",
			Help:      "Key manager operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "keyguard",
			Name:      "active_sessions",
			Help:      "Number of providers with a live unlock session.",
		}),
	}
	m.registry.MustRegister(m.requests, m.operations, m.activeSessions)
	return m
}

// observe subscribes to manager events. Session start/end pairs drive the
// gauge; operation events and their error shadows drive the counters.
func (m *metricsCollector) observe(mgr *keymanager.Manager) {
	mgr.On(keymanager.EventSessionStarted, func(events.Event) { m.activeSessions.Inc() })
	mgr.On(keymanager.EventSessionEnded, func(events.Event) { m.activeSessions.Dec() })
	mgr.On(keymanager.EventSessionExpired, func(events.Event) { m.activeSessions.Dec() })

	ops := map[string]string{
		keymanager.EventEnrolled:        "enroll",
		keymanager.EventSecretStored:    "store",
		keymanager.EventSecretRetrieved: "retrieve",
		keymanager.EventSecretTested:    "test",
		keymanager.EventRevoked:         "revoke",
	}
	for event, op := range ops {
		op := op
		mgr.On(event, func(events.Event) {
			m.operations.WithLabelValues(op, "success").Inc()
		})
	}

	errOps := map[string]string{
		keymanager.EventEnrollError:   "enroll",
		keymanager.EventStoreError:    "store",
		keymanager.EventRetrieveError: "retrieve",
		keymanager.EventTestError:     "test",
		keymanager.EventRevokeError:   "revoke",
	}
	for event, op := range errOps {
		op := op
		mgr.On(event, func(events.Event) {
			m.operations.WithLabelValues(op, "error").Inc()
		})
	}
}

// instrument is chi middleware counting every request.
func (m *metricsCollector) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		m.requests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}

func (m *metricsCollector) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
