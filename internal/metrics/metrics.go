package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sugarscan"

// Metrics holds the Prometheus collectors for catalog and account activity.
type Metrics struct {
	registry *prometheus.Registry

	ProductWrites  *prometheus.CounterVec
	UserWrites     *prometheus.CounterVec
	Rejections     *prometheus.CounterVec
	LastAdminBlock prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry with the Go runtime and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ProductWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_writes_total",
			Help:      "Products created, updated or deleted, by operation and resulting sugar level.",
		}, []string{"operation", "sugar_level"}),
		UserWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_writes_total",
			Help:      "Users created, updated or deleted, by operation.",
		}, []string{"operation"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_writes_total",
			Help:      "Writes rejected by validation or conflicts, by entity and reason.",
		}, []string{"entity", "reason"}),
		LastAdminBlock: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "last_admin_blocked_total",
			Help:      "Demotions or deletions refused because no admin would remain.",
		}),
	}
}

// ProductWritten counts a successful product write.
func (m *Metrics) ProductWritten(operation, sugarLevel string) {
	m.ProductWrites.WithLabelValues(operation, sugarLevel).Inc()
}

// UserWritten counts a successful user write.
func (m *Metrics) UserWritten(operation string) {
	m.UserWrites.WithLabelValues(operation).Inc()
}

// Rejected counts a refused write.
func (m *Metrics) Rejected(entity, reason string) {
	m.Rejections.WithLabelValues(entity, reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
