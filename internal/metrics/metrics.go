// Package metrics exposes Prometheus counters and histograms for rule
// operations. Each Collector owns a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records rule engine activity.
//
// Metrics (with the configured namespace):
//   - rules_created_total
//   - rules_combined_total
//   - rules_deleted_total
//   - evaluations_total{result="true|false|error"}
//   - evaluation_duration_seconds
//   - errors_total{operation, kind}
//   - http_requests_total{route, code}
type Collector struct {
	registry *prometheus.Registry

	rulesCreated       prometheus.Counter
	rulesCombined      prometheus.Counter
	rulesDeleted       prometheus.Counter
	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	errors             *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

// NewCollector registers all metrics under namespace on a fresh registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "rulekit"
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		rulesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_created_total",
			Help:      "Total number of rules created from rule strings",
		}),
		rulesCombined: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_combined_total",
			Help:      "Total number of combined rules stored",
		}),
		rulesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_deleted_total",
			Help:      "Total number of rules deleted",
		}),
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of rule evaluations by result",
		}, []string{"result"}),
		evaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time taken to evaluate a rule against one record",
			// 1µs to ~16ms
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15),
		}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of failed operations by error kind",
		}, []string{"operation", "kind"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests by route and status code",
		}, []string{"route", "code"}),
	}
}

func (c *Collector) RuleCreated()  { c.rulesCreated.Inc() }
func (c *Collector) RuleCombined() { c.rulesCombined.Inc() }
func (c *Collector) RuleDeleted()  { c.rulesDeleted.Inc() }

// Evaluation records one evaluation. err wins over result.
func (c *Collector) Evaluation(result bool, err error, d time.Duration) {
	c.evaluationDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		c.evaluations.WithLabelValues("error").Inc()
	case result:
		c.evaluations.WithLabelValues("true").Inc()
	default:
		c.evaluations.WithLabelValues("false").Inc()
	}
}

// Error counts a failed operation.
func (c *Collector) Error(operation, kind string) {
	c.errors.WithLabelValues(operation, kind).Inc()
}

// HTTPRequest counts a served request.
func (c *Collector) HTTPRequest(route string, code int) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry returns the private registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
