package binding

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 违规分流的去向
const (
	channelBinding = "binding"
	channelGeneric = "generic"
)

// Metrics 绑定层的 Prometheus 指标
type Metrics struct {
	violations     *prometheus.CounterVec
	resolveErrors  prometheus.Counter
	failedRequests prometheus.Counter
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// NewMetrics 在 reg 上注册指标；同一个 Registerer 只能注册一次
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mvcbinding_violations_total",
				Help: "The total number of constraint violations by routing channel",
			},
			[]string{"channel"},
		),
		resolveErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mvcbinding_resolve_errors_total",
				Help: "The total number of violations whose metadata could not be resolved",
			},
		),
		failedRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mvcbinding_failed_requests_total",
				Help: "The total number of requests finished with a failed binding result",
			},
		),
	}
}

// DefaultMetrics 注册在 prometheus.DefaultRegisterer 上的指标
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}
