// Package metrics 提供 Prometheus 指标集合，覆盖 HTTP 层与挂牌/点价/合同业务流
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 挂牌发布计数
	ListingsPublished prometheus.Counter
	// 摘牌计数
	ListingsDelisted prometheus.Counter
	// 点价单接受计数
	QuotesAccepted prometheus.Counter
	// 点价单拒绝计数（校验失败或非交易时段）
	QuotesRejected prometheus.Counter
	// 追加保证金通知计数
	MarginCallsRaised prometheus.Counter
	// 保证金/货款缴纳计数
	MarginPaymentsTotal prometheus.Counter
	// 交收完成计数
	DeliveriesCompleted prometheus.Counter
}

// New 创建指标实例并注册到独立 registry
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ListingsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "listings_published_total",
			Help:      "Total listings published",
		}),
		ListingsDelisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "listings_delisted_total",
			Help:      "Total listings delisted",
		}),
		QuotesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "quotes_accepted_total",
			Help:      "Total point-pricing quotes accepted",
		}),
		QuotesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "quotes_rejected_total",
			Help:      "Total point-pricing quotes rejected",
		}),
		MarginCallsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "margin_calls_raised_total",
			Help:      "Total margin calls raised by the monitor",
		}),
		MarginPaymentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "margin_payments_total",
			Help:      "Total margin and balance payments recorded",
		}),
		DeliveriesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basistrading",
			Subsystem: serviceName,
			Name:      "deliveries_completed_total",
			Help:      "Total contract deliveries confirmed",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ListingsPublished,
		m.ListingsDelisted,
		m.QuotesAccepted,
		m.QuotesRejected,
		m.MarginCallsRaised,
		m.MarginPaymentsTotal,
		m.DeliveriesCompleted,
	)
	return m
}

// Handler 暴露 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
