package metrics

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics registry.
type Config struct {
	Enabled     bool
	ServiceName string
	Environment string
}

// Metrics exposes lifecycle-engine instruments.
type Metrics struct {
	admissions       *prometheus.CounterVec
	duplicates       prometheus.Counter
	transitions      *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	settledAmount    *prometheus.CounterVec
	stuckOrders      *prometheus.GaugeVec
	rateLimitDenied  prometheus.Counter
	notifyFailures   prometheus.Counter
	notifyDropped    prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

type Params struct {
	fx.In

	Cfg        Config
	Log        *zap.Logger
	Registerer prometheus.Registerer `optional:"true"`
}

func New(p Params) (*Metrics, error) {
	registerer := p.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := NewWithRegisterer(registerer, p.Cfg)
	if p.Log != nil {
		p.Log.Info("metrics initialized", zap.Bool("enabled", p.Cfg.Enabled))
	}
	return m, nil
}

// NewWithRegisterer builds instruments against the given registerer. Collectors that are
// already registered are reused.
func NewWithRegisterer(registerer prometheus.Registerer, cfg Config) *Metrics {
	constLabels := prometheus.Labels{}
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		constLabels["service"] = name
	}
	if env := strings.TrimSpace(cfg.Environment); env != "" {
		constLabels["env"] = env
	}

	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dreamline_admissions_total",
			Help:        "Create-order admission decisions by mode and result.",
			ConstLabels: constLabels,
		}, []string{"mode", "result"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dreamline_duplicate_requests_total",
			Help:        "Create-order submissions rejected as duplicates.",
			ConstLabels: constLabels,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dreamline_order_transitions_total",
			Help:        "Order status transitions by edge and result.",
			ConstLabels: constLabels,
		}, []string{"from", "to", "result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dreamline_settlements_total",
			Help:        "Order settlements by outcome (applied or replayed).",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		settledAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dreamline_settled_amount_minor_total",
			Help:        "Settled amounts in minor units, split by party.",
			ConstLabels: constLabels,
		}, []string{"currency", "party"}),
		stuckOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "dreamline_stuck_orders",
			Help:        "Orders older than the stuck threshold, by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		rateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dreamline_create_rate_limited_total",
			Help:        "Create-order requests rejected by the submission throttle.",
			ConstLabels: constLabels,
		}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dreamline_notification_failures_total",
			Help:        "Best-effort notifications that failed to publish.",
			ConstLabels: constLabels,
		}),
		notifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dreamline_notifications_dropped_total",
			Help:        "Notifications dropped because the dispatch queue was full.",
			ConstLabels: constLabels,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dreamline_http_requests_total",
			Help:        "HTTP requests by route and status code.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "dreamline_http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.admissions = register(registerer, m.admissions)
	m.duplicates = register(registerer, m.duplicates)
	m.transitions = register(registerer, m.transitions)
	m.settlements = register(registerer, m.settlements)
	m.settledAmount = register(registerer, m.settledAmount)
	m.stuckOrders = register(registerer, m.stuckOrders)
	m.rateLimitDenied = register(registerer, m.rateLimitDenied)
	m.notifyFailures = register(registerer, m.notifyFailures)
	m.notifyDropped = register(registerer, m.notifyDropped)
	m.httpRequests = register(registerer, m.httpRequests)
	m.httpDuration = register(registerer, m.httpDuration)
	return m
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return collector
}

func (m *Metrics) RecordAdmission(mode, result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(normalizeLabel(mode), normalizeLabel(result)).Inc()
}

func (m *Metrics) RecordDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Metrics) RecordTransition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(result)).Inc()
}

// RecordSettlement counts a settlement; amounts are only added when applied.
func (m *Metrics) RecordSettlement(outcome, currency string, commission, earning int64) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
	if outcome != "applied" {
		return
	}
	currency = normalizeLabel(currency)
	m.settledAmount.WithLabelValues(currency, "platform").Add(float64(commission))
	m.settledAmount.WithLabelValues(currency, "interpreter").Add(float64(earning))
}

func (m *Metrics) SetStuckOrders(status string, count int64) {
	if m == nil {
		return
	}
	m.stuckOrders.WithLabelValues(normalizeLabel(status)).Set(float64(count))
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitDenied.Inc()
}

func (m *Metrics) RecordNotificationFailure() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

func (m *Metrics) RecordNotificationDropped() {
	if m == nil {
		return
	}
	m.notifyDropped.Inc()
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, statusCode(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func statusCode(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
