package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eduloan"

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Workflow
	Transitions    *prometheus.CounterVec
	LoginAttempts  *prometheus.CounterVec
	PendingBacklog prometheus.Gauge

	// Housekeeping
	JobDuration   *prometheus.HistogramVec
	JobResults    *prometheus.CounterVec
	SessionsSwept prometheus.Counter
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "applications",
				Name:      "transitions_total",
				Help:      "Application status changes. from is empty for newly filed applications.",
			},
			[]string{"from", "to"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "login_attempts_total",
				Help:      "Login attempts by result.",
			},
			[]string{"result"}, // success|invalid_credentials|error
		),
		PendingBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "applications",
				Name:      "pending",
				Help:      "Applications waiting for review, refreshed by housekeeping.",
			},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "housekeeping",
				Name:      "duration_seconds",
				Help:      "Housekeeping job duration by job and result",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"job", "result"},
		),
		JobResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "housekeeping",
				Name:      "results_total",
				Help:      "Housekeeping job outcomes.",
			},
			[]string{"job", "result"}, // result=ok|failed
		),
		SessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "sessions_swept_total",
				Help:      "Expired sessions removed by housekeeping.",
			},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.Transitions, p.LoginAttempts, p.PendingBacklog,
		p.JobDuration, p.JobResults, p.SessionsSwept,
	)

	return p
}

func (p *Prom) RecordTransition(from, to string) {
	p.Transitions.WithLabelValues(from, to).Inc()
}

func (p *Prom) RecordLogin(result string) {
	p.LoginAttempts.WithLabelValues(result).Inc()
}

func (p *Prom) SetPendingBacklog(n int) {
	p.PendingBacklog.Set(float64(n))
}

func (p *Prom) AddSessionsSwept(n int) {
	p.SessionsSwept.Add(float64(n))
}

func (p *Prom) ObserveJob(job string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	p.JobDuration.WithLabelValues(job, result).Observe(d.Seconds())
	p.JobResults.WithLabelValues(job, result).Inc()
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
