package server

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/pkg/exec"
)

const statusSuccess = "success"

// Metrics holds the Prometheus collectors for one server. It implements
// session.Observer.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal       *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
	authenticationTotal *prometheus.CounterVec
	invalidationsTotal  prometheus.Counter
	preparationsTotal   *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zligate_commands_total",
				Help: "Total number of downstream commands executed",
			},
			[]string{"command", "status"},
		),
		commandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zligate_command_duration_seconds",
				Help:    "Duration of downstream commands in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"command"},
		),
		authenticationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zligate_session_authentications_total",
				Help: "Total number of zli service-account login attempts",
			},
			[]string{"status"},
		),
		invalidationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zligate_session_invalidations_total",
				Help: "Total number of session invalidations after a failed command",
			},
		),
		preparationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zligate_environment_preparations_total",
				Help: "Total number of ssh configuration generations",
			},
			[]string{"status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zligate_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LoginFinished records a login attempt.
func (m *Metrics) LoginFinished(err error) {
	m.authenticationTotal.WithLabelValues(status(err)).Inc()
}

// EnvironmentPrepared records a ssh configuration generation.
func (m *Metrics) EnvironmentPrepared(_ bool, err error) {
	m.preparationsTotal.WithLabelValues(status(err)).Inc()
}

// Invalidated records a session invalidation.
func (m *Metrics) Invalidated() {
	m.invalidationsTotal.Inc()
}

// Instrument wraps next so every command it runs is counted and timed.
func (m *Metrics) Instrument(next exec.CommandExecutor) exec.CommandExecutor {
	return &instrumentedExecutor{next: next, metrics: m}
}

type instrumentedExecutor struct {
	next    exec.CommandExecutor
	metrics *Metrics
}

func (e *instrumentedExecutor) Run(ctx context.Context, cmd exec.Command) (string, error) {
	start := time.Now()
	out, err := e.next.Run(ctx, cmd)

	label := commandLabel(cmd)
	e.metrics.commandDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	e.metrics.commandsTotal.WithLabelValues(label, status(err)).Inc()
	return out, err
}

// commandLabel keeps label cardinality bounded: the binary name plus its
// subcommand, never user-supplied arguments.
func commandLabel(cmd exec.Command) string {
	label := filepath.Base(cmd.Name)
	if len(cmd.Args) > 0 && !strings.HasPrefix(cmd.Args[0], "-") {
		label += " " + cmd.Args[0]
	}
	return label
}

func status(err error) string {
	if err == nil {
		return statusSuccess
	}
	return dserrors.KindOf(err).String()
}
