// Package observe is the sink for errors the store swallows into a local fallback.
package observe

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Sink receives recoverable failures and notable store events.
type Sink interface {
	Report(ctx context.Context, op string, err error)
	Observe(event string)
}

// Reporter logs reported failures and counts them on a Prometheus registry.
type Reporter struct {
	logger   zerolog.Logger
	failures *prometheus.CounterVec
	events   *prometheus.CounterVec
}

// NewReporter registers the sink counters on reg. A nil registerer disables metrics.
func NewReporter(logger zerolog.Logger, reg prometheus.Registerer) *Reporter {
	r := &Reporter{logger: logger}
	if reg == nil {
		return r
	}
	r.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkstore",
		Name:      "fallback_total",
		Help:      "Remote failures absorbed by a local fallback.",
	}, []string{"op"})
	r.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkstore",
		Name:      "store_events_total",
		Help:      "Store events by kind.",
	}, []string{"event"})
	reg.MustRegister(r.failures, r.events)
	return r
}

func (r *Reporter) Report(_ context.Context, op string, err error) {
	if r == nil {
		return
	}
	r.logger.Warn().Err(err).Str("op", op).Msg("remote failure, local fallback applied")
	if r.failures != nil {
		r.failures.WithLabelValues(normalizeLabel(op)).Inc()
	}
}

func (r *Reporter) Observe(event string) {
	if r == nil || r.events == nil {
		return
	}
	r.events.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "unknown"
	}
	return v
}

// Nop discards everything.
type Nop struct{}

func (Nop) Report(context.Context, string, error) {}
func (Nop) Observe(string) {}
