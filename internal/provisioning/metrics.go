package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the per-run Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration    *prometheus.HistogramVec
	domainOutcomes   *prometheus.CounterVec
	resourcesCreated *prometheus.CounterVec
	teardownFailures prometheus.Counter
}

// NewMetrics creates collectors registered on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "certzner",
				Subsystem: "run",
				Name:      "stage_duration_seconds",
				Help:      "Duration of run stages in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
			},
			[]string{"stage"},
		),
		domainOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "certzner",
				Subsystem: "run",
				Name:      "domain_outcomes_total",
				Help:      "Domains processed by outcome",
			},
			[]string{"outcome"},
		),
		resourcesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "certzner",
				Subsystem: "run",
				Name:      "resources_created_total",
				Help:      "Ephemeral resources created by kind",
			},
			[]string{"kind"},
		),
		teardownFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "certzner",
				Subsystem: "teardown",
				Name:      "failures_total",
				Help:      "Teardown steps that failed",
			},
		),
	}
	m.registry.MustRegister(m.stageDuration, m.domainOutcomes, m.resourcesCreated, m.teardownFailures)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// DomainOutcome counts a domain outcome.
func (m *Metrics) DomainOutcome(status DomainStatus) {
	if m == nil {
		return
	}
	m.domainOutcomes.WithLabelValues(string(status)).Inc()
}

// ResourceCreated counts a created resource.
func (m *Metrics) ResourceCreated(kind ResourceKind) {
	if m == nil {
		return
	}
	m.resourcesCreated.WithLabelValues(string(kind)).Inc()
}

// TeardownFailures adds n failed teardown steps.
func (m *Metrics) TeardownFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.teardownFailures.Add(float64(n))
}

// Push sends the collected metrics to a Prometheus Pushgateway, grouped by run tag.
func (m *Metrics) Push(ctx context.Context, url, runTag string) error {
	if m == nil {
		return nil
	}
	err := push.New(url, "certzner").
		Gatherer(m.registry).
		Grouping("run", runTag).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
