package provisioning

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveStage(StageIssuing, time.Second)
		m.DomainOutcome(DomainPublished)
		m.ResourceCreated(KindInstance)
		m.TeardownFailures(2)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Push(context.Background(), "http://unused", "run-test"))
}

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()
	m := NewMetrics()

	m.DomainOutcome(DomainPublished)
	m.DomainOutcome(DomainPublished)
	m.DomainOutcome(DomainFailed)
	m.ResourceCreated(KindNetwork)
	m.TeardownFailures(0)
	m.TeardownFailures(3)

	assert.InDelta(t, 2, testutil.ToFloat64(m.domainOutcomes.WithLabelValues("published")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.domainOutcomes.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.resourcesCreated.WithLabelValues("network")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.teardownFailures), 0)
}

func TestMetrics_StageDurations(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	machine := NewMachine(m)

	require.NoError(t, machine.Transition(StageProvisioning))
	require.NoError(t, machine.Transition(StageTearingDown))

	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration))
}

func TestMetrics_Push(t *testing.T) {
	t.Parallel()
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics()
	m.DomainOutcome(DomainPublished)

	require.NoError(t, m.Push(context.Background(), srv.URL, "run-test"))
	assert.Equal(t, "/metrics/job/certzner/run/run-test", path)
	assert.NotEmpty(t, body)
}

func TestMetrics_PushFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewMetrics().Push(context.Background(), srv.URL, "run-test")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to push metrics to "+srv.URL))
}
