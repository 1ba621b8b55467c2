package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dukex/buildflow/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsTransitions(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	m.ObserveTransition("START_STAGE", metrics.OutcomeSuccess, 10*time.Millisecond)
	m.ObserveTransition("START_STAGE", metrics.OutcomeRejected, time.Millisecond)
	m.RuleRejected("sequential_stage")
	m.HandlerRan("timeline", true)

	expected := `
# HELP buildflow_workflow_transitions_total Workflow transitions requested, by action type and outcome.
# TYPE buildflow_workflow_transitions_total counter
buildflow_workflow_transitions_total{action="START_STAGE",outcome="rejected"} 1
buildflow_workflow_transitions_total{action="START_STAGE",outcome="success"} 1
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "buildflow_workflow_transitions_total")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry, "buildflow_rules_rejections_total", "buildflow_events_handler_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
