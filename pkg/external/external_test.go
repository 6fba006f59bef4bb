package external

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/metrics"
	"github.com/catherinevee/prodflow/pkg/planner"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestMetricsCurrentValuesRequest_Validate_RejectsInvertedWindow(t *testing.T) {
	req := MetricsCurrentValuesRequest{ValidFrom: day(5), ExpiresAt: day(1)}
	err := req.Validate(day(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid_from")
}

func TestMetricsCurrentValuesRequest_Validate_RejectsFutureValidFrom(t *testing.T) {
	req := MetricsCurrentValuesRequest{ValidFrom: day(10), ExpiresAt: day(10)}
	err := req.Validate(day(5))
	require.Error(t, err)
}

func TestMetricsCurrentValuesRequest_Validate_AllowsEqualValidFromExpiresAt(t *testing.T) {
	req := MetricsCurrentValuesRequest{ValidFrom: day(1), ExpiresAt: day(1)}
	require.NoError(t, req.Validate(day(5)))
}

func TestMetricsCurrentValuesRequest_ToRequest_ScopesSingleTeamAndInterval(t *testing.T) {
	req := MetricsCurrentValuesRequest{
		TeamID:    7,
		Metrics:   []string{"pr-review-time"},
		ValidFrom: day(0),
		ExpiresAt: day(30),
	}
	members := []account.UserNodeID{"u1", "u2"}

	pr := req.ToRequest(members)
	require.Equal(t, []string{"pr-review-time"}, pr.Metrics)
	require.Equal(t, []planner.Interval{{From: day(0), To: day(30)}}, pr.Intervals)
	require.Equal(t, members, pr.Teams[7])
}

func TestMetricsCurrentValuesRequest_FromResult_KeepsRequestOrderAndTeam(t *testing.T) {
	req := MetricsCurrentValuesRequest{
		TeamID:    7,
		Metrics:   []string{"pr-review-time", "pr-lead-time"},
		ValidFrom: day(0),
		ExpiresAt: day(30),
	}
	iv := planner.Interval{From: day(0), To: day(30)}
	result := planner.Result{
		iv: {
			"pr-review-time": {7: {Exists: true, Value: 3600}},
			// pr-lead-time deliberately absent from the planner result
		},
	}

	resp := req.FromResult(result)
	require.Len(t, resp.Metrics, 2)
	assert.Equal(t, "pr-review-time", resp.Metrics[0].Metric)
	assert.Equal(t, metrics.Value{Exists: true, Value: 3600}, resp.Metrics[0].Values[7])
	assert.Equal(t, "pr-lead-time", resp.Metrics[1].Metric)
	assert.Empty(t, resp.Metrics[1].Values)
}
