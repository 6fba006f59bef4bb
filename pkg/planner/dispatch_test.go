package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
)

type stubMiner struct {
	result FamilyResult
	err    error
}

func (s stubMiner) Mine(ctx context.Context, req FamilyRequest) (FamilyResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestPlanner_Plan_DispatchesEachFamilyAndReshapes(t *testing.T) {
	prMiner := stubMiner{result: FamilyResult{
		1: {ivl(0): {"pr-wip-time": {Exists: true, Value: 3600}}},
	}}
	releaseMiner := stubMiner{result: FamilyResult{
		1: {ivl(0): {"release-count": {Exists: true, Value: 2}}},
	}}

	p := New(testRegistries(), prMiner, releaseMiner, nil)
	reqs := []Request{
		{
			Metrics:   []string{"pr-wip-time", "release-count"},
			Intervals: []Interval{ivl(0)},
			Teams:     map[int64][]account.UserNodeID{1: {"alice"}},
		},
	}

	result, err := p.Plan(context.Background(), reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := result[ivl(0)]["pr-wip-time"][1]
	if !v.Exists || v.Value != 3600 {
		t.Fatalf("expected pr-wip-time reshaped into the result, got %+v", v)
	}
	v2 := result[ivl(0)]["release-count"][1]
	if !v2.Exists || v2.Value != 2 {
		t.Fatalf("expected release-count reshaped into the result, got %+v", v2)
	}
}

func TestPlanner_Plan_UnknownMetricFailsBeforeDispatch(t *testing.T) {
	p := New(testRegistries(), stubMiner{}, stubMiner{}, stubMiner{})
	reqs := []Request{
		{Metrics: []string{"not-a-real-metric"}, Intervals: []Interval{ivl(0)}, Teams: map[int64][]account.UserNodeID{1: {"u1"}}},
	}
	_, err := p.Plan(context.Background(), reqs)
	if err == nil {
		t.Fatal("expected an error")
	}
	if ae, ok := apierr.As(err); !ok || ae.Kind != apierr.KindInvalid {
		t.Fatalf("expected KindInvalid, got %v", err)
	}
}

func TestPlanner_Plan_PropagatesMiningFailureAsUpstream(t *testing.T) {
	p := New(testRegistries(), stubMiner{err: errors.New("boom")}, nil, nil)
	reqs := []Request{
		{Metrics: []string{"pr-wip-time"}, Intervals: []Interval{ivl(0)}, Teams: map[int64][]account.UserNodeID{1: {"u1"}}},
	}
	_, err := p.Plan(context.Background(), reqs)
	if err == nil {
		t.Fatal("expected an error")
	}
	ae, ok := apierr.As(err)
	if !ok || ae.Kind != apierr.KindUpstream {
		t.Fatalf("expected KindUpstream, got %v", err)
	}
}

func TestPlanner_Plan_PreservesExistingApierrKind(t *testing.T) {
	p := New(testRegistries(), stubMiner{err: apierr.NotFound("team missing")}, nil, nil)
	reqs := []Request{
		{Metrics: []string{"pr-wip-time"}, Intervals: []Interval{ivl(0)}, Teams: map[int64][]account.UserNodeID{1: {"u1"}}},
	}
	_, err := p.Plan(context.Background(), reqs)
	ae, ok := apierr.As(err)
	if !ok || ae.Kind != apierr.KindNotFound {
		t.Fatalf("expected the original KindNotFound preserved, got %v", err)
	}
}

