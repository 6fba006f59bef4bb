package planner

import (
	"testing"

	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/metrics"
)

func testRegistries() Registries {
	return Registries{
		PR:      metrics.DefaultPRRegistry(),
		Release: metrics.DefaultReleaseRegistry(),
		JIRA:    metrics.DefaultJIRARegistry(),
	}
}

func TestTriage_RoutesEachFamilyCorrectly(t *testing.T) {
	r := testRegistries()
	pr, release, jira, err := r.Triage([]string{"pr-wip-time", "release-count", "jira-resolution-time"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pr) != 1 || len(release) != 1 || len(jira) != 1 {
		t.Fatalf("expected one name per family, got pr=%v release=%v jira=%v", pr, release, jira)
	}
}

func TestTriage_UnknownMetricFailsWholeRequest(t *testing.T) {
	r := testRegistries()
	_, _, _, err := r.Triage([]string{"pr-wip-time", "not-a-real-metric"})
	if err == nil {
		t.Fatal("expected an error for an unknown metric")
	}
	ae, ok := apierr.As(err)
	if !ok {
		t.Fatalf("expected an *apierr.Error, got %T", err)
	}
	if ae.Kind != apierr.KindInvalid {
		t.Fatalf("expected KindInvalid, got %s", ae.Kind)
	}
	if ae.Pointer != ".metrics" {
		t.Fatalf("expected pointer .metrics, got %s", ae.Pointer)
	}
}
