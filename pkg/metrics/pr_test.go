package metrics

import (
	"testing"
	"time"

	"github.com/catherinevee/prodflow/pkg/prminer"
)

func at(h int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour)
}

func TestDefaultPRRegistry_ReviewTimeSingleSample(t *testing.T) {
	reg := DefaultPRRegistry()
	calc, ok := reg["pr-review-time"]
	if !ok {
		t.Fatal("expected pr-review-time registered")
	}
	facts := PRFacts{PRs: []PRSample{{Times: prminer.Timestamps{
		Created:            at(0),
		WorkBegan:          at(0),
		FirstReviewRequest: at(1),
		Approved:           at(2),
		Merged:             at(3),
		Closed:             at(3),
	}}}}
	v, ok := calc.Analyze(facts)
	if !ok || !v.Exists {
		t.Fatalf("expected a value, got %+v ok=%v", v, ok)
	}
	if v.Value != time.Hour.Seconds() {
		t.Fatalf("expected 1h (approved - first_review_request), got %vs", v.Value)
	}
}

func TestDefaultPRRegistry_ReviewTimeFallsBackToLastReview(t *testing.T) {
	reg := DefaultPRRegistry()
	calc := reg["pr-review-time"]
	facts := PRFacts{PRs: []PRSample{{Times: prminer.Timestamps{
		FirstReviewRequest: at(1),
		LastReview:         at(4),
		Closed:             at(5),
	}}}}
	v, ok := calc.Analyze(facts)
	if !ok || v.Value != (3*time.Hour).Seconds() {
		t.Fatalf("expected 3h fallback to last_review, got %+v", v)
	}
}

func TestDefaultPRRegistry_MissingWhenNoApplicableSample(t *testing.T) {
	reg := DefaultPRRegistry()
	calc := reg["pr-merging-time"]
	facts := PRFacts{PRs: []PRSample{{Times: prminer.Timestamps{}}}}
	v, ok := calc.Analyze(facts)
	if ok || v.Exists {
		t.Fatalf("expected Missing, got %+v ok=%v", v, ok)
	}
}

func TestDefaultPRRegistry_EmptyFactsReturnsMissing(t *testing.T) {
	reg := DefaultPRRegistry()
	calc := reg["pr-lead-time"]
	v, ok := calc.Analyze(PRFacts{})
	if ok || v.Exists {
		t.Fatalf("expected Missing for empty window, got %+v ok=%v", v, ok)
	}
	if v.ConfidenceScore() != 0 {
		t.Fatalf("expected confidence_score=0, got %v", v.ConfidenceScore())
	}
}

func TestDefaultPRRegistry_LeadTimeMultiSampleMedian(t *testing.T) {
	reg := DefaultPRRegistry()
	calc := reg["pr-lead-time"]
	facts := PRFacts{PRs: []PRSample{
		{Times: prminer.Timestamps{WorkBegan: at(0), Released: at(1)}},
		{Times: prminer.Timestamps{WorkBegan: at(0), Released: at(3)}},
		{Times: prminer.Timestamps{WorkBegan: at(0), Released: at(5)}},
	}}
	v, ok := calc.Analyze(facts)
	if !ok || v.Value != (3*time.Hour).Seconds() {
		t.Fatalf("expected median 3h, got %+v", v)
	}
}

func TestPRRegistry_HasReportsKnownAndUnknownMetrics(t *testing.T) {
	reg := DefaultPRRegistry()
	if !reg.Has("pr-wip-time") {
		t.Fatal("expected pr-wip-time recognized")
	}
	if reg.Has("not-a-real-metric") {
		t.Fatal("expected unrecognized metric rejected")
	}
}
