package checkrun

import "testing"

func TestSplitReRuns_AssignsDisjointSuffixesOrderedByStart(t *testing.T) {
	rows := []Row{
		{NodeID: "a", SuiteID: "ci", Name: "build", StartedAt: day(1)},
		{NodeID: "b", SuiteID: "ci", Name: "build", StartedAt: day(0)},
	}
	out := SplitReRuns(rows)
	if out[1].SuiteID != "ci#0" {
		t.Fatalf("expected earliest run to get #0, got %s", out[1].SuiteID)
	}
	if out[0].SuiteID != "ci#1" {
		t.Fatalf("expected later run to get #1, got %s", out[0].SuiteID)
	}
}

func TestSplitReRuns_LeavesSingleRunIndexZero(t *testing.T) {
	rows := []Row{{NodeID: "a", SuiteID: "ci", Name: "build", StartedAt: day(0)}}
	out := SplitReRuns(rows)
	if out[0].SuiteID != "ci#0" {
		t.Fatalf("expected single run suffixed #0, got %s", out[0].SuiteID)
	}
}

func TestSplitReRuns_DistinctNamesDoNotShareAnIndex(t *testing.T) {
	rows := []Row{
		{NodeID: "a", SuiteID: "ci", Name: "build", StartedAt: day(0)},
		{NodeID: "b", SuiteID: "ci", Name: "test", StartedAt: day(0)},
	}
	out := SplitReRuns(rows)
	if out[0].SuiteID != "ci#0" || out[1].SuiteID != "ci#0" {
		t.Fatalf("expected both distinct-name runs to independently start at #0, got %+v", out)
	}
}
