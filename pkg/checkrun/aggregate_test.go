package checkrun

import (
	"testing"
	"time"
)

func TestBucketGranularity_ChoosesByWindowLength(t *testing.T) {
	cases := []struct {
		days int
		want Granularity
	}{
		{10, GranularityDaily},
		{35, GranularityDaily},
		{100, GranularityWeekly},
		{150, GranularityWeekly},
		{365, GranularityMonthly},
	}
	for _, c := range cases {
		from := day(0)
		to := from.AddDate(0, 0, c.days)
		if got := BucketGranularity(from, to); got != c.want {
			t.Errorf("days=%d: expected %s, got %s", c.days, c.want, got)
		}
	}
}

func TestAggregate_GroupsByRepositoryAndName(t *testing.T) {
	rows := []Row{
		{NodeID: "a", Repository: "r1", Name: "build", CommitSHA: "c1", StartedAt: day(0), CompletedAt: day(0).Add(time.Minute), Conclusion: ConclusionSuccess},
		{NodeID: "b", Repository: "r1", Name: "build", CommitSHA: "c2", StartedAt: day(1), CompletedAt: day(1).Add(2 * time.Minute), Conclusion: ConclusionSuccess},
		{NodeID: "c", Repository: "r2", Name: "build", CommitSHA: "c3", StartedAt: day(0), CompletedAt: day(0).Add(time.Minute), Conclusion: ConclusionSuccess},
	}
	out := Aggregate(rows, day(0), day(5), 0, 1)
	var r1Total *GroupResult
	for i := range out {
		if out[i].Repository == "r1" && out[i].Mask == MaskTotal {
			r1Total = &out[i]
		}
	}
	if r1Total == nil {
		t.Fatal("expected an r1/total group")
	}
	if r1Total.Overall.Count != 2 {
		t.Fatalf("expected 2 rows in r1 group, got %d", r1Total.Overall.Count)
	}
}

func TestAggregate_PRsOnlyMaskExcludesUnattributedRows(t *testing.T) {
	rows := []Row{
		{NodeID: "a", Repository: "r1", Name: "build", CommitSHA: "c1", StartedAt: day(0), CompletedAt: day(0).Add(time.Minute), Conclusion: ConclusionSuccess, PRNodeID: "pr1"},
		{NodeID: "b", Repository: "r1", Name: "build", CommitSHA: "c2", StartedAt: day(0), CompletedAt: day(0).Add(time.Minute), Conclusion: ConclusionSuccess},
	}
	out := Aggregate(rows, day(0), day(5), 0, 1)
	var prsOnly *GroupResult
	for i := range out {
		if out[i].Mask == MaskPRsOnly {
			prsOnly = &out[i]
		}
	}
	if prsOnly == nil {
		t.Fatal("expected a prs_only group")
	}
	if prsOnly.Overall.Count != 1 {
		t.Fatalf("expected only the PR-attributed row counted, got %d", prsOnly.Overall.Count)
	}
}

func TestAggregate_FlakyCountDetectsSuccessAndFailureOnSameCommit(t *testing.T) {
	rows := []Row{
		{NodeID: "a", Repository: "r1", Name: "build", CommitSHA: "c1", StartedAt: day(0), CompletedAt: day(0).Add(time.Minute), Conclusion: ConclusionFailure},
		{NodeID: "b", Repository: "r1", Name: "build", CommitSHA: "c1", StartedAt: day(0).Add(time.Minute), CompletedAt: day(0).Add(2 * time.Minute), Conclusion: ConclusionSuccess},
	}
	out := Aggregate(rows, day(0), day(5), 0, 1)
	if len(out) == 0 {
		t.Fatal("expected aggregated groups")
	}
	if out[0].Overall.FlakyCount != 1 {
		t.Fatalf("expected 1 flaky commit, got %d", out[0].Overall.FlakyCount)
	}
}

func TestAggregate_TimelineBucketsAreChronological(t *testing.T) {
	rows := []Row{
		{NodeID: "a", Repository: "r1", Name: "build", CommitSHA: "c1", StartedAt: day(5), CompletedAt: day(5).Add(time.Minute), Conclusion: ConclusionSuccess},
		{NodeID: "b", Repository: "r1", Name: "build", CommitSHA: "c2", StartedAt: day(0), CompletedAt: day(0).Add(time.Minute), Conclusion: ConclusionSuccess},
	}
	out := Aggregate(rows, day(0), day(10), 0, 1)
	if len(out) == 0 || len(out[0].Timeline) < 2 {
		t.Fatalf("expected multiple timeline buckets, got %+v", out)
	}
	for i := 1; i < len(out[0].Timeline); i++ {
		if out[0].Timeline[i].Start.Before(out[0].Timeline[i-1].Start) {
			t.Fatalf("expected timeline buckets in chronological order, got %+v", out[0].Timeline)
		}
	}
}

func TestQuantileTrim_DropsOutliers(t *testing.T) {
	durations := []time.Duration{1, 2, 3, 4, 100}
	trimmed := quantileTrim(durations, 0.1, 0.9)
	for _, d := range trimmed {
		if d == 100 {
			t.Fatalf("expected outlier trimmed, got %v", trimmed)
		}
	}
}

func TestMedian_OddAndEvenCounts(t *testing.T) {
	if got := median([]time.Duration{1, 2, 3}); got != 2 {
		t.Fatalf("expected median 2, got %v", got)
	}
	if got := median([]time.Duration{1, 2, 3, 4}); got != 2 {
		// (2+3)/2 truncated via integer division on time.Duration
		t.Fatalf("expected median ~2, got %v", got)
	}
}
