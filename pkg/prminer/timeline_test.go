package prminer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestDeriveTimeline_WorkBeganIsEarlierOfCreatedAndFirstCommit(t *testing.T) {
	pr := PRRow{Created: day(5)}
	commits := []Commit{{At: day(2)}, {At: day(6)}}

	times := DeriveTimeline(pr, nil, commits)

	assert.Equal(t, day(2), times.FirstCommit)
	assert.Equal(t, day(6), times.LastCommit)
	assert.Equal(t, day(2), times.WorkBegan)
}

func TestDeriveTimeline_WorkBeganFallsBackToCreatedWhenNoCommits(t *testing.T) {
	pr := PRRow{Created: day(5)}
	times := DeriveTimeline(pr, nil, nil)
	assert.Equal(t, day(5), times.WorkBegan)
	assert.True(t, times.FirstCommit.IsZero())
}

func TestDeriveTimeline_ApprovedIsEarliestApprovingReview(t *testing.T) {
	pr := PRRow{Created: day(1)}
	events := []Event{
		{Kind: "review", At: day(3), ReviewState: "changes_requested"},
		{Kind: "review", At: day(4), ReviewState: "approved"},
		{Kind: "review", At: day(6), ReviewState: "approved"},
	}
	times := DeriveTimeline(pr, events, nil)
	assert.Equal(t, day(4), times.Approved)
	assert.Equal(t, day(6), times.LastReview)
}

func TestDeriveTimeline_MergedAndClosedCopiedFromRow(t *testing.T) {
	merged := day(10)
	closed := day(10)
	pr := PRRow{Created: day(1), MergedAt: &merged, ClosedAt: &closed}
	times := DeriveTimeline(pr, nil, nil)
	assert.Equal(t, merged, times.Merged)
	assert.Equal(t, closed, times.Closed)
}

func TestTimestamps_Valid_AcceptsWellOrderedStages(t *testing.T) {
	merged := day(8)
	closed := day(8)
	pr := PRRow{Created: day(1), MergedAt: &merged, ClosedAt: &closed}
	events := []Event{
		{Kind: "review_request", At: day(2)},
		{Kind: "comment", At: day(3)},
		{Kind: "review", At: day(4), ReviewState: "approved"},
	}
	times := DeriveTimeline(pr, events, nil)
	assert.Equal(t, "", times.Valid())
}

func TestTimestamps_Valid_RejectsClosedBeforeMerged(t *testing.T) {
	times := Timestamps{Created: day(1), Merged: day(5), Closed: day(3)}
	assert.NotEqual(t, "", times.Valid())
}

func TestTimestamps_Valid_RejectsReleasedWithoutMerged(t *testing.T) {
	times := Timestamps{Created: day(1), Released: day(5)}
	assert.Equal(t, "released_implies_merged", times.Valid())
}

func TestTimestamps_Valid_RejectsApprovedAfterMerged(t *testing.T) {
	times := Timestamps{Created: day(1), Approved: day(10), Merged: day(5)}
	assert.Equal(t, "approved<=merged", times.Valid())
}
