// Package checkrun mines and normalizes check-run events into an
// aggregated (repository, name) summary. Spec §4.4, "the hardest subsystem
// after PR mining." Table is the struct-of-arrays form of the rows per spec
// §9's DataFrame-pipeline guidance; each pipeline pass is a []Row -> []Row
// function. Grounded on the teacher's
// tabular processing in internal/analytics and internal/bi for the
// columnar-slice shape, generalized from resource-inventory rows to
// check-run events.
package checkrun

import "time"

// Status is the check run's lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Conclusion is the terminal outcome of a completed check run.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "SUCCESS"
	ConclusionFailure   Conclusion = "FAILURE"
	ConclusionSkipped   Conclusion = "SKIPPED"
	ConclusionNeutral   Conclusion = "NEUTRAL"
	ConclusionTimedOut  Conclusion = "TIMED_OUT"
	ConclusionCancelled Conclusion = "CANCELLED"
	ConclusionNone      Conclusion = ""
)

// Table is the struct-of-arrays representation of a set of check-run rows.
// Every slice has the same length; row i's fields are column[i] across all
// slices. Rows with PRNodeID == "" are unattributed.
type Table struct {
	NodeID          []string
	Repository      []string
	SuiteID         []string // synthetic after SplitReRuns; raw provider suite id before
	Name            []string
	Status          []Status
	Conclusion      []Conclusion // this run's own outcome; never rewritten by suite-level logic
	SuiteConclusion []Conclusion // the owning check suite's outcome, set by OverrideSuiteConclusion
	StartedAt       []time.Time
	CompletedAt     []time.Time
	CommitSHA       []string
	Author          []string
	PRNodeID        []string
	URL             []string // present only for merged status-context rows
}

// Len returns the row count.
func (t Table) Len() int { return len(t.NodeID) }

// Row is one materialized row, used by pipeline stages that need to
// reason about a single check run rather than a column at a time.
type Row struct {
	NodeID          string
	Repository      string
	SuiteID         string
	Name            string
	Status          Status
	Conclusion      Conclusion // this run's own outcome; never rewritten by suite-level logic
	SuiteConclusion Conclusion // the owning check suite's outcome, set by OverrideSuiteConclusion
	StartedAt       time.Time
	CompletedAt     time.Time
	CommitSHA       string
	Author          string
	PRNodeID        string
	URL             string
}

// At materializes row i.
func (t Table) At(i int) Row {
	return Row{
		NodeID:          t.NodeID[i],
		Repository:      t.Repository[i],
		SuiteID:         t.SuiteID[i],
		Name:            t.Name[i],
		Status:          t.Status[i],
		Conclusion:      t.Conclusion[i],
		SuiteConclusion: t.SuiteConclusion[i],
		StartedAt:       t.StartedAt[i],
		CompletedAt:     t.CompletedAt[i],
		CommitSHA:       t.CommitSHA[i],
		Author:          t.Author[i],
		PRNodeID:        t.PRNodeID[i],
		URL:             t.URL[i],
	}
}

// NewTable builds a Table from materialized rows, the inverse of
// iterating At over an existing table. The pipeline stages themselves pass
// []Row from one to the next and do not call it.
func NewTable(rows []Row) Table {
	t := Table{
		NodeID:          make([]string, len(rows)),
		Repository:      make([]string, len(rows)),
		SuiteID:         make([]string, len(rows)),
		Name:            make([]string, len(rows)),
		Status:          make([]Status, len(rows)),
		Conclusion:      make([]Conclusion, len(rows)),
		SuiteConclusion: make([]Conclusion, len(rows)),
		StartedAt:       make([]time.Time, len(rows)),
		CompletedAt:     make([]time.Time, len(rows)),
		CommitSHA:       make([]string, len(rows)),
		Author:          make([]string, len(rows)),
		PRNodeID:        make([]string, len(rows)),
		URL:             make([]string, len(rows)),
	}
	for i, r := range rows {
		t.NodeID[i] = r.NodeID
		t.Repository[i] = r.Repository
		t.SuiteID[i] = r.SuiteID
		t.Name[i] = r.Name
		t.Status[i] = r.Status
		t.Conclusion[i] = r.Conclusion
		t.SuiteConclusion[i] = r.SuiteConclusion
		t.StartedAt[i] = r.StartedAt
		t.CompletedAt[i] = r.CompletedAt
		t.CommitSHA[i] = r.CommitSHA
		t.Author[i] = r.Author
		t.PRNodeID[i] = r.PRNodeID
		t.URL[i] = r.URL
	}
	return t
}

// Rows materializes every row of t, for stages that need whole-table
// row-at-a-time logic.
func (t Table) Rows() []Row {
	rows := make([]Row, t.Len())
	for i := range rows {
		rows[i] = t.At(i)
	}
	return rows
}
