package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rec(text string) Record {
	return Record{Text: text, Source: DefaultRecordSource}
}

func TestTaskSetMergeIsOrderPreservingAndAssociative(t *testing.T) {
	a := TaskSet{Explicit: []Record{rec("a1")}, Implied: []Record{rec("a2")}}
	b := TaskSet{Explicit: []Record{rec("b1")}}
	c := TaskSet{Implied: []Record{rec("c2"), rec("c3")}}

	left := a.Merge(b).Merge(c)
	right := a.Merge(b.Merge(c))

	assert.Equal(t, left, right)
	assert.Equal(t, []Record{rec("a1"), rec("b1")}, left.Explicit)
	assert.Equal(t, []Record{rec("a2"), rec("c2"), rec("c3")}, left.Implied)
	assert.Equal(t, 5, left.Len())
}

func TestTaskSetMergeDoesNotAlias(t *testing.T) {
	a := TaskSet{Explicit: make([]Record, 1, 4)}
	a.Explicit[0] = rec("a")

	m1 := a.Merge(TaskSet{Explicit: []Record{rec("x")}})
	m2 := a.Merge(TaskSet{Explicit: []Record{rec("y")}})

	assert.Equal(t, "x", m1.Explicit[1].Text)
	assert.Equal(t, "y", m2.Explicit[1].Text)
}

func TestInsightSetMerge(t *testing.T) {
	a := InsightSet{Blockers: []Record{rec("b")}, General: []Record{rec("g1")}}
	b := InsightSet{Bugs: []Record{rec("bug")}, Achievements: []Record{rec("ach")}, General: []Record{rec("g2")}}

	merged := a.Merge(b)

	assert.Len(t, merged.Blockers, 1)
	assert.Len(t, merged.Bugs, 1)
	assert.Len(t, merged.Achievements, 1)
	assert.Equal(t, []Record{rec("g1"), rec("g2")}, merged.General)
	assert.Equal(t, 5, merged.Len())
}

func TestDigestRecordMerge(t *testing.T) {
	a := DigestRecord{Summary: "first", Completed: "done 1"}
	b := DigestRecord{Summary: "second", Incomplete: "todo"}

	merged := a.Merge(b)

	assert.Equal(t, "first\n\nsecond", merged.Summary)
	assert.Equal(t, "done 1", merged.Completed)
	assert.Equal(t, "todo", merged.Incomplete)
	assert.Empty(t, merged.Insights)

	c := DigestRecord{Insights: "i"}
	assert.Equal(t, a.Merge(b).Merge(c), a.Merge(b.Merge(c)))
}

func TestHeuristicStatus(t *testing.T) {
	tests := []struct {
		name     string
		meta     StatusMetadata
		progress int
	}{
		{"half recent", StatusMetadata{TotalNotes: 10, RecentNotes: 5}, 50},
		{"all recent", StatusMetadata{TotalNotes: 3, RecentNotes: 3}, 100},
		{"none recent", StatusMetadata{TotalNotes: 4, RecentNotes: 0}, 0},
		{"no notes", StatusMetadata{}, 0},
		{"clamped", StatusMetadata{TotalNotes: 0, RecentNotes: 2}, 100},
		{"rounded", StatusMetadata{TotalNotes: 3, RecentNotes: 1}, 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeuristicStatus(tt.meta)
			assert.Equal(t, StatusActive, got.Status)
			assert.Equal(t, tt.progress, got.Progress)
			assert.True(t, got.Heuristic)
			assert.Equal(t, tt.meta.TotalNotes, got.TotalNotes)
		})
	}
}

func TestParseStatusKind(t *testing.T) {
	tests := []struct {
		in   string
		want StatusKind
		ok   bool
	}{
		{"active", StatusActive, true},
		{"Stalled", StatusStalled, true},
		{"near_completion", StatusNearCompletion, true},
		{"Near Completion", StatusNearCompletion, true},
		{"inactive", StatusInactive, true},
		{"finished", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseStatusKind(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
