package model

import (
	"math"
	"strings"
	"time"
)

// SourceItem is one raw note. ID is the store path and is the identity used
// by checkpoints.
type SourceItem struct {
	ID      string
	Name    string
	ModTime time.Time
}

// Chunk is a size-bounded slice of combined note text
type Chunk struct {
	Index int
	Total int
	Text  string
}

// Record is a single task or insight line
type Record struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed,omitempty"`
	Source    string `json:"source"`
}

// TaskSet groups explicit and implied tasks
type TaskSet struct {
	Explicit []Record `json:"explicit"`
	Implied  []Record `json:"implied"`
}

// Merge appends other after t, field by field
func (t TaskSet) Merge(other TaskSet) TaskSet {
	return TaskSet{
		Explicit: appendRecords(t.Explicit, other.Explicit),
		Implied:  appendRecords(t.Implied, other.Implied),
	}
}

// Len returns the total number of task records
func (t TaskSet) Len() int {
	return len(t.Explicit) + len(t.Implied)
}

// InsightSet groups insight records by category
type InsightSet struct {
	Blockers     []Record `json:"blockers"`
	Bugs         []Record `json:"bugs"`
	Achievements []Record `json:"achievements"`
	General      []Record `json:"general"`
}

// Merge appends other after s, field by field
func (s InsightSet) Merge(other InsightSet) InsightSet {
	return InsightSet{
		Blockers:     appendRecords(s.Blockers, other.Blockers),
		Bugs:         appendRecords(s.Bugs, other.Bugs),
		Achievements: appendRecords(s.Achievements, other.Achievements),
		General:      appendRecords(s.General, other.General),
	}
}

// Len returns the total number of insight records
func (s InsightSet) Len() int {
	return len(s.Blockers) + len(s.Bugs) + len(s.Achievements) + len(s.General)
}

// StatusMetadata is what is known about a project without asking a backend
type StatusMetadata struct {
	TotalNotes   int
	RecentNotes  int
	LastActivity string
}

// StatusRecord is the determined project status
type StatusRecord struct {
	Status       StatusKind `json:"status"`
	Progress     int        `json:"progress"`
	LastActivity string     `json:"lastActivity"`
	TotalNotes   int        `json:"totalNotes"`
	RecentNotes  int        `json:"recentNotes"`
	Summary      string     `json:"summary,omitempty"`
	Heuristic    bool       `json:"heuristic,omitempty"`
}

// HeuristicStatus derives a status purely from metadata
func HeuristicStatus(meta StatusMetadata) StatusRecord {
	total := meta.TotalNotes
	if total < 1 {
		total = 1
	}
	progress := int(math.Round(float64(meta.RecentNotes) / float64(total) * 100))
	if progress > 100 {
		progress = 100
	}
	return StatusRecord{
		Status:       StatusActive,
		Progress:     progress,
		LastActivity: meta.LastActivity,
		TotalNotes:   meta.TotalNotes,
		RecentNotes:  meta.RecentNotes,
		Heuristic:    true,
	}
}

// DigestRecord is the structured content of a periodic digest
type DigestRecord struct {
	Summary    string `json:"summary"`
	Completed  string `json:"completed"`
	Incomplete string `json:"incomplete"`
	Insights   string `json:"insights"`
}

// Merge joins each non-empty field of other after d with a blank line
func (d DigestRecord) Merge(other DigestRecord) DigestRecord {
	return DigestRecord{
		Summary:    joinBlocks(d.Summary, other.Summary),
		Completed:  joinBlocks(d.Completed, other.Completed),
		Incomplete: joinBlocks(d.Incomplete, other.Incomplete),
		Insights:   joinBlocks(d.Insights, other.Insights),
	}
}

// RefinedNote is one note produced by refinement
type RefinedNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func appendRecords(a, b []Record) []Record {
	out := make([]Record, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func joinBlocks(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n\n" + b
}
