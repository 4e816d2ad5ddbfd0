package model

import "strings"

// StatusKind is the coarse lifecycle state of a project
type StatusKind string

const (
	StatusActive         StatusKind = "active"
	StatusStalled        StatusKind = "stalled"
	StatusNearCompletion StatusKind = "near-completion"
	StatusInactive       StatusKind = "inactive"
)

// ParseStatusKind normalizes free-form status words such as "Near_Completion".
func ParseStatusKind(s string) (StatusKind, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	switch StatusKind(norm) {
	case StatusActive, StatusStalled, StatusNearCompletion, StatusInactive:
		return StatusKind(norm), true
	}
	return "", false
}

// Memory document types written to frontmatter
const (
	MemoryTasks    = "tasks"
	MemoryStatus   = "status"
	MemoryInsights = "insights"
)

// DefaultRecordSource tags records whose origin the response did not name
const DefaultRecordSource = "LLM extracted"

// DefaultNoteTitle is used for refined notes the backend left untitled
const DefaultNoteTitle = "Untitled Note"
