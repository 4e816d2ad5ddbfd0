// Package sections turns free-form generated text into named sections and
// list records using line-prefix markers.
package sections

import (
	"regexp"
	"strings"

	"github.com/penwyp/go-pensieve/internal/core/model"
)

// Section names a logical part of a generated reply
type Section int

const (
	CatchAll Section = iota
	ExplicitTasks
	ImpliedTasks
	Blockers
	Bugs
	Achievements
	GeneralInsights
	Status
	Progress
	LastActivity
	Notes
	Summary
	Completed
	Incomplete
	Insights
)

var sectionNames = map[Section]string{
	CatchAll:        "catch_all",
	ExplicitTasks:   "explicit_tasks",
	ImpliedTasks:    "implied_tasks",
	Blockers:        "blockers",
	Bugs:            "bugs",
	Achievements:    "achievements",
	GeneralInsights: "general_insights",
	Status:          "status",
	Progress:        "progress",
	LastActivity:    "last_activity",
	Notes:           "notes",
	Summary:         "summary",
	Completed:       "completed",
	Incomplete:      "incomplete",
	Insights:        "insights",
}

func (s Section) String() string {
	if name, ok := sectionNames[s]; ok {
		return name
	}
	return "unknown"
}

// Marker switches the current section when a line starts with Prefix
type Marker struct {
	Section Section
	Prefix  string
}

// Marker sets for each extraction flow
var (
	TaskMarkers = []Marker{
		{ExplicitTasks, "EXPLICIT TASKS:"},
		{ImpliedTasks, "IMPLIED TASKS:"},
	}
	InsightMarkers = []Marker{
		{Blockers, "BLOCKERS:"},
		{Bugs, "BUGS/ISSUES:"},
		{Achievements, "ACHIEVEMENTS:"},
		{GeneralInsights, "GENERAL INSIGHTS:"},
	}
	StatusMarkers = []Marker{
		{Status, "STATUS:"},
		{Progress, "PROGRESS:"},
		{LastActivity, "LAST_ACTIVITY:"},
		{Notes, "NOTES:"},
		{Summary, "SUMMARY:"},
	}
	DigestMarkers = []Marker{
		{Summary, "SUMMARY:"},
		{Completed, "COMPLETED:"},
		{Incomplete, "INCOMPLETE:"},
		{Insights, "INSIGHTS:"},
	}
)

// Parse splits text into sections. A line whose trimmed form starts with a
// marker prefix switches the current section and any text following the
// marker on that line is kept. Non-empty lines are newline-joined into the
// current section. Lines before the first marker are discarded, so input
// without markers yields an empty map.
func Parse(text string, markers []Marker) map[Section]string {
	acc := make(map[Section][]string)
	current := CatchAll
	started := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m, rest, ok := matchMarker(trimmed, markers); ok {
			current = m.Section
			started = true
			if _, seen := acc[current]; !seen {
				acc[current] = nil
			}
			if rest != "" {
				acc[current] = append(acc[current], rest)
			}
			continue
		}
		if !started {
			continue
		}
		acc[current] = append(acc[current], trimmed)
	}

	out := make(map[Section]string, len(acc))
	for s, lines := range acc {
		out[s] = strings.Join(lines, "\n")
	}
	return out
}

func matchMarker(line string, markers []Marker) (Marker, string, bool) {
	candidates := []string{line}
	if plain := stripDecoration(line); plain != line {
		candidates = append(candidates, plain)
	}
	for _, c := range candidates {
		for _, m := range markers {
			if strings.HasPrefix(c, m.Prefix) {
				rest := strings.TrimSpace(strings.TrimPrefix(c, m.Prefix))
				return m, strings.TrimSpace(strings.Trim(rest, "*")), true
			}
		}
	}
	return Marker{}, "", false
}

// stripDecoration removes markdown emphasis and heading marks a model may wrap
// around a marker, e.g. "**BLOCKERS:**" or "## SUMMARY:".
func stripDecoration(line string) string {
	s := strings.TrimLeft(line, "# ")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(s)
}

var (
	checkboxPattern = regexp.MustCompile(`^\[([ xX])\]\s*`)
	sourcePattern   = regexp.MustCompile(`\s*\(from:\s*([^)]*)\)\s*$`)
)

// ParseRecords converts list lines ("- ...") of a section into records. A
// leading "[x]" or "[X]" marks the record completed and "(from: name)" at the
// end of a line names its source.
func ParseRecords(sectionText string) []model.Record {
	var records []model.Record
	for _, line := range strings.Split(sectionText, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "-") {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))

		rec := model.Record{Source: model.DefaultRecordSource}
		if m := checkboxPattern.FindStringSubmatch(text); m != nil {
			rec.Completed = m[1] == "x" || m[1] == "X"
			text = text[len(m[0]):]
		}
		if m := sourcePattern.FindStringSubmatch(text); m != nil {
			if src := strings.TrimSpace(m[1]); src != "" {
				rec.Source = src
			}
			text = text[:len(text)-len(m[0])]
		}
		rec.Text = strings.TrimSpace(text)
		if rec.Text == "" || isNone(rec.Text) {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// isNone filters the filler lines models emit for empty categories
func isNone(text string) bool {
	switch strings.ToLower(strings.Trim(text, " .")) {
	case "none", "n/a", "none identified", "no items":
		return true
	}
	return false
}
