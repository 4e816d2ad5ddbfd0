package pipeline

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/core/model"
)

func TestLastSection(t *testing.T) {
	tests := []struct {
		name, text, date, body string
	}{
		{"none", "# Insights\n\nnothing dated", "", ""},
		{"single", "## 2024-05-01\n\n- a\n", "2024-05-01", "- a"},
		{"last wins", "# T\n\n## 2024-04-30\n\nold\n\n## 2024-05-01\n\n- new\n", "2024-05-01", "- new"},
		{"ignores deeper headings", "## 2024-05-01\n\n### Blockers\n\n- b\n", "2024-05-01", "### Blockers\n\n- b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, body := lastSection(tt.text)
			assert.Equal(t, tt.date, date)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestSectionsSkipEmptyGroups(t *testing.T) {
	got := insightsSection("2024-05-01", model.InsightSet{
		Bugs: []model.Record{{Text: "crash on save", Source: "log"}},
	})
	assert.Equal(t, "## 2024-05-01\n\n### Bugs/Issues\n\n- 🐛 crash on save (from: log)\n\n", got)

	got = tasksSection("2024-05-01", model.TaskSet{})
	assert.Equal(t, "## 2024-05-01\n\n", got)
}

func TestProjectTreeEntry(t *testing.T) {
	got := projectTreeEntry("2024-05-01", []string{"a.md", "b.md"}, 1)
	assert.Equal(t, "## 2024-05-01\n\n### Input Notes\n- a.md\n- b.md\n\n### Output Notes\n- Generated 1 refined note(s)\n", got)
}

func TestDigestDocumentOptionalSections(t *testing.T) {
	w, err := cycle.WindowFor(cycle.Monthly, time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC))
	if !assert.NoError(t, err) {
		return
	}
	doc := digestDocument(w, model.DigestRecord{Summary: "busy month"}, nil, w.End, DigestSections{})

	assert.Contains(t, doc, "cycle_start: 2024-02-01T00:00:00Z")
	assert.Contains(t, doc, "cycle_end: 2024-02-29T23:59:59.999Z")
	assert.Contains(t, doc, "source_notes: []")
	assert.Contains(t, doc, "# Monthly Digest")
	assert.Contains(t, doc, "busy month")
	assert.Contains(t, doc, "No completed tasks identified")
	assert.NotContains(t, doc, "## What Was Not Done")
	assert.NotContains(t, doc, "## Key Insights")
	assert.NotContains(t, doc, "## Source Notes")
}

func TestConsoleNotifierPlain(t *testing.T) {
	var buf bytes.Buffer
	n := &ConsoleNotifier{out: &buf}

	n.Notify(Summary{Flow: FlowDigest, Message: "Daily digest generated from 2 note(s)", Documents: []string{"Memory/digests/x.md"}})
	n.Notify(Summary{Flow: FlowRefine, Kind: failure.StorageFailure, Err: errors.New("disk full")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if assert.Len(t, lines, 3) {
		assert.True(t, strings.HasPrefix(lines[0], "✓ Daily digest generated from 2 note(s)"))
		assert.Equal(t, "  Memory/digests/x.md", lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "✗ refine failed (storage_failure): disk full"))
	}
}
