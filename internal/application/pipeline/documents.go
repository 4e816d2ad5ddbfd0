package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/penwyp/go-pensieve/internal/core/constants"
	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/core/model"
	"github.com/penwyp/go-pensieve/internal/data/store"
	"github.com/penwyp/go-pensieve/internal/util"
)

// Memory document titles, also written as memory_type
const (
	titleTasks    = "Tasks"
	titleStatus   = "Status"
	titleInsights = "Insights"
)

// Digest body defaults for empty fields
const (
	noSummary    = "No summary available"
	noCompleted  = "No completed tasks identified"
	noIncomplete = "No incomplete tasks identified"
	noInsights   = "No insights available"
)

// combineNotes reads notes in order and joins them as "--- label ---" blocks.
// Unreadable notes are skipped; a canceled context stops the read.
func combineNotes(ctx context.Context, docs store.Store, notes []model.SourceItem, label func(model.SourceItem) string) (string, error) {
	var b strings.Builder
	for _, n := range notes {
		text, err := docs.Read(ctx, n.ID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			util.Log(ctx).Warn("Skip unreadable note", util.F("note", n.ID), util.F("error", err))
			continue
		}
		fmt.Fprintf(&b, "\n\n--- %s ---\n%s\n", label(n), text)
	}
	return b.String(), nil
}

func noteLabel(n model.SourceItem) string {
	return n.Name
}

func datedNoteLabel(n model.SourceItem) string {
	return fmt.Sprintf("%s (%s)", n.Name, util.GetTimeProvider().FormatDate(n.ModTime))
}

// appendSection appends section to a memory document, creating it with a
// frontmatter header on first write.
func appendSection(ctx context.Context, docs store.Store, id, project, title, section string) error {
	exists, err := docs.Exists(ctx, id)
	if err != nil {
		return err
	}
	var existing string
	if exists {
		if existing, err = docs.Read(ctx, id); err != nil {
			return err
		}
	}
	content := existing + "\n\n" + section
	if !exists {
		content = memoryHeader(project, title) + content
	}
	return docs.Write(ctx, id, content)
}

func memoryHeader(project, title string) string {
	return strings.Join([]string{
		"---",
		"project_name: " + project,
		"memory_type: " + title,
		"---",
		"# " + title,
		"",
	}, "\n")
}

func writeRecords(b *strings.Builder, heading string, records []model.Record, mark func(model.Record) string) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", heading)
	for _, r := range records {
		fmt.Fprintf(b, "- %s %s (from: %s)\n", mark(r), r.Text, r.Source)
	}
	b.WriteString("\n")
}

func fixed(symbol string) func(model.Record) string {
	return func(model.Record) string { return symbol }
}

func tasksSection(date string, tasks model.TaskSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", date)
	writeRecords(&b, "Explicit Tasks", tasks.Explicit, func(r model.Record) string {
		if r.Completed {
			return "✅"
		}
		return "⏳"
	})
	writeRecords(&b, "Implied Tasks", tasks.Implied, fixed("💭"))
	return b.String()
}

func statusSection(date string, st model.StatusRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", date)
	fmt.Fprintf(&b, "### Project Status: %s\n\n", st.Status)
	fmt.Fprintf(&b, "- **Progress:** %d%%\n", st.Progress)
	fmt.Fprintf(&b, "- **Last Activity:** %s\n", st.LastActivity)
	fmt.Fprintf(&b, "- **Total Notes:** %d\n", st.TotalNotes)
	fmt.Fprintf(&b, "- **Recent Notes:** %d\n\n", st.RecentNotes)
	if st.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", st.Summary)
	}
	return b.String()
}

func insightsSection(date string, ins model.InsightSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", date)
	writeRecords(&b, "Blockers", ins.Blockers, fixed("🚫"))
	writeRecords(&b, "Bugs/Issues", ins.Bugs, fixed("🐛"))
	writeRecords(&b, "Achievements", ins.Achievements, fixed("🎉"))
	writeRecords(&b, "General Insights", ins.General, fixed("💡"))
	return b.String()
}

// lastSection returns the body and date heading of the final "## " section
// of a memory document.
func lastSection(text string) (date, body string) {
	idx := strings.LastIndex("\n"+text, "\n## ")
	if idx < 0 {
		return "", ""
	}
	rest := text[idx:]
	rest = strings.TrimPrefix(rest, "## ")
	heading, body, _ := strings.Cut(rest, "\n")
	return strings.TrimSpace(heading), strings.TrimSpace(body)
}

// reservedNoteNames are the bookkeeping documents sharing the clean folder
var reservedNoteNames = map[string]bool{
	strings.TrimSuffix(constants.CheckpointFile, ".md"):  true,
	strings.TrimSuffix(constants.ProjectTreeFile, ".md"): true,
}

// refinedNoteID picks a free document id for a refined note under folder,
// adding -1, -2... when the title is taken. Titles naming a bookkeeping
// document start at -1.
func refinedNoteID(ctx context.Context, docs store.Store, folder, title string) (string, error) {
	base := util.SanitizeFilename(title)
	if reservedNoteNames[strings.ToLower(base)] {
		return freeNoteID(ctx, docs, folder, base, 1)
	}
	return freeNoteID(ctx, docs, folder, base, 0)
}

func freeNoteID(ctx context.Context, docs store.Store, folder, base string, n int) (string, error) {
	for ; ; n++ {
		id := path.Join(folder, base+".md")
		if n > 0 {
			id = path.Join(folder, fmt.Sprintf("%s-%d.md", base, n))
		}
		exists, err := docs.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
}

func refinedNoteDocument(note model.RefinedNote, batchNumber int, date string) string {
	return strings.Join([]string{
		"---",
		"title: " + note.Title,
		"type: refined-note",
		fmt.Sprintf("batch: %d", batchNumber),
		"created: " + date,
		"---",
		"",
		note.Content,
	}, "\n")
}

const projectTreeHeader = "---\ntype: project-tree\n---\n# Project Refinement History\n\n" +
	"This file tracks the history of note refinement for this project.\n"

func projectTreeEntry(date string, inputs []string, outputs int) string {
	lines := []string{"## " + date, "", "### Input Notes"}
	for _, in := range inputs {
		lines = append(lines, "- "+in)
	}
	lines = append(lines, "", "### Output Notes", fmt.Sprintf("- Generated %d refined note(s)", outputs), "")
	return strings.Join(lines, "\n")
}

// appendProjectTree adds one refinement entry to the project tree document
func appendProjectTree(ctx context.Context, docs store.Store, id, entry string) error {
	exists, err := docs.Exists(ctx, id)
	if err != nil {
		return err
	}
	content := projectTreeHeader
	if exists {
		if content, err = docs.Read(ctx, id); err != nil {
			return err
		}
	}
	return docs.Write(ctx, id, content+"\n"+entry)
}

// DigestSections selects the optional digest sections
type DigestSections struct {
	Incomplete  bool
	Insights    bool
	SourceNotes bool
}

// AllDigestSections includes every section
var AllDigestSections = DigestSections{Incomplete: true, Insights: true, SourceNotes: true}

func digestDocument(w cycle.Window, rec model.DigestRecord, sources []model.SourceItem, generated time.Time, include DigestSections) string {
	tp := util.GetTimeProvider()

	quoted := make([]string, len(sources))
	for i, n := range sources {
		quoted[i] = fmt.Sprintf("%q", n.ID)
	}

	front := strings.Join([]string{
		"---",
		"cycle_type: " + string(w.Kind),
		"cycle_start: " + w.Start.UTC().Format(time.RFC3339Nano),
		"cycle_end: " + w.End.UTC().Format(time.RFC3339Nano),
		"generated_at: " + generated.UTC().Format(time.RFC3339Nano),
		fmt.Sprintf("source_notes_count: %d", len(sources)),
		"source_notes: [" + strings.Join(quoted, ", ") + "]",
		"---",
	}, "\n")

	lines := []string{
		fmt.Sprintf("# %s Digest", w.Kind.Title()),
		"",
		fmt.Sprintf("**Period:** %s - %s", tp.FormatDate(w.Start), tp.FormatDate(w.End)),
		fmt.Sprintf("**Notes Processed:** %d", len(sources)),
		fmt.Sprintf("**Generated:** %s", tp.FormatDate(generated)),
		"",
		"## Summary", "", or(rec.Summary, noSummary), "",
		"## What Was Done", "", or(rec.Completed, noCompleted), "",
	}
	if include.Incomplete {
		lines = append(lines, "## What Was Not Done", "", or(rec.Incomplete, noIncomplete), "")
	}
	if include.Insights {
		lines = append(lines, "## Key Insights", "", or(rec.Insights, noInsights), "")
	}
	if include.SourceNotes {
		lines = append(lines, "## Source Notes", "")
		for _, n := range sources {
			lines = append(lines, fmt.Sprintf("- [[%s|%s]] (%s)", n.ID, n.Name, tp.FormatDate(n.ModTime)))
		}
		lines = append(lines, "")
	}
	return front + "\n\n" + strings.Join(lines, "\n")
}

func or(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
