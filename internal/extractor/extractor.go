// Package extractor runs the per-chunk generation flows: it splits content to
// fit the model's context budget, calls the generator once per chunk and
// parses each reply into typed records.
package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-pensieve/internal/core/chunker"
	"github.com/penwyp/go-pensieve/internal/core/constants"
	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/core/model"
	"github.com/penwyp/go-pensieve/internal/core/sections"
	"github.com/penwyp/go-pensieve/internal/util"
)

// Generator produces text for a prompt pair and knows its context budget
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	ContextWindow() int
}

// RefineOptions shapes refined notes
type RefineOptions struct {
	Tone             string
	Verbosity        string
	Emojification    bool
	CompressionRatio float64
	// latest insights section of the project's memory, may be empty
	MemoryInsights string
}

// Extractor owns the chunking budget and failure policy of every flow
type Extractor struct {
	gen        Generator
	recentDays int
}

// New creates an extractor over gen
func New(gen Generator) *Extractor {
	return &Extractor{gen: gen, recentDays: constants.RecentActivityDays}
}

// WithRecentDays sets the recent-activity window quoted in status prompts
func (e *Extractor) WithRecentDays(days int) *Extractor {
	if days > 0 {
		e.recentDays = days
	}
	return e
}

func (e *Extractor) split(content string, ratio float64) []model.Chunk {
	return chunker.Split(content, chunker.Budget(e.gen.ContextWindow(), ratio))
}

// call renders and sends one prompt. Errors from rendering are programmer
// errors and are returned as-is.
func (e *Extractor) call(ctx context.Context, name string, values vars) (string, error) {
	p, err := renderPrompt(name, values)
	if err != nil {
		return "", err
	}
	return e.gen.Generate(ctx, p.System, p.User)
}

// degrade logs a contained chunk failure. It returns err when the failure
// must stop the flow instead.
func degrade(ctx context.Context, flow string, chunk model.Chunk, err error) error {
	if failure.Fatal(err) {
		return err
	}
	util.Log(ctx).Warn("Chunk failed, substituting placeholder",
		util.F("flow", flow),
		util.F("chunk", chunk.Index+1),
		util.F("chunks", chunk.Total),
		util.F("kind", failure.KindOf(err).String()),
		util.F("error", err))
	return nil
}

func chunkVars(chunk model.Chunk) vars {
	return vars{
		"Part":    strconv.Itoa(chunk.Index + 1),
		"Parts":   strconv.Itoa(chunk.Total),
		"Content": chunk.Text,
	}
}

// ExtractTasks extracts explicit and implied tasks, concatenating per-chunk
// results in chunk order.
func (e *Extractor) ExtractTasks(ctx context.Context, content string) (model.TaskSet, error) {
	var all model.TaskSet
	for _, chunk := range e.split(content, constants.ExtractionBudgetRatio) {
		reply, err := e.call(ctx, promptTasks, chunkVars(chunk))
		if err != nil {
			if fatal := degrade(ctx, "tasks", chunk, err); fatal != nil {
				return all, fatal
			}
			continue
		}
		all = all.Merge(ParseTasks(reply))
	}
	return all, nil
}

// ParseTasks reads a tasks reply
func ParseTasks(reply string) model.TaskSet {
	found := sections.Parse(reply, sections.TaskMarkers)
	return model.TaskSet{
		Explicit: sections.ParseRecords(found[sections.ExplicitTasks]),
		Implied:  sections.ParseRecords(found[sections.ImpliedTasks]),
	}
}

// ExtractInsights extracts blockers, bugs, achievements and general insights
func (e *Extractor) ExtractInsights(ctx context.Context, content string) (model.InsightSet, error) {
	var all model.InsightSet
	for _, chunk := range e.split(content, constants.ExtractionBudgetRatio) {
		reply, err := e.call(ctx, promptInsights, chunkVars(chunk))
		if err != nil {
			if fatal := degrade(ctx, "insights", chunk, err); fatal != nil {
				return all, fatal
			}
			continue
		}
		all = all.Merge(ParseInsights(reply))
	}
	return all, nil
}

// ParseInsights reads an insights reply
func ParseInsights(reply string) model.InsightSet {
	found := sections.Parse(reply, sections.InsightMarkers)
	return model.InsightSet{
		Blockers:     sections.ParseRecords(found[sections.Blockers]),
		Bugs:         sections.ParseRecords(found[sections.Bugs]),
		Achievements: sections.ParseRecords(found[sections.Achievements]),
		General:      sections.ParseRecords(found[sections.GeneralInsights]),
	}
}

// DetermineStatus assesses project status from the first chunk only, where
// the newest notes sit. Any failure falls back to the metadata heuristic; a
// fatal failure is also returned so the caller can stop the scope.
func (e *Extractor) DetermineStatus(ctx context.Context, content string, meta model.StatusMetadata) (model.StatusRecord, error) {
	chunks := e.split(content, constants.ExtractionBudgetRatio)
	if len(chunks) == 0 {
		return model.HeuristicStatus(meta), nil
	}

	reply, err := e.call(ctx, promptStatus, vars{
		"Content":      chunks[0].Text,
		"TotalNotes":   strconv.Itoa(meta.TotalNotes),
		"RecentNotes":  strconv.Itoa(meta.RecentNotes),
		"RecentDays":   strconv.Itoa(e.recentDays),
		"LastActivity": meta.LastActivity,
	})
	if err != nil {
		fatal := degrade(ctx, "status", chunks[0], err)
		return model.HeuristicStatus(meta), fatal
	}
	if strings.TrimSpace(reply) == "" {
		util.Log(ctx).Warn("Empty status reply, using heuristic status")
		return model.HeuristicStatus(meta), nil
	}
	return ParseStatus(reply, meta), nil
}

var (
	statusWordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z_-]*`)
	progressPattern   = regexp.MustCompile(`(\d+)\s*%`)
)

// ParseStatus reads a status reply. Unrecognized fields keep their defaults:
// active, 50% progress and the metadata's last activity.
func ParseStatus(reply string, meta model.StatusMetadata) model.StatusRecord {
	rec := model.StatusRecord{
		Status:       model.StatusActive,
		Progress:     constants.DefaultProgress,
		LastActivity: meta.LastActivity,
		TotalNotes:   meta.TotalNotes,
		RecentNotes:  meta.RecentNotes,
	}
	found := sections.Parse(reply, sections.StatusMarkers)

	if kind, ok := statusWord(firstLine(found[sections.Status])); ok {
		rec.Status = kind
	}
	if m := progressPattern.FindStringSubmatch(found[sections.Progress]); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rec.Progress = min(100, max(0, n))
		}
	}
	if activity := firstLine(found[sections.LastActivity]); activity != "" {
		rec.LastActivity = activity
	}
	rec.Summary = strings.TrimSpace(found[sections.Summary])
	if rec.Summary == "" {
		rec.Summary = strings.TrimSpace(found[sections.Notes])
	}
	return rec
}

// statusWord accepts "near-completion", "Near completion" or "stalled (no commits)"
func statusWord(line string) (model.StatusKind, bool) {
	words := statusWordPattern.FindAllString(line, 2)
	if len(words) == 0 {
		return "", false
	}
	if kind, ok := model.ParseStatusKind(words[0]); ok {
		return kind, true
	}
	if len(words) == 2 {
		return model.ParseStatusKind(words[0] + "-" + words[1])
	}
	return "", false
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.Trim(strings.TrimSpace(line), "[]")
}

// RefineNotes rewrites content as clean notes. A failed chunk becomes a
// note wrapping that chunk's text, so no source content is lost.
func (e *Extractor) RefineNotes(ctx context.Context, content string, opts RefineOptions) ([]model.RefinedNote, error) {
	emoji := "Do not use emojis."
	if opts.Emojification {
		emoji = "Use relevant emojis to improve readability."
	}
	insights := strings.TrimSpace(opts.MemoryInsights)
	if insights == "" {
		insights = "No recent insights available"
	}
	ratio := opts.CompressionRatio
	if ratio <= 0 {
		ratio = 0.3
	}

	var notes []model.RefinedNote
	for _, chunk := range e.split(content, constants.RefineBudgetRatio) {
		reply, err := e.call(ctx, promptRefine, vars{
			"Content":     chunk.Text,
			"Insights":    insights,
			"Tone":        lookupOr(toneInstructions, opts.Tone, "professional"),
			"Verbosity":   lookupOr(verbosityInstructions, opts.Verbosity, "concise"),
			"Emoji":       emoji,
			"Compression": strconv.FormatFloat(ratio, 'f', -1, 64),
		})
		if err == nil && strings.TrimSpace(reply) == "" {
			err = failure.Newf(failure.MalformedResponse, "refine", "empty reply")
		}
		if err != nil {
			if fatal := degrade(ctx, "refine", chunk, err); fatal != nil {
				return notes, fatal
			}
			notes = append(notes, model.RefinedNote{
				Title:   fmt.Sprintf("Refined Notes - Chunk %d", chunk.Index+1),
				Content: "# Refined Notes\n\n" + chunk.Text,
			})
			continue
		}
		notes = append(notes, ParseRefined(reply)...)
	}
	return notes, nil
}

var (
	jsonArrayPattern = regexp.MustCompile(`\[[\s\S]*\]`)
	headingPattern   = regexp.MustCompile(`(?m)^# `)
)

// ParseRefined reads a refine reply: a JSON array of {title, content}
// first, then top-level "# " sections, then the whole reply as one note.
func ParseRefined(reply string) []model.RefinedNote {
	if raw := jsonArrayPattern.FindString(reply); raw != "" {
		var parsed []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := sonic.UnmarshalString(raw, &parsed); err == nil && len(parsed) > 0 {
			notes := make([]model.RefinedNote, 0, len(parsed))
			for _, p := range parsed {
				title := strings.TrimSpace(p.Title)
				if title == "" {
					title = model.DefaultNoteTitle
				}
				if strings.TrimSpace(p.Content) == "" && title == model.DefaultNoteTitle {
					continue
				}
				notes = append(notes, model.RefinedNote{Title: title, Content: p.Content})
			}
			if len(notes) > 0 {
				return notes
			}
		}
	}

	var notes []model.RefinedNote
	headings := splitHeadings(reply)
	if len(headings) > 0 {
		if preamble := strings.TrimSpace(reply[:headingPattern.FindStringIndex(reply)[0]]); preamble != "" {
			notes = append(notes, model.RefinedNote{Title: model.DefaultNoteTitle, Content: preamble})
		}
	}
	for _, section := range headings {
		title, body, _ := strings.Cut(section, "\n")
		title = strings.TrimSpace(title)
		if title == "" {
			title = model.DefaultNoteTitle
		}
		if body = strings.TrimSpace(body); body != "" {
			notes = append(notes, model.RefinedNote{Title: title, Content: body})
		}
	}
	if len(notes) > 0 {
		return notes
	}
	return []model.RefinedNote{{Title: "Refined Notes", Content: reply}}
}

// splitHeadings returns the text after each "# " heading, heading line first
func splitHeadings(reply string) []string {
	idx := headingPattern.FindAllStringIndex(reply, -1)
	out := make([]string, 0, len(idx))
	for i, loc := range idx {
		end := len(reply)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		out = append(out, reply[loc[1]:end])
	}
	return out
}

// GenerateDigest summarizes notes for one cycle. Per-chunk records are
// merged with blank lines; a failed chunk contributes placeholder text.
func (e *Extractor) GenerateDigest(ctx context.Context, content string, kind cycle.Kind, date string) (model.DigestRecord, error) {
	var digest model.DigestRecord
	for _, chunk := range e.split(content, constants.DigestBudgetRatio) {
		values := chunkVars(chunk)
		values["Cycle"] = string(kind)
		values["Date"] = date
		values["Focus"] = lookupOr(cycleFocus, string(kind), "daily")

		reply, err := e.call(ctx, promptDigest, values)
		if err != nil {
			if fatal := degrade(ctx, "digest", chunk, err); fatal != nil {
				return digest, fatal
			}
			digest = digest.Merge(model.DigestRecord{
				Summary:    fmt.Sprintf("Processed notes from chunk %d", chunk.Index+1),
				Completed:  "No completed tasks identified",
				Incomplete: "No incomplete tasks identified",
				Insights:   "No insights available",
			})
			continue
		}
		digest = digest.Merge(ParseDigest(reply))
	}
	return digest, nil
}

// ParseDigest reads a digest reply
func ParseDigest(reply string) model.DigestRecord {
	found := sections.Parse(reply, sections.DigestMarkers)
	return model.DigestRecord{
		Summary:    found[sections.Summary],
		Completed:  found[sections.Completed],
		Incomplete: found[sections.Incomplete],
		Insights:   found[sections.Insights],
	}
}

// AnalysisSeparator divides per-chunk analysis results
const AnalysisSeparator = "\n\n---\n\n"

// AnalyzeDigests answers question over digest content. Each chunk's reply
// is kept as prose; a failed chunk leaves a visible error line.
func (e *Extractor) AnalyzeDigests(ctx context.Context, content, question string) (string, error) {
	var results []string
	for _, chunk := range e.split(content, constants.DigestBudgetRatio) {
		values := chunkVars(chunk)
		values["Question"] = question

		reply, err := e.call(ctx, promptAnalyze, values)
		if err != nil {
			if fatal := degrade(ctx, "analyze", chunk, err); fatal != nil {
				return strings.Join(results, AnalysisSeparator), fatal
			}
			results = append(results, fmt.Sprintf("Error analyzing chunk %d: %v", chunk.Index+1, err))
			continue
		}
		results = append(results, reply)
	}
	return strings.Join(results, AnalysisSeparator), nil
}
