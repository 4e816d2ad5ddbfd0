// Package pipeline orchestrates the extraction flows: it selects notes from
// the vault, feeds them through the extractor in checkpointed batches and
// persists the resulting memory, refined note and digest documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/penwyp/go-pensieve/internal/core/constants"
	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/core/model"
	"github.com/penwyp/go-pensieve/internal/data/checkpoint"
	"github.com/penwyp/go-pensieve/internal/data/ledger"
	"github.com/penwyp/go-pensieve/internal/data/scanner"
	"github.com/penwyp/go-pensieve/internal/data/store"
	"github.com/penwyp/go-pensieve/internal/extractor"
	"github.com/penwyp/go-pensieve/internal/util"
)

// Flow names, used in summaries and the run ledger
const (
	FlowMemories = "memories"
	FlowRefine   = "refine"
	FlowDigest   = "digest"
	FlowAnalyze  = "analyze"
)

// Deps are the collaborators of a Service
type Deps struct {
	Store      store.Store
	Extraction Extraction
	Recorder   RunRecorder
	Notifier   Notifier
}

// Service runs the extraction flows against one vault
type Service struct {
	cfg         Config
	docs        store.Store
	notes       *scanner.NoteScanner
	extract     Extraction
	checkpoints *checkpoint.Store
	runner      *Runner
	recorder    RunRecorder
	notifier    Notifier
}

// NewService creates a service. Recorder and Notifier are optional.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Extraction == nil {
		return nil, errors.New("pipeline needs a document store and an extraction backend")
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}

	checkpoints := checkpoint.NewStore(deps.Store, cfg.CleanFolder)
	return &Service{
		cfg:         cfg,
		docs:        deps.Store,
		notes:       scanner.NewNoteScanner(deps.Store).Exclude(cfg.CleanFolder, cfg.MemoryFolder),
		extract:     deps.Extraction,
		checkpoints: checkpoints,
		runner:      NewRunner(checkpoints),
		recorder:    deps.Recorder,
		notifier:    deps.Notifier,
	}, nil
}

// Config returns the service configuration
func (s *Service) Config() Config {
	return s.cfg
}

// Checkpoints returns the refinement checkpoint store
func (s *Service) Checkpoints() *checkpoint.Store {
	return s.checkpoints
}

// Projects lists project folders under the project root by name, excluded
// projects left out.
func (s *Service) Projects(ctx context.Context) ([]string, error) {
	entries, err := s.docs.ListChildren(ctx, s.cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}
	var projects []string
	for _, e := range entries {
		if e.IsDir && !s.cfg.excluded(e.Name) && !strings.HasPrefix(e.Name, ".") {
			projects = append(projects, e.Name)
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// selectProjects resolves the requested projects, all when none given, and
// counts the excluded ones as skipped.
func (s *Service) selectProjects(ctx context.Context, requested []string, sum *Summary) ([]string, error) {
	if len(requested) == 0 {
		return s.Projects(ctx)
	}
	var out []string
	for _, p := range requested {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		if s.cfg.excluded(p) {
			util.Log(ctx).Info("Skip excluded project", util.F("project", p))
			sum.Skipped++
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// journalNotes scans the journal folder; a missing folder has no notes
func (s *Service) journalNotes(ctx context.Context) ([]model.SourceItem, error) {
	notes, err := s.notes.Scan(ctx, s.cfg.JournalFolder)
	if err != nil && store.IsNotFound(err) {
		return nil, nil
	}
	return notes, err
}

// begin tags ctx with a new run id
func (s *Service) begin(ctx context.Context, flow string) (context.Context, Summary, time.Time) {
	ctx, id := util.WithRunID(ctx, flow)
	util.Log(ctx).Info("Flow started")
	return ctx, Summary{Flow: flow, RunID: id}, time.Now()
}

// finish records the run and sends the one notification of the flow
func (s *Service) finish(ctx context.Context, sum Summary, started time.Time, scope string, batches int) Summary {
	finished := time.Now()
	sum.Duration = finished.Sub(started)
	if sum.Err != nil {
		sum.Kind = failure.KindOf(sum.Err)
	}

	run := ledger.Run{
		RunID:      sum.RunID,
		Flow:       sum.Flow,
		Scope:      scope,
		StartedAt:  started,
		FinishedAt: finished,
		Items:      sum.Items,
		Batches:    batches,
		Status:     runStatus(sum),
		Message:    sum.Message,
	}
	if sum.Err != nil {
		run.ErrorKind = sum.Kind.String()
		run.Message = sum.Err.Error()
	}
	// a cancelled flow still gets its row
	if err := s.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		util.Log(ctx).Warn("Failed to record run", util.F("error", err))
	}

	s.notifier.Notify(sum)
	return sum
}

func runStatus(sum Summary) string {
	switch {
	case sum.Err != nil && sum.Outputs > 0:
		return ledger.StatusPartial
	case sum.Err != nil:
		return ledger.StatusFailed
	case sum.Items == 0:
		return ledger.StatusSkipped
	}
	return ledger.StatusOK
}

func (s *Service) today() string {
	return util.GetTimeProvider().FormatDate(util.GetTimeProvider().Now())
}

// UpdateMemories appends a dated tasks, status and insights section to the
// memory documents of each project mentioned in the journal. Memories are
// rebuilt from every matching note on each run.
func (s *Service) UpdateMemories(ctx context.Context, projects ...string) Summary {
	ctx, sum, started := s.begin(ctx, FlowMemories)

	selected, err := s.selectProjects(ctx, projects, &sum)
	if err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, "", 0)
	}
	journal, err := s.journalNotes(ctx)
	if err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, "", 0)
	}
	if len(journal) == 0 {
		sum.Message = "No journal notes found"
		return s.finish(ctx, sum, started, "", 0)
	}

	for _, p := range selected {
		if err := s.updateProjectMemory(ctx, p, journal, &sum); err != nil {
			sum.Err = fmt.Errorf("update memories for %s: %w", p, err)
			break
		}
	}
	if sum.Err == nil {
		sum.Message = fmt.Sprintf("Updated memories for %d project(s)", sum.Scopes)
	}
	return s.finish(ctx, sum, started, strings.Join(selected, ","), 0)
}

// projectNotes keeps notes whose id mentions project, case-insensitively
func projectNotes(journal []model.SourceItem, project string) []model.SourceItem {
	needle := strings.ToLower(project)
	var out []model.SourceItem
	for _, n := range journal {
		if strings.Contains(strings.ToLower(n.ID), needle) {
			out = append(out, n)
		}
	}
	return out
}

func (s *Service) statusMetadata(notes []model.SourceItem) model.StatusMetadata {
	now := util.GetTimeProvider().Now()
	meta := model.StatusMetadata{TotalNotes: len(notes)}
	for _, n := range notes {
		if now.Sub(n.ModTime) <= s.cfg.RecentWindow {
			meta.RecentNotes++
		}
	}
	if len(notes) > 0 {
		meta.LastActivity = util.TimeAgo(notes[0].ModTime, now)
	}
	return meta
}

func (s *Service) updateProjectMemory(ctx context.Context, project string, journal []model.SourceItem, sum *Summary) error {
	log := util.Log(ctx).With(util.F("project", project))
	notes := projectNotes(journal, project)
	if len(notes) == 0 {
		log.Debug("No journal notes mention project")
		return nil
	}
	content, err := combineNotes(ctx, s.docs, notes, noteLabel)
	if err != nil {
		return err
	}

	insights, err := s.extract.ExtractInsights(ctx, content)
	if err != nil {
		return err
	}
	tasks, err := s.extract.ExtractTasks(ctx, content)
	if err != nil {
		return err
	}
	status, err := s.extract.DetermineStatus(ctx, content, s.statusMetadata(notes))
	if err != nil {
		return err
	}

	date := s.today()
	writes := []struct {
		file, title, section string
	}{
		{constants.TasksFile, titleTasks, tasksSection(date, tasks)},
		{constants.StatusFile, titleStatus, statusSection(date, status)},
		{constants.InsightsFile, titleInsights, insightsSection(date, insights)},
	}
	for _, w := range writes {
		id := s.cfg.memoryDocument(project, w.file)
		if err := appendSection(ctx, s.docs, id, project, w.title, w.section); err != nil {
			return err
		}
		sum.Outputs++
		sum.Documents = append(sum.Documents, id)
	}

	sum.Scopes++
	sum.Items += len(notes)
	log.Info("Memories updated",
		util.F("notes", len(notes)),
		util.F("tasks", tasks.Len()),
		util.F("insights", insights.Len()),
		util.F("status", string(status.Status)))
	return nil
}

// latestInsights returns the newest insights section of a project's memory
// and its date heading, empty when there is none.
func (s *Service) latestInsights(ctx context.Context, project string) (date, body string) {
	id := s.cfg.memoryDocument(project, constants.InsightsFile)
	exists, err := s.docs.Exists(ctx, id)
	if err != nil || !exists {
		return "", ""
	}
	text, err := s.docs.Read(ctx, id)
	if err != nil {
		util.Log(ctx).Warn("Cannot read project insights", util.F("document", id), util.F("error", err))
		return "", ""
	}
	return lastSection(text)
}

// RefineNotes rewrites each project's unprocessed notes into refined notes
// under the clean output folder, one checkpoint commit per batch.
func (s *Service) RefineNotes(ctx context.Context, projects ...string) Summary {
	ctx, sum, started := s.begin(ctx, FlowRefine)

	selected, err := s.selectProjects(ctx, projects, &sum)
	if err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, "", 0)
	}

	batches := 0
	for _, p := range selected {
		n, err := s.refineProject(ctx, p, &sum)
		batches += n
		if err != nil {
			sum.Err = fmt.Errorf("refine %s: %w", p, err)
			break
		}
	}
	if sum.Err == nil {
		sum.Message = fmt.Sprintf("Refined %d note(s) into %d document(s) across %d project(s)",
			sum.Items, sum.Outputs, sum.Scopes)
	}
	return s.finish(ctx, sum, started, strings.Join(selected, ","), batches)
}

func (s *Service) refineProject(ctx context.Context, project string, sum *Summary) (int, error) {
	log := util.Log(ctx).With(util.F("project", project))

	projectFolder := s.cfg.ProjectRoot + "/" + project
	found, err := s.docs.Exists(ctx, projectFolder)
	if err != nil {
		return 0, err
	}
	if !found {
		log.Warn("Project folder not found", util.F("folder", projectFolder))
		sum.Skipped++
		return 0, nil
	}
	notes, err := s.notes.Scan(ctx, projectFolder)
	if err != nil {
		return 0, err
	}

	usedDate, insights := s.latestInsights(ctx, project)
	opts := extractor.RefineOptions{
		Tone:             s.cfg.Tone,
		Verbosity:        s.cfg.Verbosity,
		Emojification:    s.cfg.Emojification,
		CompressionRatio: s.cfg.CompressionRatio,
		MemoryInsights:   insights,
	}
	folder := s.cfg.cleanFolder(project)
	date := s.today()

	var inputs []string
	outputs := 0
	progress, runErr := s.runner.Run(ctx, Job{
		Scope:       project,
		Items:       notes,
		Ratio:       s.cfg.CompressionRatio,
		ContextUsed: usedDate,
		Process: func(ctx context.Context, b Batch) error {
			content, err := combineNotes(ctx, s.docs, b.Items, noteLabel)
			if err != nil {
				return err
			}
			refined, err := s.extract.RefineNotes(ctx, content, opts)
			if err != nil {
				return err
			}
			for _, note := range refined {
				id, err := refinedNoteID(ctx, s.docs, folder, note.Title)
				if err != nil {
					return err
				}
				if err := s.docs.Write(ctx, id, refinedNoteDocument(note, b.Index+1, date)); err != nil {
					return err
				}
				sum.Documents = append(sum.Documents, id)
			}
			for _, item := range b.Items {
				inputs = append(inputs, item.Name)
			}
			outputs += len(refined)
			return nil
		},
	})

	sum.Items += progress.Items
	sum.Outputs += outputs
	if progress.Pending == 0 {
		log.Debug("Nothing new to refine")
		return 0, runErr
	}
	if len(inputs) > 0 {
		treeID := folder + "/" + constants.ProjectTreeFile
		if err := appendProjectTree(context.WithoutCancel(ctx), s.docs, treeID, projectTreeEntry(date, inputs, outputs)); err != nil && runErr == nil {
			runErr = err
		}
	}
	if progress.Committed > 0 {
		sum.Scopes++
	}
	return progress.Batches, runErr
}

// GenerateDigest summarizes the journal notes modified inside the cycle
// window containing anchor. The digest document is overwritten on re-run.
func (s *Service) GenerateDigest(ctx context.Context, kind cycle.Kind, anchor time.Time) Summary {
	ctx, sum, started := s.begin(ctx, FlowDigest)
	scope := string(kind)

	w, err := cycle.WindowFor(kind, anchor)
	if err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, scope, 0)
	}
	name, err := cycle.DigestName(kind, w.Start)
	if err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, scope, 0)
	}

	journal, err := s.journalNotes(ctx)
	if err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, scope, 0)
	}
	if len(journal) == 0 {
		sum.Message = "No journal notes found for digest generation"
		return s.finish(ctx, sum, started, scope, 0)
	}
	date := util.GetTimeProvider().FormatDate(anchor)
	notes := scanner.Between(journal, w.Start, w.End)
	if len(notes) == 0 {
		sum.Message = fmt.Sprintf("No notes found for %s cycle ending %s", kind, date)
		return s.finish(ctx, sum, started, scope, 0)
	}

	content, err := combineNotes(ctx, s.docs, notes, datedNoteLabel)
	if err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, scope, 0)
	}
	rec, err := s.extract.GenerateDigest(ctx, content, kind, date)
	if err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, scope, 0)
	}

	id := s.cfg.digestFolder() + "/" + name + ".md"
	doc := digestDocument(w, rec, notes, util.GetTimeProvider().Now(), s.cfg.Digest)
	if err := s.docs.Write(ctx, id, doc); err != nil {
		sum.Err = err
		return s.finish(ctx, sum, started, scope, 0)
	}

	sum.Scopes = 1
	sum.Items = len(notes)
	sum.Outputs = 1
	sum.Documents = []string{id}
	sum.Message = fmt.Sprintf("%s digest generated from %d note(s)", kind.Title(), len(notes))
	return s.finish(ctx, sum, started, scope, 1)
}

// RecentDigests returns up to limit digests of kind, newest first
func (s *Service) RecentDigests(ctx context.Context, kind cycle.Kind, limit int) ([]model.SourceItem, error) {
	if limit <= 0 {
		limit = constants.DefaultDigestLimit
	}
	entries, err := s.docs.ListChildren(ctx, s.cfg.digestFolder())
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	suffix := cycle.DigestSuffix(kind)
	var digests []model.SourceItem
	for _, e := range entries {
		if !e.IsDir && strings.Contains(e.Name, suffix) {
			digests = append(digests, model.SourceItem{ID: e.ID, Name: e.Name, ModTime: e.ModTime})
		}
	}
	scanner.SortNewestFirst(digests)
	if len(digests) > limit {
		digests = digests[:limit]
	}
	return digests, nil
}

// AnalyzeDigests answers question over the most recent digests of kind and
// returns the analysis text.
func (s *Service) AnalyzeDigests(ctx context.Context, kind cycle.Kind, limit int, question string) (string, Summary) {
	ctx, sum, started := s.begin(ctx, FlowAnalyze)
	scope := string(kind)

	if _, err := cycle.ParseKind(string(kind)); err != nil {
		sum.Err = err
		return "", s.finish(ctx, sum, started, scope, 0)
	}
	digests, err := s.RecentDigests(ctx, kind, limit)
	if err != nil {
		sum.Err = err
		return "", s.finish(ctx, sum, started, scope, 0)
	}
	if len(digests) == 0 {
		sum.Message = fmt.Sprintf("No %s digests found to analyze", kind)
		return "", s.finish(ctx, sum, started, scope, 0)
	}

	content, err := combineNotes(ctx, s.docs, digests, noteLabel)
	if err != nil {
		sum.Err = err
		return "", s.finish(ctx, sum, started, scope, 0)
	}
	analysis, err := s.extract.AnalyzeDigests(ctx, content, question)
	if err != nil {
		sum.Err = err
		return "", s.finish(ctx, sum, started, scope, 0)
	}

	sum.Scopes = 1
	sum.Items = len(digests)
	sum.Outputs = 1
	sum.Message = fmt.Sprintf("Analyzed %d %s digest(s)", len(digests), kind)
	return analysis, s.finish(ctx, sum, started, scope, 1)
}
