package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/data/checkpoint"
	"github.com/penwyp/go-pensieve/internal/data/ledger"
	"github.com/penwyp/go-pensieve/internal/data/store"
	"github.com/penwyp/go-pensieve/internal/extractor"
	"github.com/penwyp/go-pensieve/internal/util"
)

// scriptedGenerator answers by flow, recognised from the system prompt
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   map[string]int
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{replies: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func flowOf(system string) string {
	switch {
	case strings.Contains(system, "EXPLICIT TASKS:"):
		return "tasks"
	case strings.Contains(system, "BLOCKERS:"):
		return "insights"
	case strings.Contains(system, "STATUS:"):
		return "status"
	case strings.Contains(system, "JSON array"):
		return "refine"
	case strings.Contains(system, "COMPLETED:"):
		return "digest"
	}
	return "analyze"
}

func (g *scriptedGenerator) Generate(_ context.Context, system, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	flow := flowOf(system)
	g.calls[flow]++
	return g.replies[flow], g.errs[flow]
}

func (g *scriptedGenerator) ContextWindow() int { return 4096 }

type recordingNotifier struct {
	summaries []Summary
}

func (n *recordingNotifier) Notify(s Summary) { n.summaries = append(n.summaries, s) }

type memoryRecorder struct {
	runs []ledger.Run
}

func (r *memoryRecorder) Record(_ context.Context, run ledger.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

// failingStore fails writes whose id matches fail
type failingStore struct {
	store.Store
	fail func(id string) bool
}

func (f *failingStore) Write(ctx context.Context, id, content string) error {
	if f.fail != nil && f.fail(id) {
		return failure.Newf(failure.StorageFailure, "write "+id, "disk full")
	}
	return f.Store.Write(ctx, id, content)
}

type fixture struct {
	docs     *store.FileStore
	gen      *scriptedGenerator
	notifier *recordingNotifier
	recorder *memoryRecorder
	cfg      Config
}

var day1 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, util.InitializeTimeProvider("UTC"))
	now := day1.Add(36 * time.Hour)
	util.GetTimeProvider().SetClock(func() time.Time { return now })
	t.Cleanup(func() { util.GetTimeProvider().SetClock(nil) })

	docs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return &fixture{
		docs:     docs,
		gen:      newScriptedGenerator(),
		notifier: &recordingNotifier{},
		recorder: &memoryRecorder{},
		cfg:      Config{CompressionRatio: 1, Digest: AllDigestSections},
	}
}

func (f *fixture) write(t *testing.T, id, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, f.docs.Write(context.Background(), id, content))
	require.NoError(t, os.Chtimes(filepath.Join(f.docs.Root(), id), mtime, mtime))
}

func (f *fixture) read(t *testing.T, id string) string {
	t.Helper()
	text, err := f.docs.Read(context.Background(), id)
	require.NoError(t, err)
	return text
}

func (f *fixture) service(t *testing.T, docs store.Store) *Service {
	t.Helper()
	if docs == nil {
		docs = f.docs
	}
	svc, err := NewService(f.cfg, Deps{
		Store:      docs,
		Extraction: extractor.New(f.gen),
		Recorder:   f.recorder,
		Notifier:   f.notifier,
	})
	require.NoError(t, err)
	return svc
}

func TestGenerateDigestSelectsWindowNotes(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Journal/morning.md", "wrote the parser", day1)
	f.write(t, "Journal/evening.md", "reviewed tests", day1.Add(6*time.Hour))
	f.write(t, "Journal/next.md", "shipped the parser", day1.Add(24*time.Hour))
	f.gen.replies["digest"] = "SUMMARY:\nShipped the parser\nCOMPLETED:\n- parser release\n"

	svc := f.service(t, nil)
	day2 := day1.Add(26 * time.Hour)
	sum := svc.GenerateDigest(context.Background(), cycle.Daily, day2)

	require.NoError(t, sum.Err)
	assert.Equal(t, 1, sum.Items)
	assert.Equal(t, []string{"Memory/digests/2024-05-02-daily-digest.md"}, sum.Documents)

	doc := f.read(t, "Memory/digests/2024-05-02-daily-digest.md")
	assert.Contains(t, doc, "cycle_type: daily")
	assert.Contains(t, doc, "source_notes_count: 1")
	assert.Contains(t, doc, `source_notes: ["Journal/next.md"]`)
	assert.Contains(t, doc, "# Daily Digest")
	assert.Contains(t, doc, "Shipped the parser")
	assert.Contains(t, doc, "No incomplete tasks identified")

	var sourceLines int
	for _, line := range strings.Split(doc, "\n") {
		if strings.HasPrefix(line, "- [[") {
			sourceLines++
		}
	}
	assert.Equal(t, 1, sourceLines)
	assert.Contains(t, doc, "- [[Journal/next.md|next.md]] (2024-05-02)")

	// same window, same document
	sum = svc.GenerateDigest(context.Background(), cycle.Daily, day2.Add(5*time.Hour))
	require.NoError(t, sum.Err)
	entries, err := f.docs.ListChildren(context.Background(), "Memory/digests")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Len(t, f.notifier.summaries, 2)
	require.Len(t, f.recorder.runs, 2)
	assert.Equal(t, ledger.StatusOK, f.recorder.runs[0].Status)
	assert.Equal(t, "daily", f.recorder.runs[0].Scope)
}

func TestGenerateDigestWithoutNotes(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Journal/old.md", "old", day1.AddDate(0, -2, 0))

	sum := f.service(t, nil).GenerateDigest(context.Background(), cycle.Weekly, day1)

	require.NoError(t, sum.Err)
	assert.Contains(t, sum.Message, "No notes found for weekly cycle")
	assert.Zero(t, f.gen.calls["digest"])
	assert.Len(t, f.notifier.summaries, 1)
	assert.Equal(t, ledger.StatusSkipped, f.recorder.runs[0].Status)
}

func TestGenerateDigestRejectsUnknownCycle(t *testing.T) {
	f := newFixture(t)

	sum := f.service(t, nil).GenerateDigest(context.Background(), cycle.Kind("yearly"), day1)

	assert.Equal(t, failure.InvalidCycleKind, sum.Kind)
	assert.Len(t, f.notifier.summaries, 1)
	assert.Equal(t, ledger.StatusFailed, f.recorder.runs[0].Status)
}

func TestUpdateMemoriesAppendsDatedSections(t *testing.T) {
	f := newFixture(t)
	f.cfg.ExcludeProjects = []string{"Beta"}
	ctx := context.Background()
	require.NoError(t, f.docs.CreateFolder(ctx, "Projects/alpha"))
	require.NoError(t, f.docs.CreateFolder(ctx, "Projects/beta"))
	f.write(t, "Journal/2024-05-01 alpha standup.md", "alpha: fix login", day1)
	f.write(t, "Journal/beta notes.md", "beta: nothing", day1)
	f.gen.replies["tasks"] = "EXPLICIT TASKS:\n- [x] Fix login (from: standup)\nIMPLIED TASKS:\n- Write docs (from: standup)\n"
	f.gen.replies["insights"] = "BLOCKERS:\n- Waiting on review (from: standup)\n"
	f.gen.replies["status"] = "STATUS: stalled\nPROGRESS: 40%\nLAST_ACTIVITY: login fix\n"

	svc := f.service(t, nil)
	projects, err := svc.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, projects)

	sum := svc.UpdateMemories(ctx)
	require.NoError(t, sum.Err)
	assert.Equal(t, 1, sum.Scopes)
	assert.Equal(t, 3, sum.Outputs)

	tasks := f.read(t, "Memory/projects/alpha/tasks.md")
	assert.True(t, strings.HasPrefix(tasks, "---\nproject_name: alpha\nmemory_type: Tasks\n---\n# Tasks\n"))
	assert.Contains(t, tasks, "## 2024-05-02\n\n### Explicit Tasks\n\n- ✅ Fix login (from: standup)\n")
	assert.Contains(t, tasks, "- 💭 Write docs (from: standup)")

	status := f.read(t, "Memory/projects/alpha/status.md")
	assert.Contains(t, status, "### Project Status: stalled")
	assert.Contains(t, status, "- **Progress:** 40%")
	assert.Contains(t, status, "- **Total Notes:** 1")

	assert.Contains(t, f.read(t, "Memory/projects/alpha/insights.md"), "- 🚫 Waiting on review (from: standup)")

	exists, err := f.docs.Exists(ctx, "Memory/projects/beta/tasks.md")
	require.NoError(t, err)
	assert.False(t, exists)

	// the next run appends instead of overwriting
	sum = svc.UpdateMemories(ctx, "alpha", "beta")
	require.NoError(t, sum.Err)
	assert.Equal(t, 1, sum.Skipped)
	tasks = f.read(t, "Memory/projects/alpha/tasks.md")
	assert.Equal(t, 2, strings.Count(tasks, "\n## 2024-05-02"))
	assert.Equal(t, 1, strings.Count(tasks, "project_name: alpha"))
}

func TestUpdateMemoriesStopsOnAuthFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.docs.CreateFolder(ctx, "Projects/alpha"))
	f.write(t, "Journal/alpha.md", "alpha", day1)
	f.gen.errs["insights"] = failure.New(failure.AuthFailure, "invoke", nil)

	sum := f.service(t, nil).UpdateMemories(ctx)

	assert.Equal(t, failure.AuthFailure, sum.Kind)
	assert.Zero(t, f.gen.calls["tasks"])
	assert.Len(t, f.notifier.summaries, 1)
}

func TestUpdateMemoriesWithoutJournal(t *testing.T) {
	f := newFixture(t)

	sum := f.service(t, nil).UpdateMemories(context.Background(), "alpha")

	require.NoError(t, sum.Err)
	assert.Equal(t, "No journal notes found", sum.Message)
}

func refineFixture(t *testing.T) *fixture {
	f := newFixture(t)
	f.write(t, "Projects/alpha/one.md", "first idea", day1)
	f.write(t, "Projects/alpha/two.md", "second idea", day1.Add(time.Hour))
	f.write(t, "Projects/alpha/three.md", "third idea", day1.Add(2*time.Hour))
	f.gen.replies["refine"] = `[{"title": "Idea", "content": "clean idea"}]`
	return f
}

func TestRefineNotesCommitsEveryBatch(t *testing.T) {
	f := refineFixture(t)
	f.write(t, "Memory/projects/alpha/insights.md", "# Insights\n\n## 2024-04-30\n\nold\n\n## 2024-05-01\n\n- 💡 latest\n", day1)
	ctx := context.Background()
	svc := f.service(t, nil)

	sum := svc.RefineNotes(ctx, "alpha")
	require.NoError(t, sum.Err)
	assert.Equal(t, 3, sum.Items)
	assert.Equal(t, 3, sum.Outputs)
	assert.Equal(t, 3, f.gen.calls["refine"])

	for _, id := range []string{"CleanNotes/alpha/Idea.md", "CleanNotes/alpha/Idea-1.md", "CleanNotes/alpha/Idea-2.md"} {
		assert.Contains(t, f.read(t, id), "type: refined-note")
	}
	assert.Contains(t, f.read(t, "CleanNotes/alpha/Idea.md"), "title: Idea\ntype: refined-note\nbatch: 1\ncreated: 2024-05-02\n---\n\nclean idea")

	cp, err := svc.Checkpoints().Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"Projects/alpha/three.md", "Projects/alpha/two.md", "Projects/alpha/one.md"}, cp.ProcessedIDs)
	assert.Equal(t, "2024-05-01", cp.LastContextUsed)

	tree := f.read(t, "CleanNotes/alpha/project-tree.md")
	assert.True(t, strings.HasPrefix(tree, projectTreeHeader))
	assert.Contains(t, tree, "### Input Notes\n- three.md\n- two.md\n- one.md\n")
	assert.Contains(t, tree, "- Generated 3 refined note(s)")

	// nothing new: no calls, no tree entry
	sum = svc.RefineNotes(ctx, "alpha")
	require.NoError(t, sum.Err)
	assert.Zero(t, sum.Items)
	assert.Equal(t, 3, f.gen.calls["refine"])
	assert.Equal(t, 1, strings.Count(f.read(t, "CleanNotes/alpha/project-tree.md"), "## 2024-05-02"))
}

func TestRefineNotesStorageFailureKeepsCommittedBatches(t *testing.T) {
	f := refineFixture(t)
	ctx := context.Background()

	writes := 0
	broken := &failingStore{Store: f.docs, fail: func(id string) bool {
		if !strings.HasPrefix(id, "CleanNotes/alpha/Idea") {
			return false
		}
		writes++
		return writes == 2
	}}

	sum := f.service(t, broken).RefineNotes(ctx, "alpha")
	assert.Equal(t, failure.StorageFailure, sum.Kind)
	assert.Equal(t, 1, sum.Items)
	require.Len(t, f.recorder.runs, 1)
	assert.Equal(t, ledger.StatusPartial, f.recorder.runs[0].Status)
	assert.Equal(t, "storage_failure", f.recorder.runs[0].ErrorKind)

	cps := checkpoint.NewStore(f.docs, "CleanNotes")
	cp, err := cps.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"Projects/alpha/three.md"}, cp.ProcessedIDs)

	// a healthy rerun picks up exactly the uncommitted notes
	sum = f.service(t, nil).RefineNotes(ctx, "alpha")
	require.NoError(t, sum.Err)
	assert.Equal(t, 2, sum.Items)
	cp, err = cps.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, cp.ProcessedIDs, 3)
}

func TestRefineNotesRateLimitedLeavesCheckpointEmpty(t *testing.T) {
	f := refineFixture(t)
	f.gen.errs["refine"] = failure.New(failure.RateLimited, "invoke", nil)
	ctx := context.Background()

	svc := f.service(t, nil)
	sum := svc.RefineNotes(ctx, "alpha")

	assert.Equal(t, failure.RateLimited, sum.Kind)
	assert.Equal(t, 1, f.gen.calls["refine"])
	cp, err := svc.Checkpoints().Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Zero(t, cp.Len())
}

func TestRefineNotesInvalidJSONKeepsContent(t *testing.T) {
	f := refineFixture(t)
	f.gen.replies["refine"] = "not json at all"

	sum := f.service(t, nil).RefineNotes(context.Background(), "alpha")

	require.NoError(t, sum.Err)
	assert.Equal(t, 3, sum.Outputs)
	assert.Contains(t, f.read(t, "CleanNotes/alpha/Refined Notes.md"), "not json at all")
}

func TestAnalyzeDigestsUsesNewestOfKind(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Memory/digests/2024-04-29-daily-digest.md", "older", day1.Add(-48*time.Hour))
	f.write(t, "Memory/digests/2024-04-30-daily-digest.md", "newer", day1.Add(-24*time.Hour))
	f.write(t, "Memory/digests/2024-W18-weekly-digest.md", "weekly", day1)
	f.gen.replies["analyze"] = "Trend: steady"
	ctx := context.Background()
	svc := f.service(t, nil)

	recent, err := svc.RecentDigests(ctx, cycle.Daily, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "2024-04-30-daily-digest.md", recent[0].Name)

	analysis, sum := svc.AnalyzeDigests(ctx, cycle.Daily, 5, "What changed?")
	require.NoError(t, sum.Err)
	assert.Equal(t, "Trend: steady", analysis)
	assert.Equal(t, 2, sum.Items)

	analysis, sum = svc.AnalyzeDigests(ctx, cycle.Monthly, 5, "anything?")
	require.NoError(t, sum.Err)
	assert.Empty(t, analysis)
	assert.Contains(t, sum.Message, "No monthly digests")
	assert.Len(t, f.notifier.summaries, 2)
}

func TestRefineNotesKeepsBookkeepingDocuments(t *testing.T) {
	f := newFixture(t)
	f.cfg.CompressionRatio = 0.5
	f.write(t, "Projects/alpha/one.md", "first idea", day1)
	f.write(t, "Projects/alpha/two.md", "second idea", day1.Add(time.Hour))
	f.gen.replies["refine"] = `[{"title": "checkpoint", "content": "refined body"}, {"title": "Project-Tree", "content": "tree body"}]`
	ctx := context.Background()
	svc := f.service(t, nil)

	sum := svc.RefineNotes(ctx, "alpha")
	require.NoError(t, sum.Err)
	assert.Equal(t, []string{"CleanNotes/alpha/checkpoint-1.md", "CleanNotes/alpha/Project-Tree-1.md"}, sum.Documents)

	assert.Contains(t, f.read(t, "CleanNotes/alpha/checkpoint-1.md"), "refined body")
	assert.Contains(t, f.read(t, "CleanNotes/alpha/Project-Tree-1.md"), "tree body")
	assert.True(t, strings.HasPrefix(f.read(t, "CleanNotes/alpha/project-tree.md"), projectTreeHeader))

	cp, err := svc.Checkpoints().Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Len())
}

func TestRefineNotesMissingProjectIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Projects/alpha/one.md", "first idea", day1)
	f.gen.replies["refine"] = `[{"title": "Idea", "content": "clean idea"}]`

	sum := f.service(t, nil).RefineNotes(context.Background(), "alpah", "alpha")
	require.NoError(t, sum.Err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Items)
	assert.Equal(t, 1, f.gen.calls["refine"])

	exists, err := f.docs.Exists(context.Background(), "CleanNotes/alpah")
	require.NoError(t, err)
	assert.False(t, exists)
}
