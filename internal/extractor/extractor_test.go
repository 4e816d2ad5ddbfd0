package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/core/model"
)

type reply struct {
	text string
	err  error
}

// fakeGenerator returns scripted replies in order, repeating the last one
type fakeGenerator struct {
	window  int
	replies []reply
	calls   []Prompt
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	f.calls = append(f.calls, Prompt{System: system, User: user})
	if len(f.replies) == 0 {
		return "", nil
	}
	i := len(f.calls) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i].text, f.replies[i].err
}

func (f *fakeGenerator) ContextWindow() int {
	if f.window == 0 {
		return 4096
	}
	return f.window
}

func transportErr() error {
	return &failure.Error{Kind: failure.TransportFailure, Op: "invoke", Provider: "openai", Err: errors.New("connection refused")}
}

// lines builds content that splits into n chunks under a tiny window
func lines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(strings.Repeat("x", 60))
		b.WriteString("\n")
	}
	return b.String()
}

func TestRenderPrompt(t *testing.T) {
	p, err := renderPrompt(promptTasks, vars{"Part": "1", "Parts": "2", "Content": "notes with {{.Part}} inside"})
	require.NoError(t, err)
	assert.Contains(t, p.System, "EXPLICIT TASKS:")
	assert.Contains(t, p.User, "(part 1/2)")
	assert.Contains(t, p.User, "notes with {{.Part}} inside")

	_, err = renderPrompt(promptTasks, vars{"Part": "1", "Content": "x"})
	assert.ErrorContains(t, err, "{{.Parts}}")

	_, err = renderPrompt(promptTasks, vars{"Part": "1", "Parts": "1", "Content": "x", "Extra": "y"})
	assert.ErrorContains(t, err, "{{.Extra}}")
}

func TestExtractTasksMergesChunksInOrder(t *testing.T) {
	gen := &fakeGenerator{
		window: 40, // 20 units per chunk, one line each
		replies: []reply{
			{text: "EXPLICIT TASKS:\n- [ ] first (from: a.md)\nIMPLIED TASKS:\n- follow up"},
			{err: transportErr()},
			{text: "**EXPLICIT TASKS**:\n- [x] third"},
		},
	}

	tasks, err := New(gen).ExtractTasks(context.Background(), lines(3))
	require.NoError(t, err)
	require.Len(t, gen.calls, 3)

	require.Len(t, tasks.Explicit, 2)
	assert.Equal(t, "first", tasks.Explicit[0].Text)
	assert.Equal(t, "a.md", tasks.Explicit[0].Source)
	assert.Equal(t, "third", tasks.Explicit[1].Text)
	assert.True(t, tasks.Explicit[1].Completed)
	require.Len(t, tasks.Implied, 1)
	assert.Equal(t, model.DefaultRecordSource, tasks.Implied[0].Source)
	assert.Contains(t, gen.calls[2].User, "(part 3/3)")
}

func TestExtractInsightsStopsOnRateLimit(t *testing.T) {
	gen := &fakeGenerator{
		window: 40,
		replies: []reply{
			{text: "BLOCKERS:\n- waiting on review"},
			{err: &failure.Error{Kind: failure.RateLimited, Provider: "openai", Status: 429}},
		},
	}

	insights, err := New(gen).ExtractInsights(context.Background(), lines(3))
	assert.True(t, failure.Is(err, failure.RateLimited))
	assert.Len(t, gen.calls, 2)
	require.Len(t, insights.Blockers, 1)
}

func TestDetermineStatusParsesReply(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{text: "**STATUS:** Near completion\nPROGRESS: 85%\nLAST_ACTIVITY: shipped beta\nSUMMARY: almost done"}}}
	meta := model.StatusMetadata{TotalNotes: 10, RecentNotes: 2, LastActivity: "2 days ago"}

	status, err := New(gen).DetermineStatus(context.Background(), "note", meta)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNearCompletion, status.Status)
	assert.Equal(t, 85, status.Progress)
	assert.Equal(t, "shipped beta", status.LastActivity)
	assert.Equal(t, "almost done", status.Summary)
	assert.False(t, status.Heuristic)
	assert.Contains(t, gen.calls[0].User, "Total notes: 10")
}

func TestDetermineStatusUsesOnlyFirstChunk(t *testing.T) {
	gen := &fakeGenerator{window: 40, replies: []reply{{text: "STATUS: stalled"}}}

	status, err := New(gen).DetermineStatus(context.Background(), lines(4), model.StatusMetadata{})
	require.NoError(t, err)
	assert.Len(t, gen.calls, 1)
	assert.Equal(t, model.StatusStalled, status.Status)
	assert.Equal(t, 50, status.Progress)
}

func TestDetermineStatusFallsBackOnTransportFailure(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{err: transportErr()}}}
	meta := model.StatusMetadata{TotalNotes: 8, RecentNotes: 3, LastActivity: "today"}

	status, err := New(gen).DetermineStatus(context.Background(), "notes", meta)
	require.NoError(t, err)
	assert.True(t, status.Heuristic)
	assert.Equal(t, model.StatusActive, status.Status)
	assert.Equal(t, 38, status.Progress) // round(3/8*100)
	assert.Equal(t, "today", status.LastActivity)
}

func TestDetermineStatusFallsBackOnEmpty(t *testing.T) {
	meta := model.StatusMetadata{TotalNotes: 0, RecentNotes: 0}

	status, err := New(&fakeGenerator{}).DetermineStatus(context.Background(), "   ", meta)
	require.NoError(t, err)
	assert.True(t, status.Heuristic)
	assert.Equal(t, 0, status.Progress)

	status, err = New(&fakeGenerator{replies: []reply{{text: "  "}}}).DetermineStatus(context.Background(), "notes", meta)
	require.NoError(t, err)
	assert.True(t, status.Heuristic)
}

func TestDetermineStatusAuthFailureIsReturned(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{err: &failure.Error{Kind: failure.AuthFailure, Status: 401}}}}

	status, err := New(gen).DetermineStatus(context.Background(), "notes", model.StatusMetadata{TotalNotes: 1, RecentNotes: 1})
	assert.True(t, failure.Is(err, failure.AuthFailure))
	assert.True(t, status.Heuristic)
}

func TestParseStatusDefaults(t *testing.T) {
	status := ParseStatus("no markers here", model.StatusMetadata{LastActivity: "yesterday", TotalNotes: 4})
	assert.Equal(t, model.StatusActive, status.Status)
	assert.Equal(t, 50, status.Progress)
	assert.Equal(t, "yesterday", status.LastActivity)
	assert.Equal(t, 4, status.TotalNotes)

	status = ParseStatus("STATUS: [inactive]\nPROGRESS: 140%", model.StatusMetadata{})
	assert.Equal(t, model.StatusInactive, status.Status)
	assert.Equal(t, 100, status.Progress)

	status = ParseStatus("STATUS: thriving", model.StatusMetadata{})
	assert.Equal(t, model.StatusActive, status.Status)
}

func TestRefineNotesInvalidJSONNeverDropsContent(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{text: `[{"title": "Broken", "content": ` + "\nno closing"}}}

	notes, err := New(gen).RefineNotes(context.Background(), "raw note text", RefineOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, notes)

	total := 0
	for _, n := range notes {
		total += len(n.Content)
	}
	assert.Greater(t, total, 0)
	assert.Equal(t, "Refined Notes", notes[0].Title)
}

func TestRefineNotesFailedChunkWrapsSource(t *testing.T) {
	gen := &fakeGenerator{window: 40, replies: []reply{
		{text: `[{"title":"One","content":"first"}]`},
		{err: transportErr()},
	}}
	alpha := "alpha " + strings.Repeat("a", 60)
	beta := "beta " + strings.Repeat("b", 60)
	content := alpha + "\n" + beta

	notes, err := New(gen).RefineNotes(context.Background(), content, RefineOptions{Tone: "storytelling", Emojification: true})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "One", notes[0].Title)
	assert.Equal(t, "Refined Notes - Chunk 2", notes[1].Title)
	assert.Equal(t, "# Refined Notes\n\n"+beta, notes[1].Content)

	assert.Contains(t, gen.calls[0].User, "narrative")
	assert.Contains(t, gen.calls[0].User, "emojis to improve")
	assert.Contains(t, gen.calls[0].User, "No recent insights available")
	assert.Contains(t, gen.calls[0].User, "Target compression: 0.3")
}

func TestParseRefined(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		titles []string
	}{
		{
			name:   "json array inside prose",
			reply:  "Here you go:\n[{\"title\":\"Plan\",\"content\":\"step one\"},{\"content\":\"orphan\"}]\nThanks",
			titles: []string{"Plan", model.DefaultNoteTitle},
		},
		{
			name:   "markdown headings",
			reply:  "intro\n# First\nbody one\n# Second\nbody two\n# Empty\n",
			titles: []string{model.DefaultNoteTitle, "First", "Second"},
		},
		{
			name:   "plain text",
			reply:  "just some prose",
			titles: []string{"Refined Notes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var titles []string
			for _, n := range ParseRefined(tt.reply) {
				titles = append(titles, n.Title)
				assert.NotEmpty(t, n.Content)
			}
			assert.Equal(t, tt.titles, titles)
		})
	}
}

func TestGenerateDigestMergesAndSubstitutes(t *testing.T) {
	gen := &fakeGenerator{window: 40, replies: []reply{
		{text: "SUMMARY:\nBusy day\nCOMPLETED:\n- shipped\nINCOMPLETE:\n- docs\nINSIGHTS:\n- mornings work"},
		{err: transportErr()},
	}}

	digest, err := New(gen).GenerateDigest(context.Background(), lines(2), cycle.Weekly, "2024-04-01")
	require.NoError(t, err)

	assert.Equal(t, "Busy day\n\nProcessed notes from chunk 2", digest.Summary)
	assert.Equal(t, "- shipped\n\nNo completed tasks identified", digest.Completed)
	assert.Equal(t, "- docs\n\nNo incomplete tasks identified", digest.Incomplete)
	assert.Equal(t, "- mornings work\n\nNo insights available", digest.Insights)
	assert.Contains(t, gen.calls[0].User, "weekly digest for 2024-04-01")
	assert.Contains(t, gen.calls[0].User, "patterns across the week")
}

func TestAnalyzeDigestsJoinsResults(t *testing.T) {
	gen := &fakeGenerator{window: 40, replies: []reply{
		{text: "trend one"},
		{err: transportErr()},
		{text: "trend three"},
	}}

	out, err := New(gen).AnalyzeDigests(context.Background(), lines(3), "What slowed me down?")
	require.NoError(t, err)

	parts := strings.Split(out, AnalysisSeparator)
	require.Len(t, parts, 3)
	assert.Equal(t, "trend one", parts[0])
	assert.True(t, strings.HasPrefix(parts[1], "Error analyzing chunk 2: "))
	assert.Equal(t, "trend three", parts[2])
	assert.Contains(t, gen.calls[0].User, "Question: What slowed me down?")
}

func TestFlowsSkipEmptyContent(t *testing.T) {
	gen := &fakeGenerator{}
	e := New(gen)

	tasks, err := e.ExtractTasks(context.Background(), "\n \n")
	require.NoError(t, err)
	assert.Zero(t, tasks.Len())

	notes, err := e.RefineNotes(context.Background(), "", RefineOptions{})
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Empty(t, gen.calls)
}
