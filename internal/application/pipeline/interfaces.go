package pipeline

import (
	"context"

	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/core/model"
	"github.com/penwyp/go-pensieve/internal/data/ledger"
	"github.com/penwyp/go-pensieve/internal/extractor"
)

// Extraction runs the per-chunk generation flows
type Extraction interface {
	// ExtractTasks extracts explicit and implied tasks
	ExtractTasks(ctx context.Context, content string) (model.TaskSet, error)
	// ExtractInsights extracts blockers, bugs, achievements and general insights
	ExtractInsights(ctx context.Context, content string) (model.InsightSet, error)
	// DetermineStatus asks for the project status, falling back to metadata
	DetermineStatus(ctx context.Context, content string, meta model.StatusMetadata) (model.StatusRecord, error)
	// RefineNotes rewrites raw notes into refined notes
	RefineNotes(ctx context.Context, content string, opts extractor.RefineOptions) ([]model.RefinedNote, error)
	// GenerateDigest summarizes one cycle of notes
	GenerateDigest(ctx context.Context, content string, kind cycle.Kind, date string) (model.DigestRecord, error)
	// AnalyzeDigests answers a question over digest content
	AnalyzeDigests(ctx context.Context, content, question string) (string, error)
}

// RunRecorder keeps the history of flow runs
type RunRecorder interface {
	// Record stores one finished run
	Record(ctx context.Context, run ledger.Run) error
}

var (
	_ Extraction  = (*extractor.Extractor)(nil)
	_ RunRecorder = (*ledger.Ledger)(nil)
)

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, ledger.Run) error { return nil }
