package pipeline

import (
	"context"

	"github.com/penwyp/go-pensieve/internal/core/batch"
	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/core/model"
	"github.com/penwyp/go-pensieve/internal/data/checkpoint"
	"github.com/penwyp/go-pensieve/internal/util"
)

// Batch is one planned slice of unprocessed notes
type Batch struct {
	Index int
	Total int
	Items []model.SourceItem
}

// IDs returns the identities of the batch's notes
func (b Batch) IDs() []string {
	ids := make([]string, len(b.Items))
	for i, item := range b.Items {
		ids[i] = item.ID
	}
	return ids
}

// Job describes one checkpointed run over a scope
type Job struct {
	Scope string
	Items []model.SourceItem
	Ratio float64
	// recorded as the checkpoint's lastMemoryUsed, when set
	ContextUsed string
	// Process handles one batch. Output must be persisted before it returns;
	// an error stops the run before the batch is committed.
	Process func(ctx context.Context, b Batch) error
}

// Progress is what a run got through
type Progress struct {
	Pending   int
	Batches   int
	Committed int
	Items     int
}

// Runner drives the checkpointed batch loop
type Runner struct {
	checkpoints *checkpoint.Store
}

// NewRunner creates a runner committing to checkpoints
func NewRunner(checkpoints *checkpoint.Store) *Runner {
	return &Runner{checkpoints: checkpoints}
}

// Run loads the scope checkpoint, plans the unprocessed notes into batches and
// processes them in order, committing the checkpoint after each batch.
func (r *Runner) Run(ctx context.Context, job Job) (Progress, error) {
	var p Progress
	log := util.Log(ctx).With(util.F("scope", job.Scope))

	cp, err := r.checkpoints.Load(ctx, job.Scope)
	if err != nil {
		return p, err
	}

	pending := cp.Unprocessed(job.Items)
	p.Pending = len(pending)
	if len(pending) == 0 {
		log.Debug("No unprocessed notes", util.F("processed", cp.Len()))
		return p, nil
	}

	planned := batch.Plan(pending, job.Ratio)
	p.Batches = len(planned)
	log.Info("Planned batches", util.F("pending", len(pending)), util.F("batches", len(planned)))

	for i, items := range planned {
		if err := ctx.Err(); err != nil {
			return p, failure.New(failure.Canceled, "run "+job.Scope, err)
		}

		b := Batch{Index: i, Total: len(planned), Items: items}
		if err := job.Process(ctx, b); err != nil {
			log.Error("Batch failed, checkpoint not advanced",
				util.F("batch", i+1), util.F("kind", failure.KindOf(err).String()), util.F("error", err))
			return p, err
		}

		cp.Add(b.IDs()...)
		cp.LastProcessedAt = util.GetTimeProvider().Now().Format(util.DateTimeLayout)
		if job.ContextUsed != "" {
			cp.LastContextUsed = job.ContextUsed
		}
		// output is already persisted, so the commit outlives a cancel
		if err := r.checkpoints.Commit(context.WithoutCancel(ctx), job.Scope, cp); err != nil {
			return p, err
		}
		p.Committed++
		p.Items += len(items)
	}
	return p, nil
}
