package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-pensieve/internal/application/pipeline"
	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/scheduler"
	"github.com/penwyp/go-pensieve/internal/util"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the enabled periodic jobs until interrupted",
	Long: `Starts the jobs enabled in the schedule settings (auto_update_memories, auto_refine_notes,
auto_digest) at their configured intervals and keeps running until SIGINT or SIGTERM.
A job never overlaps its own previous run.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

// scheduledJob is one flow the schedule command may run
type scheduledJob struct {
	name     string
	enabled  bool
	interval string
	run      func(ctx context.Context)
}

func (a *app) scheduledJobs() []scheduledJob {
	sched := a.settings.Schedule
	return []scheduledJob{
		{pipeline.FlowMemories, sched.AutoUpdateMemories, sched.MemoryInterval, func(ctx context.Context) {
			a.service.UpdateMemories(ctx)
		}},
		{pipeline.FlowRefine, sched.AutoRefineNotes, sched.RefineInterval, func(ctx context.Context) {
			a.service.RefineNotes(ctx)
		}},
		{pipeline.FlowDigest, sched.AutoDigest, sched.DigestInterval, func(ctx context.Context) {
			a.service.GenerateDigest(ctx, cycle.Kind(a.settings.Digest.Cycle), util.GetTimeProvider().Now())
		}},
	}
}

// locked runs fn under the flow's lock, skipping the tick when it is held
func (a *app) locked(flow string, fn func(ctx context.Context)) func(ctx context.Context) {
	return func(ctx context.Context) {
		lock, err := a.lock(flow)
		if err != nil {
			util.LogWarnf("Skip scheduled %s: %v", flow, err)
			return
		}
		defer lock.Unlock()
		fn(ctx)
	}
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	s := scheduler.New(ctx)
	defer s.StopAll()

	for _, job := range a.scheduledJobs() {
		if !job.enabled {
			continue
		}
		interval, err := scheduler.ParseInterval(job.interval)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
		if err := s.Start(job.name, interval, a.locked(job.name, job.run)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Scheduled %s every %s\n", job.name, util.FormatDuration(interval))
	}

	if len(s.Jobs()) == 0 {
		return errors.New("no jobs enabled, set auto_update_memories, auto_refine_notes or auto_digest in the schedule settings")
	}

	<-ctx.Done()
	fmt.Fprintln(a.out, "Stopping scheduled jobs")
	return nil
}
