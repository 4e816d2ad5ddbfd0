package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-pensieve/internal/application/pipeline"
)

var refineResetCheckpoint bool

var refineCmd = &cobra.Command{
	Use:   "refine [project...]",
	Short: "Refine new project notes into clean notes",
	Long: `Rewrites every project note not yet refined into clean notes under the clean output folder.
Notes are grouped in batches sized by the compression ratio; the project's checkpoint is
committed after each batch, so an interrupted run resumes where it stopped.

A note is identified by its path. Edited notes that were already refined are not refined
again; use --reset-checkpoint to refine every note of a project from scratch.`,
	RunE: runRefine,
}

func init() {
	rootCmd.AddCommand(refineCmd)

	refineCmd.Flags().BoolVar(&refineResetCheckpoint, "reset-checkpoint", false,
		"Forget which notes were refined before running")
}

func runRefine(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	lock, err := a.lock(pipeline.FlowRefine)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if refineResetCheckpoint {
		projects := args
		if len(projects) == 0 {
			if projects, err = a.service.Projects(cmd.Context()); err != nil {
				return err
			}
		}
		for _, p := range projects {
			if err := a.service.Checkpoints().Reset(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Checkpoint reset: %s\n", p)
		}
	}

	return result(a.service.RefineNotes(cmd.Context(), args...))
}
