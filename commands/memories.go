package commands

import (
	"github.com/spf13/cobra"

	"github.com/penwyp/go-pensieve/internal/application/pipeline"
)

var memoriesCmd = &cobra.Command{
	Use:   "memories [project...]",
	Short: "Update tasks, status and insights memories of projects",
	Long: `Reads the journal notes mentioning each project and appends a dated section to the
project's tasks.md, status.md and insights.md under the memory folder.

Without arguments every project folder under the project root is updated.`,
	RunE: runMemories,
}

func init() {
	rootCmd.AddCommand(memoriesCmd)
}

func runMemories(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	lock, err := a.lock(pipeline.FlowMemories)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	return result(a.service.UpdateMemories(cmd.Context(), args...))
}
