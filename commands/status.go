package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-pensieve/internal/util"
)

var (
	statusFlow  string
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show refinement checkpoints and recent runs",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlow, "flow", "", "Only show runs of this flow (memories, refine, digest, analyze)")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	width := util.TerminalWidth()

	projects, err := a.service.Projects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(a.out, "No projects found")
	} else {
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			cp, err := a.service.Checkpoints().Load(ctx, p)
			if err != nil {
				return err
			}
			rows = append(rows, []string{p, strconv.Itoa(cp.Len()), dash(cp.LastProcessedAt), dash(cp.LastContextUsed)})
		}
		fmt.Fprint(a.out, util.RenderTable([]string{"Project", "Refined", "Last Refined", "Last Context"}, rows, width))
	}

	if a.ledger == nil {
		return nil
	}
	runs, err := a.ledger.Recent(ctx, statusFlow, statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "\nNo runs recorded yet")
		return nil
	}

	now := util.GetTimeProvider().Now()
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			util.TimeAgo(r.StartedAt, now),
			r.Flow,
			dash(r.Scope),
			r.Status,
			strconv.Itoa(r.Items),
			util.FormatDuration(r.Duration()),
			dash(r.ErrorKind),
		}
	}
	fmt.Fprintln(a.out)
	fmt.Fprint(a.out, util.RenderTable([]string{"Started", "Flow", "Scope", "Status", "Items", "Took", "Error"}, rows, width))
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
