package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-pensieve/internal/application/pipeline"
	"github.com/penwyp/go-pensieve/internal/core/constants"
	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/util"
)

var (
	digestCycle  string
	digestDate   string
	digestLimit  int
	digestPrompt string
)

const defaultAnalyzePrompt = "What patterns, recurring blockers and progress trends show up across these digests?"

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Generate, list and analyze periodic digests",
}

var digestGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Summarize the journal notes of one daily, weekly or monthly cycle",
	Long: `Collects the journal notes modified inside the cycle containing --date and writes
a digest document to <memory>/digests. Running again for the same cycle overwrites it.`,
	RunE: runDigestGenerate,
}

var digestAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ask a question across the most recent digests",
	RunE:  runDigestAnalyze,
}

var digestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent digests of a cycle",
	RunE:  runDigestList,
}

func init() {
	rootCmd.AddCommand(digestCmd)
	digestCmd.AddCommand(digestGenerateCmd, digestAnalyzeCmd, digestListCmd)

	digestCmd.PersistentFlags().StringVar(&digestCycle, "cycle", "",
		"Cycle kind (daily, weekly, monthly), defaults to the configured cycle")
	digestGenerateCmd.Flags().StringVar(&digestDate, "date", "",
		"Any date inside the cycle, YYYY-MM-DD (default today)")
	digestAnalyzeCmd.Flags().IntVar(&digestLimit, "limit", constants.DefaultDigestLimit,
		"Number of recent digests to analyze")
	digestAnalyzeCmd.Flags().StringVar(&digestPrompt, "prompt", defaultAnalyzePrompt,
		"Question to answer")
	digestListCmd.Flags().IntVar(&digestLimit, "limit", constants.DefaultDigestLimit,
		"Number of digests to list")
}

func (a *app) cycleKind() (cycle.Kind, error) {
	if digestCycle != "" {
		return cycle.ParseKind(digestCycle)
	}
	return cycle.ParseKind(a.settings.Digest.Cycle)
}

func anchorDate(date string) (time.Time, error) {
	tp := util.GetTimeProvider()
	if date == "" {
		return tp.Now(), nil
	}
	return tp.ParseDate(date)
}

func runDigestGenerate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	kind, err := a.cycleKind()
	if err != nil {
		return err
	}
	anchor, err := anchorDate(digestDate)
	if err != nil {
		return err
	}

	lock, err := a.lock(pipeline.FlowDigest)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	return result(a.service.GenerateDigest(cmd.Context(), kind, anchor))
}

func runDigestAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	kind, err := a.cycleKind()
	if err != nil {
		return err
	}

	analysis, sum := a.service.AnalyzeDigests(cmd.Context(), kind, digestLimit, digestPrompt)
	if analysis != "" {
		fmt.Fprintf(a.out, "\n%s\n", analysis)
	}
	return result(sum)
}

func runDigestList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	kind, err := a.cycleKind()
	if err != nil {
		return err
	}
	digests, err := a.service.RecentDigests(cmd.Context(), kind, digestLimit)
	if err != nil {
		return err
	}
	if len(digests) == 0 {
		fmt.Fprintf(a.out, "No %s digests found\n", kind)
		return nil
	}

	now := util.GetTimeProvider().Now()
	rows := make([][]string, len(digests))
	for i, d := range digests {
		rows[i] = []string{d.Name, util.TimeAgo(d.ModTime, now), d.ID}
	}
	fmt.Fprint(a.out, util.RenderTable([]string{"Digest", "Updated", "Path"}, rows, util.TerminalWidth()))
	return nil
}
