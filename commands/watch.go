package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-pensieve/internal/application/pipeline"
	"github.com/penwyp/go-pensieve/internal/core/constants"
	"github.com/penwyp/go-pensieve/internal/data/scanner"
	"github.com/penwyp/go-pensieve/internal/util"
	"github.com/penwyp/go-pensieve/internal/watcher"
)

var watchNoDigest bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Update memories whenever journal notes change",
	Long: `Watches the journal folder and, once a burst of saves has settled, updates every
project's memories and regenerates the digest of the current cycle.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchNoDigest, "no-digest", false,
		"Only update memories on change")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	kind, err := a.cycleKind()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if err := a.docs.CreateFolder(ctx, a.settings.JournalFolder); err != nil {
		return err
	}
	journal := filepath.Join(a.docs.Root(), filepath.FromSlash(a.settings.JournalFolder))
	nw, err := watcher.New([]string{journal}, scanner.DefaultExtensions, constants.WatchDebounce)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", journal, err)
	}
	defer nw.Close()

	fmt.Fprintf(a.out, "Watching %s, press Ctrl+C to stop\n", journal)

	for {
		select {
		case <-ctx.Done():
			return nil
		case changed, ok := <-nw.Changes():
			if !ok {
				return nil
			}
			util.LogInfof("%d journal note(s) changed", len(changed))
			a.locked(pipeline.FlowMemories, func(ctx context.Context) {
				a.service.UpdateMemories(ctx)
			})(ctx)
			if watchNoDigest {
				continue
			}
			a.locked(pipeline.FlowDigest, func(ctx context.Context) {
				a.service.GenerateDigest(ctx, kind, util.GetTimeProvider().Now())
			})(ctx)
		}
	}
}
