package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Settings file
	configPath string

	// Overrides of the settings file
	vaultDir   string
	provider   string
	modelName  string
	apiKey     string
	timezone   string
	logFormat  string
	ledgerPath string

	// Logging related
	debug bool

	rootCmd = &cobra.Command{
		Use:   "pensieve",
		Short: "Incremental note distillation with LLM backends",
		Long: `pensieve distills a growing vault of markdown notes into structured project memories,
refined notes and periodic digests, using OpenAI, Gemini, Anthropic or a local Ollama model.

Every flow is incremental: refinement keeps a checkpoint per project so each note is refined once,
and an interrupted run resumes after the last committed batch.

Examples:
  pensieve memories                           # Update tasks, status and insights of every project
  pensieve refine alpha --reset-checkpoint    # Re-refine every note of project alpha
  pensieve digest generate --cycle weekly     # Weekly digest for the current week
  pensieve digest analyze --prompt "What slipped?"
  pensieve models test --provider ollama
  pensieve status                             # Checkpoints and recent runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Settings file (.yaml or .toml, default ~/.pensieve/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", "",
		"Vault directory holding the note folders")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "",
		"Generation provider (openai, gemini, anthropic, ollama)")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "",
		"Model name")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "",
		"Provider API key")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "",
		"Timezone setting (e.g., Asia/Shanghai, UTC)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "",
		"Run history database")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context, so a running flow stops between batches and still reports.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
