package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-pensieve/internal/config"
	"github.com/penwyp/go-pensieve/internal/gateway"
	"github.com/penwyp/go-pensieve/internal/util"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models and test provider connections",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models the configured provider offers",
	Long: `Lists the models of the configured provider. When the provider cannot be reached the
last successful listing is read from the model cache.`,
	RunE: runModelsList,
}

var modelsTestCmd = &cobra.Command{
	Use:   "test [provider...]",
	Short: "Check credentials and connectivity of providers",
	RunE:  runModelsTest,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsTestCmd)
}

// keyFor returns the API key for a provider: the configured key for the
// configured provider, the provider's environment variable otherwise.
func (a *app) keyFor(name gateway.ProviderName) string {
	if string(name) == a.settings.Provider {
		return a.settings.APIKey
	}
	switch name {
	case gateway.OpenAI:
		return os.Getenv(config.EnvOpenAIKey)
	case gateway.Gemini:
		return os.Getenv(config.EnvGeminiKey)
	case gateway.Anthropic:
		return os.Getenv(config.EnvClaudeKey)
	}
	return ""
}

func runModelsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	name := gateway.ProviderName(a.settings.Provider)
	models, err := a.gateway.ListModels(cmd.Context(), name, a.settings.APIKey)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Fprintf(a.out, "%s returned no models\n", name)
		return nil
	}

	for _, m := range models {
		marker := "  "
		if m == a.settings.Model {
			marker = "* "
		}
		fmt.Fprintf(a.out, "%s%s (context window %d)\n", marker, m, a.gateway.ContextWindow(name, m))
	}
	return nil
}

func runModelsTest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	names := args
	if len(names) == 0 {
		names = []string{a.settings.Provider}
	}

	failed := 0
	rows := make([][]string, 0, len(names))
	for _, n := range names {
		name, err := gateway.ParseProviderName(n)
		if err != nil {
			rows = append(rows, []string{n, "✗", err.Error()})
			failed++
			continue
		}
		res := a.gateway.TestConnection(cmd.Context(), name, a.keyFor(name))
		mark := "✓"
		if !res.OK {
			mark = "✗ " + res.Kind.String()
			failed++
		}
		rows = append(rows, []string{string(name), mark, strings.TrimSpace(res.Message)})
	}

	fmt.Fprint(a.out, util.RenderTable([]string{"Provider", "Result", "Details"}, rows, util.TerminalWidth()))
	if failed > 0 {
		return fmt.Errorf("%d of %d provider(s) failed", failed, len(names))
	}
	return nil
}
