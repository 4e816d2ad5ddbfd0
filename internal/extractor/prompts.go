package extractor

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

// Prompt names
const (
	promptTasks    = "tasks"
	promptInsights = "insights"
	promptStatus   = "status"
	promptRefine   = "refine"
	promptDigest   = "digest"
	promptAnalyze  = "analyze"
)

// Prompt is a rendered system and user prompt pair
type Prompt struct {
	System string
	User   string
}

// vars fills {{.Name}} placeholders in a prompt template
type vars map[string]string

func loadPrompt(name string) (system, user string, err error) {
	s, err := promptFS.ReadFile("prompts/" + name + "_system.md")
	if err != nil {
		return "", "", fmt.Errorf("load %s system prompt: %w", name, err)
	}
	u, err := promptFS.ReadFile("prompts/" + name + "_user.md")
	if err != nil {
		return "", "", fmt.Errorf("load %s user prompt: %w", name, err)
	}
	return strings.TrimSpace(string(s)), strings.TrimSpace(string(u)), nil
}

var placeholderPattern = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// renderPrompt loads the named templates and substitutes values. Template
// placeholders and supplied values must match exactly.
func renderPrompt(name string, values vars) (Prompt, error) {
	system, user, err := loadPrompt(name)
	if err != nil {
		return Prompt{}, err
	}

	wanted := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(user, -1) {
		wanted[m[1]] = true
		if _, ok := values[m[1]]; !ok {
			return Prompt{}, fmt.Errorf("%s user prompt variable {{.%s}} has no value", name, m[1])
		}
	}
	for k := range values {
		if !wanted[k] {
			return Prompt{}, fmt.Errorf("%s user prompt template must contain {{.%s}} variable", name, k)
		}
	}

	// single pass, so placeholder-like text inside values is left alone
	user = placeholderPattern.ReplaceAllStringFunc(user, func(ph string) string {
		return values[placeholderPattern.FindStringSubmatch(ph)[1]]
	})
	return Prompt{System: system, User: user}, nil
}

var toneInstructions = map[string]string{
	"professional": "Use a formal, business-like tone suitable for professional documentation.",
	"storytelling": "Use a narrative, engaging tone that tells the story of the project.",
	"sarcastic":    "Use a witty, slightly sarcastic tone while staying professional.",
}

var verbosityInstructions = map[string]string{
	"concise":       "Keep content concise and to the point.",
	"detailed":      "Provide detailed explanations and context.",
	"comprehensive": "Cover everything with examples and explanations.",
}

var cycleFocus = map[string]string{
	"daily":   "This is a daily digest. Focus on the day's activities and immediate tasks.",
	"weekly":  "This is a weekly digest. Look for patterns across the week and broader project progress.",
	"monthly": "This is a monthly digest. Focus on milestones, trends and long-term progress.",
}

func lookupOr(table map[string]string, key, fallback string) string {
	if v, ok := table[strings.ToLower(key)]; ok {
		return v
	}
	return table[fallback]
}
