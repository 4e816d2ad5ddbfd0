package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/util"
)

// Summary is the single outcome report of one public flow
type Summary struct {
	Flow      string
	RunID     string
	Scopes    int
	Skipped   int
	Items     int
	Outputs   int
	Kind      failure.Kind
	Err       error
	Message   string
	Duration  time.Duration
	Documents []string
}

// OK reports whether the flow finished without a run-level failure
func (s Summary) OK() bool {
	return s.Err == nil
}

// String renders the summary as one line
func (s Summary) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s failed (%s): %v", s.Flow, s.Kind, s.Err)
	}
	if s.Message != "" {
		return s.Message
	}
	return fmt.Sprintf("%s: %d scope(s), %d note(s), %d output(s)", s.Flow, s.Scopes, s.Items, s.Outputs)
}

// Notifier receives the summary of every flow
type Notifier interface {
	Notify(s Summary)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Summary)

func (f NotifierFunc) Notify(s Summary) { f(s) }

var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// ConsoleNotifier prints summaries, styled when attached to a terminal
type ConsoleNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	styled bool
}

// NewConsoleNotifier writes to out; styling follows whether stdout is a terminal
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out, styled: util.IsTerminal()}
}

// Notify prints s
func (c *ConsoleNotifier) Notify(s Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mark, line := "✓", s.String()
	if !s.OK() {
		mark = "✗"
	}
	detail := fmt.Sprintf("(%s)", util.FormatDuration(s.Duration))

	if c.styled {
		style := styleOK
		if !s.OK() {
			style = styleFailed
		}
		fmt.Fprintf(c.out, "%s %s %s\n", style.Render(mark), line, styleDim.Render(detail))
	} else {
		fmt.Fprintf(c.out, "%s %s %s\n", mark, line, detail)
	}

	for _, doc := range s.Documents {
		if c.styled {
			fmt.Fprintf(c.out, "  %s\n", styleDim.Render(doc))
		} else {
			fmt.Fprintf(c.out, "  %s\n", doc)
		}
	}
}

// LogNotifier writes summaries to the process log, used by background jobs
type LogNotifier struct{}

func (LogNotifier) Notify(s Summary) {
	fields := []util.Field{
		util.F("flow", s.Flow),
		util.F("run_id", s.RunID),
		util.F("scopes", s.Scopes),
		util.F("items", s.Items),
		util.F("outputs", s.Outputs),
		util.F("duration", s.Duration.String()),
	}
	if s.Err != nil {
		util.LogError(s.String(), append(fields, util.F("kind", s.Kind.String()))...)
		return
	}
	util.LogInfo(strings.TrimSpace(s.String()), fields...)
}
