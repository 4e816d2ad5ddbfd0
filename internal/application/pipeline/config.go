package pipeline

import (
	"path"
	"strings"
	"time"

	"github.com/penwyp/go-pensieve/internal/config"
	"github.com/penwyp/go-pensieve/internal/core/constants"
)

// Config contains the folder layout and behaviour of the flows
type Config struct {
	// Vault folders
	JournalFolder string
	ProjectRoot   string
	MemoryFolder  string
	CleanFolder   string

	// Projects never touched by any flow
	ExcludeProjects []string

	// Notes modified inside this window count as recent
	RecentWindow time.Duration

	// Refinement
	CompressionRatio float64
	Tone             string
	Verbosity        string
	Emojification    bool

	// Digest sections
	Digest DigestSections
}

// FromSettings derives the pipeline configuration from loaded settings
func FromSettings(s *config.Settings) Config {
	return Config{
		JournalFolder:    s.JournalFolder,
		ProjectRoot:      s.ProjectRoot,
		MemoryFolder:     s.MemoryFolder,
		CleanFolder:      s.CleanFolder,
		ExcludeProjects:  s.ExcludeProjects,
		RecentWindow:     s.RecentWindow(),
		CompressionRatio: s.CompressionRatio,
		Tone:             s.Refinement.Tone,
		Verbosity:        s.Refinement.Verbosity,
		Emojification:    s.Refinement.Emojification,
		Digest: DigestSections{
			Incomplete:  s.Digest.IncludeIncompleteTasks,
			Insights:    s.Digest.IncludeInsights,
			SourceNotes: s.Digest.IncludeSourceNotes,
		},
	}
}

// Validate fills defaults for empty fields
func (c *Config) Validate() error {
	if c.JournalFolder == "" {
		c.JournalFolder = "Journal"
	}
	if c.ProjectRoot == "" {
		c.ProjectRoot = "Projects"
	}
	if c.MemoryFolder == "" {
		c.MemoryFolder = "Memory"
	}
	if c.CleanFolder == "" {
		c.CleanFolder = "CleanNotes"
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = constants.RecentActivityWindow
	}
	if c.Tone == "" {
		c.Tone = "professional"
	}
	if c.Verbosity == "" {
		c.Verbosity = "concise"
	}
	for _, f := range []*string{&c.JournalFolder, &c.ProjectRoot, &c.MemoryFolder, &c.CleanFolder} {
		*f = strings.Trim(*f, "/")
	}
	return nil
}

func (c *Config) excluded(project string) bool {
	for _, p := range c.ExcludeProjects {
		if strings.EqualFold(strings.TrimSpace(p), project) {
			return true
		}
	}
	return false
}

func (c *Config) memoryDocument(project, file string) string {
	return path.Join(c.MemoryFolder, constants.ProjectsFolder, project, file)
}

func (c *Config) digestFolder() string {
	return path.Join(c.MemoryFolder, constants.DigestFolder)
}

func (c *Config) cleanFolder(project string) string {
	return path.Join(c.CleanFolder, project)
}
