// Package config loads pensieve settings from a YAML or TOML file layered over
// defaults and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/penwyp/go-pensieve/internal/core/constants"
	"github.com/penwyp/go-pensieve/internal/core/cycle"
	"github.com/penwyp/go-pensieve/internal/gateway"
)

// Environment variables consulted after the settings file
const (
	EnvAPIKey    = "PENSIEVE_API_KEY"
	EnvProvider  = "PENSIEVE_PROVIDER"
	EnvModel     = "PENSIEVE_MODEL"
	EnvVault     = "PENSIEVE_VAULT"
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvGeminiKey = "GEMINI_API_KEY"
	EnvClaudeKey = "ANTHROPIC_API_KEY"
)

// Refinement controls the voice of refined notes
type Refinement struct {
	Verbosity     string `yaml:"verbosity" toml:"verbosity"`
	Tone          string `yaml:"tone" toml:"tone"`
	Emojification bool   `yaml:"emojification" toml:"emojification"`
}

// Digest controls generated digests
type Digest struct {
	Cycle                  string `yaml:"cycle" toml:"cycle"`
	IncludeIncompleteTasks bool   `yaml:"include_incomplete_tasks" toml:"include_incomplete_tasks"`
	IncludeInsights        bool   `yaml:"include_insights" toml:"include_insights"`
	IncludeSourceNotes     bool   `yaml:"include_source_notes" toml:"include_source_notes"`
}

// Schedule enables periodic jobs for the schedule command
type Schedule struct {
	AutoUpdateMemories bool   `yaml:"auto_update_memories" toml:"auto_update_memories"`
	MemoryInterval     string `yaml:"memory_interval" toml:"memory_interval"`
	AutoRefineNotes    bool   `yaml:"auto_refine_notes" toml:"auto_refine_notes"`
	RefineInterval     string `yaml:"refine_interval" toml:"refine_interval"`
	AutoDigest         bool   `yaml:"auto_digest" toml:"auto_digest"`
	DigestInterval     string `yaml:"digest_interval" toml:"digest_interval"`
}

// Settings is the full configuration
type Settings struct {
	VaultDir      string `yaml:"vault_dir" toml:"vault_dir"`
	JournalFolder string `yaml:"journal_folder" toml:"journal_folder"`
	ProjectRoot   string `yaml:"project_root" toml:"project_root"`
	MemoryFolder  string `yaml:"memory_folder" toml:"memory_folder"`
	CleanFolder   string `yaml:"clean_output_folder" toml:"clean_output_folder"`

	Provider    string        `yaml:"provider" toml:"provider"`
	Model       string        `yaml:"model" toml:"model"`
	APIKey      string        `yaml:"api_key" toml:"api_key"`
	BaseURL     string        `yaml:"base_url" toml:"base_url"`
	Timeout     time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw  string        `yaml:"timeout" toml:"timeout"`
	Temperature float64       `yaml:"temperature" toml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" toml:"max_tokens"`

	// provider -> model prefix -> context window
	ContextWindows map[string]map[string]int `yaml:"context_windows" toml:"context_windows"`

	CompressionRatio float64    `yaml:"compression_ratio" toml:"compression_ratio"`
	Refinement       Refinement `yaml:"refinement" toml:"refinement"`
	Digest           Digest     `yaml:"digest" toml:"digest"`
	Schedule         Schedule   `yaml:"schedule" toml:"schedule"`
	ExcludeProjects  []string   `yaml:"exclude_projects" toml:"exclude_projects"`
	RecentDays       int        `yaml:"recent_days" toml:"recent_days"`

	Timezone  string `yaml:"timezone" toml:"timezone"`
	LedgerDB  string `yaml:"ledger_db" toml:"ledger_db"`
	CacheDir  string `yaml:"cache_dir" toml:"cache_dir"`
	LogFile   string `yaml:"log_file" toml:"log_file"`
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`

	// file the settings were read from, empty when defaults only
	Source string `yaml:"-" toml:"-"`
}

// HomeDir is the per-user state directory
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pensieve"
	}
	return filepath.Join(home, ".pensieve")
}

// DefaultPath returns the settings file used when none is given, preferring
// settings.yaml over settings.toml.
func DefaultPath() string {
	dir := HomeDir()
	for _, name := range []string{"settings.yaml", "settings.yml", "settings.toml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "settings.yaml")
}

// Default returns settings with every default applied
func Default() *Settings {
	home := HomeDir()
	return &Settings{
		VaultDir:      ".",
		JournalFolder: "Journal",
		ProjectRoot:   "Projects",
		MemoryFolder:  "Memory",
		CleanFolder:   "CleanNotes",

		Provider:    string(gateway.OpenAI),
		Timeout:     constants.RequestTimeout,
		TimeoutRaw:  constants.RequestTimeout.String(),
		Temperature: constants.DefaultTemperature,
		MaxTokens:   constants.DefaultMaxTokens,

		CompressionRatio: 0.3,
		Refinement: Refinement{
			Verbosity: "concise",
			Tone:      "professional",
		},
		Digest: Digest{
			Cycle:                  string(cycle.Daily),
			IncludeIncompleteTasks: true,
			IncludeInsights:        true,
			IncludeSourceNotes:     true,
		},
		Schedule: Schedule{
			MemoryInterval: "daily",
			RefineInterval: "daily",
			DigestInterval: "daily",
		},
		RecentDays: constants.RecentActivityDays,

		Timezone:  "Local",
		LedgerDB:  filepath.Join(home, "state", "runs.db"),
		CacheDir:  filepath.Join(home, "cache"),
		LogFile:   filepath.Join(home, "logs", "app.log"),
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads path over the defaults, then applies environment overrides. A
// missing file is not an error; the defaults are used.
func Load(path string) (*Settings, error) {
	s := Default()
	if path == "" {
		path = DefaultPath()
	}
	path = ExpandHome(path)

	if _, err := os.Stat(path); err == nil {
		if err := s.decodeFile(path); err != nil {
			return nil, err
		}
		s.Source = path
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat settings %s: %w", path, err)
	}

	s.applyEnv()
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) decodeFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, s); err != nil {
			return fmt.Errorf("parse settings %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read settings %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("parse settings %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported settings format %q (use .yaml or .toml)", filepath.Ext(path))
	}
	return nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv(EnvProvider); v != "" {
		s.Provider = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		s.Model = v
	}
	if v := os.Getenv(EnvVault); v != "" {
		s.VaultDir = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		s.APIKey = v
	}
	if s.APIKey != "" {
		return
	}
	switch gateway.ProviderName(strings.ToLower(s.Provider)) {
	case gateway.OpenAI:
		s.APIKey = os.Getenv(EnvOpenAIKey)
	case gateway.Gemini:
		s.APIKey = os.Getenv(EnvGeminiKey)
	case gateway.Anthropic:
		s.APIKey = os.Getenv(EnvClaudeKey)
	}
}

// normalize expands paths and parses derived fields
func (s *Settings) normalize() error {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	s.VaultDir = ExpandHome(s.VaultDir)
	s.LedgerDB = ExpandHome(s.LedgerDB)
	s.CacheDir = ExpandHome(s.CacheDir)
	s.LogFile = ExpandHome(s.LogFile)

	if s.TimeoutRaw != "" {
		d, err := time.ParseDuration(s.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s.TimeoutRaw, err)
		}
		s.Timeout = d
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with
func (s *Settings) Validate() error {
	if _, err := gateway.ParseProviderName(s.Provider); err != nil {
		return err
	}
	if _, err := cycle.ParseKind(s.Digest.Cycle); err != nil {
		return err
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", s.Timeout)
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", s.MaxTokens)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", s.Temperature)
	}
	if math.IsNaN(s.CompressionRatio) || s.CompressionRatio < 0 {
		return fmt.Errorf("compression_ratio must be positive, got %v", s.CompressionRatio)
	}
	if s.RecentDays <= 0 {
		return fmt.Errorf("recent_days must be positive, got %d", s.RecentDays)
	}
	for provider, models := range s.ContextWindows {
		for prefix, size := range models {
			if size <= 0 {
				return fmt.Errorf("context window for %s/%s must be positive, got %d", provider, prefix, size)
			}
		}
	}
	return nil
}

// IsExcluded reports whether project is listed in exclude_projects
func (s *Settings) IsExcluded(project string) bool {
	for _, p := range s.ExcludeProjects {
		if strings.EqualFold(strings.TrimSpace(p), project) {
			return true
		}
	}
	return false
}

// RecentWindow returns the recent-activity window as a duration
func (s *Settings) RecentWindow() time.Duration {
	return time.Duration(s.RecentDays) * 24 * time.Hour
}

// ProjectFolder returns the store id of a project's notes folder
func (s *Settings) ProjectFolder(project string) string {
	return joinID(s.ProjectRoot, project)
}

// MemoryProjectFolder returns the store id of a project's memory documents
func (s *Settings) MemoryProjectFolder(project string) string {
	return joinID(s.MemoryFolder, constants.ProjectsFolder, project)
}

// DigestFolder returns the store id of the digest folder
func (s *Settings) DigestFolder() string {
	return joinID(s.MemoryFolder, constants.DigestFolder)
}

// ModelCachePath returns the cached model list file
func (s *Settings) ModelCachePath() string {
	return filepath.Join(s.CacheDir, "models.json")
}

// ExpandHome expands a leading ~/ to the user's home directory
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

func joinID(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
