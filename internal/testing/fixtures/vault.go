// Package fixtures builds throwaway vaults, settings files and a scripted
// provider for command and pipeline tests.
package fixtures

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// VaultGenerator writes notes into a vault directory
type VaultGenerator struct {
	baseDir string
}

// NewVaultGenerator creates a generator rooted at baseDir
func NewVaultGenerator(baseDir string) *VaultGenerator {
	return &VaultGenerator{baseDir: baseDir}
}

// Root returns the vault directory
func (g *VaultGenerator) Root() string {
	return g.baseDir
}

// Path resolves a vault-relative document id
func (g *VaultGenerator) Path(id string) string {
	return filepath.Join(g.baseDir, filepath.FromSlash(id))
}

// WriteNote writes a note and sets its modification time
func (g *VaultGenerator) WriteNote(id, content string, modTime time.Time) error {
	path := g.Path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return err
	}
	return os.Chtimes(path, modTime, modTime)
}

// WriteJournal writes Journal/name.md
func (g *VaultGenerator) WriteJournal(name, content string, modTime time.Time) error {
	return g.WriteNote("Journal/"+name+".md", content, modTime)
}

// WriteProjectNote writes Projects/project/name.md
func (g *VaultGenerator) WriteProjectNote(project, name, content string, modTime time.Time) error {
	return g.WriteNote("Projects/"+project+"/"+name+".md", content, modTime)
}

// ReadNote returns the content of a vault document, empty when missing
func (g *VaultGenerator) ReadNote(id string) string {
	data, err := os.ReadFile(g.Path(id))
	if err != nil {
		return ""
	}
	return string(data)
}

// Exists tells whether a vault document exists
func (g *VaultGenerator) Exists(id string) bool {
	_, err := os.Stat(g.Path(id))
	return err == nil
}

// WriteSettings writes a settings.yaml next to the vault pointing every state
// path into stateDir, with overrides applied on top. It returns the file path.
func (g *VaultGenerator) WriteSettings(stateDir string, overrides map[string]interface{}) (string, error) {
	values := map[string]interface{}{
		"vault_dir": g.baseDir,
		"ledger_db": filepath.Join(stateDir, "runs.db"),
		"cache_dir": filepath.Join(stateDir, "cache"),
		"log_file":  filepath.Join(stateDir, "logs", "app.log"),
		"timezone":  "UTC",
	}
	for k, v := range overrides {
		values[k] = v
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(stateDir, "settings.yaml")
	return path, os.WriteFile(path, data, 0644)
}
