package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-pensieve/internal/util"
)

// ModelCache keeps the last successful model listing per provider so the CLI
// can still show models when a backend is unreachable.
type ModelCache struct {
	mu        sync.RWMutex
	cacheFile string
}

// ModelListing is one cached provider listing
type ModelListing struct {
	Provider  string    `json:"provider"`
	UpdatedAt time.Time `json:"updated_at"`
	Models    []string  `json:"models"`
}

type modelCacheFile struct {
	Listings map[string]ModelListing `json:"listings"`
}

// NewModelCache stores listings in dir/models.json
func NewModelCache(dir string) (*ModelCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model cache directory: %w", err)
	}
	return &ModelCache{cacheFile: filepath.Join(dir, "models.json")}, nil
}

// Save records the listing for a provider
func (m *ModelCache) Save(provider ProviderName, models []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := m.read()
	if err != nil {
		util.LogDebugf("Discarding unreadable model cache %s: %v", m.cacheFile, err)
		file = modelCacheFile{}
	}
	if file.Listings == nil {
		file.Listings = make(map[string]ModelListing)
	}
	file.Listings[string(provider)] = ModelListing{
		Provider:  string(provider),
		UpdatedAt: time.Now(),
		Models:    models,
	}

	data, err := sonic.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model cache: %w", err)
	}

	tmpFile := m.cacheFile + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write model cache: %w", err)
	}
	if err := os.Rename(tmpFile, m.cacheFile); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename model cache: %w", err)
	}

	util.LogDebugf("Cached %d %s models in %s", len(models), provider, m.cacheFile)
	return nil
}

// Load returns the cached listing for a provider
func (m *ModelCache) Load(provider ProviderName) (ModelListing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := m.read()
	if err != nil {
		return ModelListing{}, false
	}
	listing, ok := file.Listings[string(provider)]
	return listing, ok
}

// Clear removes the cache file
func (m *ModelCache) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.cacheFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove model cache: %w", err)
	}
	return nil
}

func (m *ModelCache) read() (modelCacheFile, error) {
	var file modelCacheFile
	data, err := os.ReadFile(m.cacheFile)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, err
	}
	if err := sonic.Unmarshal(data, &file); err != nil {
		return modelCacheFile{}, err
	}
	return file, nil
}
