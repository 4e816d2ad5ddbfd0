package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-pensieve/internal/application/pipeline"
	"github.com/penwyp/go-pensieve/internal/config"
	"github.com/penwyp/go-pensieve/internal/data/ledger"
	"github.com/penwyp/go-pensieve/internal/data/store"
	"github.com/penwyp/go-pensieve/internal/extractor"
	"github.com/penwyp/go-pensieve/internal/gateway"
	"github.com/penwyp/go-pensieve/internal/util"
)

// errFlowFailed is returned after a failed flow was already reported
var errFlowFailed = errors.New("flow failed")

// app is everything a command needs, built from the settings
type app struct {
	settings *config.Settings
	docs     *store.FileStore
	notes    *store.CachedStore
	gateway  *gateway.Gateway
	session  *gateway.Session
	ledger   *ledger.Ledger
	service  *pipeline.Service
	out      io.Writer
}

// loadSettings reads the settings file and applies command line overrides
func loadSettings() (*config.Settings, error) {
	s, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if vaultDir != "" {
		s.VaultDir = vaultDir
	}
	if provider != "" {
		s.Provider = provider
	}
	if modelName != "" {
		s.Model = modelName
	}
	if apiKey != "" {
		s.APIKey = apiKey
	}
	if timezone != "" {
		s.Timezone = timezone
	}
	if logFormat != "" {
		s.LogFormat = logFormat
	}
	if ledgerPath != "" {
		s.LedgerDB = ledgerPath
	}
	if debug {
		s.LogLevel = "debug"
	}
	s.VaultDir = expandPath(s.VaultDir)
	s.LedgerDB = expandPath(s.LedgerDB)

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// initRuntime sets up logging and the timezone
func initRuntime(s *config.Settings) error {
	if s.LogFile != "" {
		if err := ensureDir(filepath.Dir(s.LogFile)); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if err := util.InitLogger(util.LoggerOptions{
		Level:   s.LogLevel,
		File:    s.LogFile,
		Format:  util.LogFormat(s.LogFormat),
		Console: debug,
	}); err != nil {
		return err
	}
	return util.InitializeTimeProvider(s.Timezone)
}

func newGateway(s *config.Settings) *gateway.Gateway {
	opts := gateway.Options{
		Temperature:    &s.Temperature,
		MaxTokens:      s.MaxTokens,
		Timeout:        s.Timeout,
		ContextWindows: s.ContextWindows,
	}
	if s.BaseURL != "" {
		opts.BaseURLs = map[gateway.ProviderName]string{gateway.ProviderName(s.Provider): s.BaseURL}
	}
	if cache, err := gateway.NewModelCache(s.CacheDir); err != nil {
		util.LogWarnf("Model cache disabled: %v", err)
	} else {
		opts.Cache = cache
	}
	return gateway.New(opts)
}

// newApp wires settings, store, gateway, ledger and pipeline for cmd
func newApp(cmd *cobra.Command) (*app, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if err := initRuntime(s); err != nil {
		return nil, err
	}

	docs, err := store.NewFileStore(s.VaultDir)
	if err != nil {
		return nil, err
	}

	gw := newGateway(s)
	session := gw.Session(gateway.ProviderName(s.Provider), s.Model, s.APIKey)
	util.LogDebugf("Using %s (context window %d) on vault %s", session.Describe(), session.ContextWindow(), docs.Root())

	a := &app{
		settings: s,
		docs:     docs,
		notes:    store.NewCachedStore(docs, 0),
		gateway:  gw,
		session:  session,
		out:      cmd.OutOrStdout(),
	}

	deps := pipeline.Deps{
		Store:      a.notes,
		Extraction: extractor.New(session).WithRecentDays(s.RecentDays),
		Notifier:   pipeline.NewConsoleNotifier(a.out),
	}
	if l, err := ledger.Open(s.LedgerDB); err != nil {
		util.LogWarnf("Run history disabled: %v", err)
	} else {
		a.ledger = l
		deps.Recorder = l
	}

	a.service, err = pipeline.NewService(pipeline.FromSettings(s), deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// lock takes the advisory lock of a flow for this vault
func (a *app) lock(flow string) (*util.ScopeLock, error) {
	dir := filepath.Join(filepath.Dir(a.settings.LedgerDB), "locks")
	l, err := util.LockScope(dir, flow+" "+a.docs.Root())
	if errors.Is(err, util.ErrScopeBusy) {
		return nil, fmt.Errorf("another %s run is already in progress for %s", flow, a.docs.Root())
	}
	return l, err
}

// Close releases the ledger and the logger
func (a *app) Close() {
	if a.notes != nil {
		st := a.notes.Stats()
		util.LogDebugf("Note cache: %d hits, %d misses, %d evictions", st.Hits, st.Misses, st.Evictions)
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			util.LogWarnf("Failed to close run history: %v", err)
		}
	}
	util.CloseLogger()
}

// Reported tells whether err was already shown to the user by a flow notification
func Reported(err error) bool {
	return errors.Is(err, errFlowFailed)
}

// result turns a reported summary into the command's exit error
func result(sum pipeline.Summary) error {
	if sum.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s", errFlowFailed, sum.Kind)
}
