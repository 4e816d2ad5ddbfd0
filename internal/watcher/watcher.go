// Package watcher reports note changes under a vault folder, settled by a
// debounce so a burst of saves produces one batch.
package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/penwyp/go-pensieve/internal/util"
)

// NoteWatcher watches folders recursively for note changes
type NoteWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool
	debounce   time.Duration
	batches    chan []string
	done       chan struct{}
	closeOnce  sync.Once
}

// New watches paths recursively, emitting the changed note paths once no
// further change arrived for debounce.
func New(paths []string, extensions []string, debounce time.Duration) (*NoteWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	nw := &NoteWatcher{
		watcher:    watcher,
		extensions: exts,
		debounce:   debounce,
		batches:    make(chan []string, 8),
		done:       make(chan struct{}),
	}

	for _, path := range paths {
		if err := nw.addPath(path); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go nw.processEvents()
	return nw, nil
}

func (nw *NoteWatcher) addPath(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && p != path {
				return filepath.SkipDir
			}
			return nw.watcher.Add(p)
		}
		return nil
	})
}

func (nw *NoteWatcher) isNote(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	return nw.extensions[strings.ToLower(filepath.Ext(name))]
}

func (nw *NoteWatcher) processEvents() {
	defer close(nw.batches)

	pending := make(map[string]bool)
	timer := time.NewTimer(nw.debounce)
	timer.Stop()

	for {
		select {
		case event, ok := <-nw.watcher.Events:
			if !ok {
				return
			}
			// follow new folders
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := nw.addPath(event.Name); err != nil {
						util.LogWarnf("Cannot watch %s: %v", event.Name, err)
					}
					continue
				}
			}
			if !nw.isNote(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			util.LogDebugf("Note changed: %s (%s)", event.Name, event.Op)
			pending[event.Name] = true
			timer.Reset(nw.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			select {
			case nw.batches <- changed:
			case <-nw.done:
				return
			}

		case err, ok := <-nw.watcher.Errors:
			if !ok {
				return
			}
			util.LogError("File monitoring error: " + err.Error())

		case <-nw.done:
			return
		}
	}
}

// Changes returns settled batches of changed note paths
func (nw *NoteWatcher) Changes() <-chan []string {
	return nw.batches
}

// Close stops watching
func (nw *NoteWatcher) Close() error {
	var err error
	nw.closeOnce.Do(func() {
		close(nw.done)
		err = nw.watcher.Close()
	})
	return err
}
