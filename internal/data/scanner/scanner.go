package scanner

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/penwyp/go-pensieve/internal/core/model"
	"github.com/penwyp/go-pensieve/internal/data/store"
	"github.com/penwyp/go-pensieve/internal/util"
)

// DefaultExtensions are the note formats picked up by a scan
var DefaultExtensions = []string{".md", ".markdown", ".txt", ".html", ".htm"}

// NoteScanner finds notes under a folder of a document store
type NoteScanner struct {
	store      store.Store
	extensions map[string]bool
	exclude    []string
}

// NewNoteScanner creates a scanner for the default note extensions
func NewNoteScanner(s store.Store) *NoteScanner {
	exts := make(map[string]bool, len(DefaultExtensions))
	for _, e := range DefaultExtensions {
		exts[e] = true
	}
	return &NoteScanner{store: s, extensions: exts}
}

// Exclude skips any folder whose id starts with one of prefixes
func (s *NoteScanner) Exclude(prefixes ...string) *NoteScanner {
	for _, p := range prefixes {
		if p = strings.Trim(p, "/"); p != "" {
			s.exclude = append(s.exclude, p)
		}
	}
	return s
}

func (s *NoteScanner) excluded(id string) bool {
	for _, p := range s.exclude {
		if id == p || strings.HasPrefix(id, p+"/") {
			return true
		}
	}
	return false
}

// Scan returns every note under folder, newest first. Unreadable subfolders
// are skipped.
func (s *NoteScanner) Scan(ctx context.Context, folder string) ([]model.SourceItem, error) {
	start := time.Now()
	dirCount, totalCount := 0, 0
	var notes []model.SourceItem

	util.LogDebugf("Start scanning folder: %s", folder)

	var walk func(dir string) error
	walk = func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := s.store.ListChildren(ctx, dir)
		if err != nil {
			if dir == folder {
				return err
			}
			util.LogDebugf("Skip folder (error): %s - %v", dir, err)
			return nil
		}
		dirCount++
		for _, e := range entries {
			if e.IsDir {
				if s.excluded(e.ID) {
					continue
				}
				if err := walk(e.ID); err != nil {
					return err
				}
				continue
			}
			totalCount++
			if s.extensions[strings.ToLower(path.Ext(e.Name))] {
				notes = append(notes, model.SourceItem{ID: e.ID, Name: e.Name, ModTime: e.ModTime})
			}
		}
		return nil
	}

	if err := walk(folder); err != nil {
		return nil, err
	}

	SortNewestFirst(notes)
	util.LogDebugf("Note scan completed: duration %v, scanned %d folders, %d files, found %d notes",
		time.Since(start), dirCount, totalCount, len(notes))
	return notes, nil
}

// SortNewestFirst orders notes by modification time, newest first, with the
// id as a stable tie breaker.
func SortNewestFirst(notes []model.SourceItem) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].ModTime.Equal(notes[j].ModTime) {
			return notes[i].ModTime.After(notes[j].ModTime)
		}
		return notes[i].ID < notes[j].ID
	})
}

// Between keeps notes modified inside [start, end]
func Between(notes []model.SourceItem, start, end time.Time) []model.SourceItem {
	var out []model.SourceItem
	for _, n := range notes {
		if !n.ModTime.Before(start) && !n.ModTime.After(end) {
			out = append(out, n)
		}
	}
	return out
}
