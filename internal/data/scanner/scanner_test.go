package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-pensieve/internal/core/model"
	"github.com/penwyp/go-pensieve/internal/data/store"
)

func setupStore(t *testing.T, files map[string]time.Time) *store.FileStore {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	for id, mtime := range files {
		require.NoError(t, s.Write(context.Background(), id, "content of "+id))
		require.NoError(t, os.Chtimes(filepath.Join(s.Root(), id), mtime, mtime))
	}
	return s
}

func TestNoteScannerScanEmptyFolder(t *testing.T) {
	s := setupStore(t, nil)

	notes, err := NewNoteScanner(s).Scan(context.Background(), "journal")

	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestNoteScannerScanFiltersAndSorts(t *testing.T) {
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	s := setupStore(t, map[string]time.Time{
		"journal/old.md":            base,
		"journal/new.md":            base.Add(48 * time.Hour),
		"journal/clip.HTML":         base.Add(24 * time.Hour),
		"journal/image.png":         base,
		"journal/deep/nested.txt":   base.Add(72 * time.Hour),
		"journal/archive/skip.md":   base.Add(96 * time.Hour),
		"elsewhere/not-included.md": base,
	})

	notes, err := NewNoteScanner(s).Exclude("journal/archive").Scan(context.Background(), "journal")
	require.NoError(t, err)

	var ids []string
	for _, n := range notes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"journal/deep/nested.txt", "journal/new.md", "journal/clip.HTML", "journal/old.md"}, ids)
	assert.Equal(t, "nested.txt", notes[0].Name)
	assert.True(t, notes[0].ModTime.Equal(base.Add(72*time.Hour)))
}

func TestNoteScannerCanceled(t *testing.T) {
	s := setupStore(t, map[string]time.Time{"journal/a.md": time.Now()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNoteScanner(s).Scan(ctx, "journal")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBetween(t *testing.T) {
	day := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	notes := []model.SourceItem{
		{ID: "a", ModTime: day.Add(-time.Millisecond)},
		{ID: "b", ModTime: day},
		{ID: "c", ModTime: day.Add(12 * time.Hour)},
		{ID: "d", ModTime: day.Add(24 * time.Hour)},
	}

	got := Between(notes, day, day.Add(24*time.Hour-time.Millisecond))

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestSortNewestFirstTieBreak(t *testing.T) {
	ts := time.Now()
	notes := []model.SourceItem{{ID: "b", ModTime: ts}, {ID: "a", ModTime: ts}}
	SortNewestFirst(notes)
	assert.Equal(t, "a", notes[0].ID)
}
