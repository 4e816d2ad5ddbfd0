package store

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/util"
)

// FileStore keeps documents as files under a root directory
type FileStore struct {
	root      string
	converter *md.Converter
}

// NewFileStore creates a store rooted at dir, creating it if missing
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, failure.New(failure.StorageFailure, "open store", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, failure.New(failure.StorageFailure, "open store", err)
	}
	return &FileStore{
		root:      abs,
		converter: md.NewConverter("", true, nil),
	}, nil
}

// Root returns the absolute root directory
func (s *FileStore) Root() string {
	return s.root
}

// resolve maps an id to a path under root, rejecting escapes
func (s *FileStore) resolve(op, id string) (string, error) {
	slashed := strings.ReplaceAll(id, "\\", "/")
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", failure.Newf(failure.StorageFailure, op, "document id %q escapes the store", id)
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Read returns a document's text, converting .html/.htm to markdown
func (s *FileStore) Read(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.resolve("read", id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", failure.New(failure.StorageFailure, "read "+id, err)
	}

	switch strings.ToLower(filepath.Ext(p)) {
	case ".html", ".htm":
		text, err := s.converter.ConvertString(string(data))
		if err != nil {
			util.LogWarnf("HTML conversion failed for %s, using raw text: %v", id, err)
			return string(data), nil
		}
		return text, nil
	}
	return string(data), nil
}

// Write replaces a document through a temp file and rename so readers never
// observe a partial write.
func (s *FileStore) Write(ctx context.Context, id, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.resolve("write", id)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return failure.New(failure.StorageFailure, "write "+id, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return failure.New(failure.StorageFailure, "write "+id, err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return failure.New(failure.StorageFailure, "write "+id, cause)
	}

	if _, err := tmp.WriteString(content); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return failure.New(failure.StorageFailure, "write "+id, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return failure.New(failure.StorageFailure, "write "+id, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return failure.New(failure.StorageFailure, "write "+id, err)
	}

	util.LogDebugf("Wrote %s (%d bytes)", id, len(content))
	return nil
}

// Exists reports whether id exists
func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	p, err := s.resolve("exists", id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, failure.New(failure.StorageFailure, "stat "+id, err)
}

// Stat returns metadata for id
func (s *FileStore) Stat(ctx context.Context, id string) (Entry, error) {
	p, err := s.resolve("stat", id)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return Entry{}, failure.New(failure.StorageFailure, "stat "+id, err)
	}
	return s.entry(id, info), nil
}

func (s *FileStore) entry(id string, info os.FileInfo) Entry {
	return Entry{
		ID:      strings.TrimPrefix(path.Clean("/"+id), "/"),
		Name:    info.Name(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
	}
}

// ListChildren lists a folder's direct children, skipping hidden entries. A
// missing folder yields no children.
func (s *FileStore) ListChildren(ctx context.Context, folder string) ([]Entry, error) {
	p, err := s.resolve("list", folder)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, failure.New(failure.StorageFailure, "list "+folder, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			util.LogDebugf("Skip %s/%s: %v", folder, de.Name(), err)
			continue
		}
		entries = append(entries, s.entry(path.Join(folder, de.Name()), info))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// CreateFolder creates a folder and its parents
func (s *FileStore) CreateFolder(ctx context.Context, id string) error {
	p, err := s.resolve("create folder", id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, 0755); err != nil {
		return failure.New(failure.StorageFailure, "create folder "+id, err)
	}
	return nil
}

// String describes the store for logs
func (s *FileStore) String() string {
	return fmt.Sprintf("FileStore(%s)", s.root)
}
