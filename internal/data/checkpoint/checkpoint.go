// Package checkpoint persists which source notes a scope has already
// summarized, so incremental runs only see new notes.
package checkpoint

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/penwyp/go-pensieve/internal/core/constants"
	"github.com/penwyp/go-pensieve/internal/core/model"
	"github.com/penwyp/go-pensieve/internal/data/store"
	"github.com/penwyp/go-pensieve/internal/util"
)

const (
	keyProcessed = "processedNotes"
	keyLastDate  = "lastProcessedDate"
	keyLastUsed  = "lastMemoryUsed"
)

// Checkpoint is the processed-set of one scope. ProcessedIDs only grows.
type Checkpoint struct {
	ProcessedIDs    []string
	LastProcessedAt string
	LastContextUsed string

	index map[string]struct{}
}

// New returns a checkpoint holding ids in order, duplicates dropped
func New(ids ...string) Checkpoint {
	var cp Checkpoint
	cp.Add(ids...)
	return cp
}

func (c *Checkpoint) ensureIndex() {
	if c.index != nil && len(c.index) == len(c.ProcessedIDs) {
		return
	}
	c.index = make(map[string]struct{}, len(c.ProcessedIDs))
	for _, id := range c.ProcessedIDs {
		c.index[id] = struct{}{}
	}
}

// Has reports whether id was already processed
func (c *Checkpoint) Has(id string) bool {
	c.ensureIndex()
	_, ok := c.index[id]
	return ok
}

// Add appends ids not yet present, keeping first-seen order
func (c *Checkpoint) Add(ids ...string) {
	c.ensureIndex()
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := c.index[id]; ok {
			continue
		}
		c.index[id] = struct{}{}
		c.ProcessedIDs = append(c.ProcessedIDs, id)
	}
}

// Len returns the number of processed ids
func (c *Checkpoint) Len() int {
	return len(c.ProcessedIDs)
}

// Unprocessed filters items down to those not in the checkpoint, preserving order
func (c *Checkpoint) Unprocessed(items []model.SourceItem) []model.SourceItem {
	var out []model.SourceItem
	for _, item := range items {
		if !c.Has(item.ID) {
			out = append(out, item)
		}
	}
	return out
}

// Store loads and commits checkpoints as frontmatter documents under root
type Store struct {
	docs store.Store
	root string
}

// NewStore creates a checkpoint store keeping one document per scope under root
func NewStore(docs store.Store, root string) *Store {
	return &Store{docs: docs, root: strings.Trim(root, "/")}
}

// DocumentID returns the document a scope's checkpoint lives in
func (s *Store) DocumentID(scope string) string {
	return path.Join(s.root, scope, constants.CheckpointFile)
}

// Load returns the scope's checkpoint. A missing document or one without a
// frontmatter block yields an empty checkpoint.
func (s *Store) Load(ctx context.Context, scope string) (Checkpoint, error) {
	id := s.DocumentID(scope)
	exists, err := s.docs.Exists(ctx, id)
	if err != nil {
		return Checkpoint{}, err
	}
	if !exists {
		return Checkpoint{}, nil
	}

	text, err := s.docs.Read(ctx, id)
	if err != nil {
		return Checkpoint{}, err
	}
	cp, ok := Decode(text)
	if !ok {
		util.LogWarnf("Checkpoint %s has no readable frontmatter, starting empty", id)
		return Checkpoint{}, nil
	}
	return cp, nil
}

// Commit overwrites the scope's checkpoint document
func (s *Store) Commit(ctx context.Context, scope string, cp Checkpoint) error {
	if cp.LastProcessedAt == "" {
		cp.LastProcessedAt = util.GetTimeProvider().Now().Format(util.DateTimeLayout)
	}
	id := s.DocumentID(scope)
	if err := s.docs.Write(ctx, id, Encode(cp)); err != nil {
		return fmt.Errorf("commit checkpoint for %s: %w", scope, err)
	}
	util.LogDebugf("Checkpoint committed: scope=%s processed=%d", scope, cp.Len())
	return nil
}

// Reset replaces the scope's checkpoint with an empty one
func (s *Store) Reset(ctx context.Context, scope string) error {
	return s.Commit(ctx, scope, Checkpoint{})
}

// Encode renders cp as a frontmatter document followed by a readable summary
func Encode(cp Checkpoint) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "%s: %s\n", keyProcessed, joinIDs(cp.ProcessedIDs))
	fmt.Fprintf(&b, "%s: %s\n", keyLastDate, cp.LastProcessedAt)
	fmt.Fprintf(&b, "%s: %s\n", keyLastUsed, cp.LastContextUsed)
	b.WriteString("---\n\n")
	b.WriteString("# Checkpoint\n\n")
	fmt.Fprintf(&b, "- Notes processed: %d\n", cp.Len())
	if cp.LastProcessedAt != "" {
		fmt.Fprintf(&b, "- Last processed: %s\n", cp.LastProcessedAt)
	}
	if cp.LastContextUsed != "" {
		fmt.Fprintf(&b, "- Last context used: %s\n", cp.LastContextUsed)
	}
	return b.String()
}

// Decode parses a checkpoint document. ok is false when the text has no
// frontmatter block.
func Decode(text string) (Checkpoint, bool) {
	fields, ok := frontmatter(text)
	if !ok {
		return Checkpoint{}, false
	}
	var cp Checkpoint
	if raw := fields[keyProcessed]; raw != "" {
		cp.Add(splitIDs(raw)...)
	}
	cp.LastProcessedAt = fields[keyLastDate]
	cp.LastContextUsed = fields[keyLastUsed]
	return cp, true
}

// joinIDs writes ids comma separated. An id holding a comma or a quote is
// written as a Go quoted string.
func joinIDs(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if strings.ContainsAny(id, ",\"\n\r") {
			parts[i] = strconv.Quote(id)
			continue
		}
		parts[i] = id
	}
	return strings.Join(parts, ", ")
}

// splitIDs is the inverse of joinIDs. Commas inside quoted ids do not split.
func splitIDs(raw string) []string {
	var ids []string
	for rest := raw; ; {
		rest = strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(rest, `"`) {
			if q, err := strconv.QuotedPrefix(rest); err == nil {
				id, _ := strconv.Unquote(q)
				ids = append(ids, id)
				rest = strings.TrimLeft(rest[len(q):], " \t")
				rest = strings.TrimPrefix(rest, ",")
				if rest == "" {
					return ids
				}
				continue
			}
		}
		field, tail, more := strings.Cut(rest, ",")
		ids = append(ids, field)
		if !more {
			return ids
		}
		rest = tail
	}
}

// frontmatter reads the key: value lines between the leading --- fences
func frontmatter(text string) (map[string]string, bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, false
	}
	fields := make(map[string]string)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "---" {
			return fields, true
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return nil, false
}
