// Package chunker splits combined note text into line-aligned pieces that fit
// an approximate backend budget.
package chunker

import (
	"strings"

	"github.com/penwyp/go-pensieve/internal/core/model"
)

// bytesPerUnit approximates how many characters a backend packs per token
const bytesPerUnit = 4

// Estimate returns the approximate size of s in backend units
func Estimate(s string) int {
	return (len(s) + bytesPerUnit - 1) / bytesPerUnit
}

// Budget returns the per-chunk allowance for a share of a context window
func Budget(contextWindow int, ratio float64) int {
	units := int(float64(contextWindow) * ratio)
	if units < 1 {
		return 1
	}
	return units
}

// Split breaks text into chunks whose estimate stays within maxUnits. Lines are
// never split; a single line larger than maxUnits becomes its own chunk.
// Chunks that hold only whitespace are dropped.
func Split(text string, maxUnits int) []model.Chunk {
	if maxUnits < 1 {
		maxUnits = 1
	}

	var (
		texts   []string
		current strings.Builder
		size    int
	)

	flush := func() {
		chunk := strings.TrimRight(current.String(), " \t\r\n")
		if strings.TrimSpace(chunk) != "" {
			texts = append(texts, chunk)
		}
		current.Reset()
		size = 0
	}

	for _, line := range strings.Split(text, "\n") {
		lineSize := Estimate(line + "\n")
		if size+lineSize > maxUnits && current.Len() > 0 {
			flush()
		}
		current.WriteString(line)
		current.WriteByte('\n')
		size += lineSize
	}
	flush()

	chunks := make([]model.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = model.Chunk{Index: i, Total: len(texts), Text: t}
	}
	return chunks
}

// Join concatenates chunk texts with newlines
func Join(chunks []model.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n")
}
