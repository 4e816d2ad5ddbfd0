// Package batch partitions unprocessed items into ordered batches sized from
// a target compression ratio.
package batch

import (
	"math"

	"github.com/penwyp/go-pensieve/internal/core/constants"
)

// Size returns the batch size for count items. A positive finite ratio gives
// round(1/ratio), at least 1; anything else falls back to the default size.
// The result never exceeds count.
func Size(count int, ratio float64) int {
	if count <= 0 {
		return 0
	}
	size := constants.DefaultBatchSize
	if ratio > 0 && !math.IsInf(ratio, 0) && !math.IsNaN(ratio) {
		// compare as float first, int conversion of a huge 1/ratio overflows
		perBatch := math.Round(1 / ratio)
		switch {
		case perBatch >= float64(count):
			return count
		case perBatch < 1:
			size = 1
		default:
			size = int(perBatch)
		}
	}
	if size > count {
		size = count
	}
	return size
}

// Plan splits items into contiguous batches preserving order. Concatenating
// the batches yields items exactly once.
func Plan[T any](items []T, ratio float64) [][]T {
	size := Size(len(items), ratio)
	if size == 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end:end])
	}
	return batches
}
