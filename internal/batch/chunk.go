package batch

// DefaultSize is the chunk size used when callers pass a non-positive size.
const DefaultSize = 20

// Chunk splits items into consecutive slices of at most size elements.
// Order is preserved and an empty input yields no chunks.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultSize
	}
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
