package vector

// Partition splits items into consecutive, non-overlapping slices of at most
// size elements. Order is preserved and only the last slice may be shorter.
// The returned slices share the backing array of items.
func Partition[T any](items []T, size int) ([][]T, error) {
	if size < 1 {
		return nil, ErrInvalidChunkSize
	}
	if len(items) == 0 {
		return nil, nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}
