package analyses

// Chunk is one window of the policy text sent to the LLM.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// SplitIntoChunks cuts text into overlapping windows of at most size chars
// with the given overlap, capped at maxChunks windows. When the naive window
// count would exceed the cap, the window grows so the union still covers the
// whole text.
func SplitIntoChunks(text string, size, overlap, maxChunks int) []Chunk {
	if size <= 0 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	if maxChunks <= 0 {
		maxChunks = 1
	}

	n := len(text)
	if n <= size {
		return []Chunk{{Index: 0, Start: 0, End: n, Text: text}}
	}

	step := size - overlap
	count := 1 + (n-size+step-1)/step
	if count > maxChunks {
		count = maxChunks
		// Grow the window so count windows at the same overlap cover n chars:
		// size + (count-1)*(size-overlap) >= n.
		size = ceilDiv(n+(count-1)*overlap, count)
		step = size - overlap
	}

	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := i * step
		end := start + size
		if end > n {
			end = n
		}
		if i == count-1 {
			end = n
		}
		chunks = append(chunks, Chunk{Index: i, Start: start, End: end, Text: text[start:end]})
		if end == n {
			break
		}
	}
	return chunks
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
