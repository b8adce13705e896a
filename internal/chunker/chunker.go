package chunker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunkSize reports a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	// ErrOverlapTooLarge reports an overlap that equals or exceeds the chunk size.
	ErrOverlapTooLarge = errors.New("overlap must be smaller than chunk size")
)

// Chunk describes one byte range of the source text. Ranges are contiguous in
// index order; for every chunk after the first, the range starts Overlap bytes
// before the previous chunk's end so trailing context repeats at the head of
// the next chunk.
type Chunk struct {
	Index   int `json:"index"`
	Start   int `json:"start"`
	End     int `json:"end"`
	Overlap int `json:"overlap"`
}

// Len returns the chunk's span in bytes.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Slice returns the chunk's bytes from the source text.
func (c Chunk) Slice(text []byte) []byte {
	return text[c.Start:c.End]
}

// Split partitions text into overlapping chunks of at most chunkSize bytes,
// walking in strides of chunkSize-overlap. The final chunk is clipped to the
// text length. Splitting is deterministic: identical inputs always yield an
// identical sequence, which checkpoint keys depend on.
//
// Text shorter than chunkSize yields exactly one chunk covering the whole
// text with no overlap. Empty text yields a single empty chunk.
func Split(text []byte, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d, chunk size %d", ErrOverlapTooLarge, overlap, chunkSize)
	}

	stride := chunkSize - overlap
	chunks := make([]Chunk, 0, len(text)/stride+1)
	for start := 0; ; start += stride {
		chunkOverlap := overlap
		if start == 0 {
			chunkOverlap = 0
		}
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: len(text), Overlap: chunkOverlap})
			return chunks, nil
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end, Overlap: chunkOverlap})
	}
}

// Reassemble reconstructs the original text from chunk contents by dropping
// each chunk's leading overlap. Used to verify lossless coverage.
func Reassemble(text []byte, chunks []Chunk) []byte {
	out := make([]byte, 0, len(text))
	for _, chunk := range chunks {
		out = append(out, text[chunk.Start+chunk.Overlap:chunk.End]...)
	}
	return out
}
