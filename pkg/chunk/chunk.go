// Package chunk computes the byte ranges a file is split into for upload.
package chunk

import (
	"io"

	// Packages
	intray "github.com/mutablelogic/go-intray"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Range is the half-open byte range [Start, End) of chunk Index
type Range struct {
	Index int   `json:"index"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Count returns the number of chunks of chunkSize bytes needed to cover size
// bytes. A zero size needs no chunks.
func Count(size, chunkSize int64) (int, error) {
	if chunkSize <= 0 {
		return 0, intray.InvalidConfig("chunk size must be greater than zero, got %d", chunkSize)
	}
	if size < 0 {
		return 0, intray.InvalidConfig("file size must not be negative, got %d", size)
	}
	return int((size + chunkSize - 1) / chunkSize), nil
}

// Slice returns the ordered ranges covering [0, size). Ranges are contiguous
// and non-overlapping; the last one may be shorter than chunkSize.
func Slice(size, chunkSize int64) ([]Range, error) {
	count, err := Count(size, chunkSize)
	if err != nil {
		return nil, err
	}
	result := make([]Range, 0, count)
	for i := 0; i < count; i++ {
		result = append(result, At(i, size, chunkSize))
	}
	return result, nil
}

// At returns the range of chunk index without allocating the full slice. The
// caller is responsible for index being within [0, Count(size, chunkSize)).
func At(index int, size, chunkSize int64) Range {
	start := int64(index) * chunkSize
	return Range{
		Index: index,
		Start: start,
		End:   min(start+chunkSize, size),
	}
}

// Len returns the number of bytes in the range
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Section returns a reader over the range of r
func (r Range) Section(ra io.ReaderAt) *io.SectionReader {
	return io.NewSectionReader(ra, r.Start, r.Len())
}
