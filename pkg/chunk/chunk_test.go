package chunk_test

import (
	"bytes"
	"io"
	"testing"

	// Packages
	intray "github.com/mutablelogic/go-intray"
	chunk "github.com/mutablelogic/go-intray/pkg/chunk"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

func Test_Count(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		size, chunkSize int64
		want            int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{8, 4, 2},
		{9, 4, 3},
		{10 * mib, 4 * mib, 3},
	}
	for _, test := range tests {
		n, err := chunk.Count(test.size, test.chunkSize)
		assert.NoError(err)
		assert.Equal(test.want, n, "size=%d chunk=%d", test.size, test.chunkSize)
	}
}

func Test_Count_invalid(t *testing.T) {
	assert := assert.New(t)

	_, err := chunk.Count(10, 0)
	assert.ErrorIs(err, intray.ErrInvalidConfig)

	_, err = chunk.Count(10, -1)
	assert.ErrorIs(err, intray.ErrInvalidConfig)

	_, err = chunk.Count(-1, 4)
	assert.ErrorIs(err, intray.ErrInvalidConfig)

	_, err = chunk.Slice(10, 0)
	assert.ErrorIs(err, intray.ErrInvalidConfig)
}

func Test_Slice_example(t *testing.T) {
	require := require.New(t)

	ranges, err := chunk.Slice(10*mib, 4*mib)
	require.NoError(err)
	require.Equal([]chunk.Range{
		{Index: 0, Start: 0, End: 4 * mib},
		{Index: 1, Start: 4 * mib, End: 8 * mib},
		{Index: 2, Start: 8 * mib, End: 10 * mib},
	}, ranges)
	require.Equal(int64(2*mib), ranges[2].Len())
}

func Test_Slice_empty(t *testing.T) {
	ranges, err := chunk.Slice(0, 4*mib)
	assert.NoError(t, err)
	assert.Empty(t, ranges)
}

// Every (size, chunkSize) pair yields ceil(size/chunkSize) contiguous,
// non-overlapping ranges covering exactly [0, size)
func Test_Slice_cover(t *testing.T) {
	for size := int64(1); size <= 64; size++ {
		for chunkSize := int64(1); chunkSize <= 17; chunkSize++ {
			ranges, err := chunk.Slice(size, chunkSize)
			if err != nil {
				t.Fatalf("Slice(%d, %d): %v", size, chunkSize, err)
			}
			want := int((size + chunkSize - 1) / chunkSize)
			if len(ranges) != want {
				t.Fatalf("Slice(%d, %d): got %d ranges, want %d", size, chunkSize, len(ranges), want)
			}
			var next int64
			for i, r := range ranges {
				if r.Index != i {
					t.Errorf("Slice(%d, %d): range %d has index %d", size, chunkSize, i, r.Index)
				}
				if r.Start != next {
					t.Errorf("Slice(%d, %d): range %d starts at %d, want %d", size, chunkSize, i, r.Start, next)
				}
				if r.Len() <= 0 || r.Len() > chunkSize {
					t.Errorf("Slice(%d, %d): range %d has length %d", size, chunkSize, i, r.Len())
				}
				next = r.End
			}
			if next != size {
				t.Errorf("Slice(%d, %d): ranges end at %d, want %d", size, chunkSize, next, size)
			}
		}
	}
}

func Test_Section(t *testing.T) {
	assert := assert.New(t)

	data := []byte("0123456789")
	ranges, err := chunk.Slice(int64(len(data)), 4)
	assert.NoError(err)

	var out bytes.Buffer
	for _, r := range ranges {
		n, err := io.Copy(&out, r.Section(bytes.NewReader(data)))
		assert.NoError(err)
		assert.Equal(r.Len(), n)
	}
	assert.Equal(data, out.Bytes())

	b, err := io.ReadAll(ranges[2].Section(bytes.NewReader(data)))
	assert.NoError(err)
	assert.Equal([]byte("89"), b)
}
