package manager

import (
	"math/bits"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// bitmap records which chunks of an upload have been received
type bitmap struct {
	words []uint64
	size  int
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newBitmap(size int) *bitmap {
	return &bitmap{words: make([]uint64, (size+63)/64), size: size}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Set bit i, and return true if it was not already set
func (b *bitmap) Set(i int) bool {
	word, mask := i/64, uint64(1)<<(i%64)
	if b.words[word]&mask != 0 {
		return false
	}
	b.words[word] |= mask
	return true
}

// Clear bit i, and return true if it was set
func (b *bitmap) Clear(i int) bool {
	word, mask := i/64, uint64(1)<<(i%64)
	if b.words[word]&mask == 0 {
		return false
	}
	b.words[word] &^= mask
	return true
}

// Count returns the number of bits set
func (b *bitmap) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// FirstUnset returns the lowest unset bit, or -1 if all bits are set
func (b *bitmap) FirstUnset() int {
	for i, w := range b.words {
		if w == ^uint64(0) {
			continue
		}
		if n := i*64 + bits.TrailingZeros64(^w); n < b.size {
			return n
		}
		return -1
	}
	return -1
}
