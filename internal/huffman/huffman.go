// Package huffman builds the canonical prefix codes used by Vorbis
// codebooks and decodes symbols from a bitstream against them.
//
// Codewords are not transmitted; only their lengths are. The decoder
// reconstructs the unique canonical assignment and then walks a binary
// decision tree one bit at a time. Vorbis I spec, section 3.2.1
// "Huffman decision tree representation".
package huffman

import "errors"

var (
	// ErrOverspecified is returned when the transmitted code lengths
	// describe more leaves than a binary tree can hold.
	ErrOverspecified = errors.New("huffman: overspecified code lengths")
	// ErrUnderspecified is returned when the lengths leave part of the
	// tree unused, so some bit sequences would decode to nothing.
	ErrUnderspecified = errors.New("huffman: underspecified code lengths")
	// ErrBadLength is returned for a code length outside [1, 32].
	ErrBadLength = errors.New("huffman: code length out of range")
)

// Assign computes the canonical codeword for every used entry.
//
// lengths holds one code length per entry; zero marks an unused entry.
// The returned slice is aligned with lengths (unused entries get 0).
// Codewords are read MSb first: the first bit pulled off the stream is
// the highest bit of the codeword.
//
// The construction keeps, for each length, the next codeword available
// at that length ("marker"), assigns it, then sweeps the markers so
// that neither the codeword nor any extension of it can be issued
// again. A conforming set of lengths leaves every marker exactly
// exhausted; anything else is rejected.
func Assign(lengths []uint8) ([]uint32, error) {
	var marker [32]uint32
	codewords := make([]uint32, len(lengths))

	for i, l := range lengths {
		if l == 0 {
			continue
		}
		if l > 32 {
			return nil, ErrBadLength
		}
		codeword := marker[l-1]
		if codeword>>l != 0 {
			return nil, ErrOverspecified
		}
		codewords[i] = codeword

		for j := l; j > 0; j-- {
			if marker[j-1]&1 != 0 {
				// The low branch at this length is spent; carry into
				// the shorter prefix.
				if j == 1 {
					marker[0]++
				} else {
					marker[j-1] = marker[j-2] << 1
				}
				if uint64(marker[j-1]) > uint64(1)<<j {
					return nil, ErrOverspecified
				}
				break
			}
			marker[j-1]++
		}

		// Any longer marker that was a descendant of the assigned
		// codeword must be moved off it.
		w := codeword
		for j := uint(l) + 1; j <= 32; j++ {
			if marker[j-1]>>1 != w {
				break
			}
			w = marker[j-1]
			marker[j-1] = marker[j-2] << 1
		}
	}

	for i := 0; i < 31; i++ {
		if marker[i] != 1<<uint(i+1) {
			return nil, ErrUnderspecified
		}
	}
	if marker[31] != 0 {
		return nil, ErrUnderspecified
	}
	return codewords, nil
}
