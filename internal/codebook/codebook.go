// Package codebook implements Vorbis codebooks: parsing from the setup
// header, canonical codeword assignment, the optional VQ lookup table,
// and scalar/vector decode from a bitstream.
//
// Vorbis I spec, section 3 "Probability Model and Codebooks".
package codebook

import (
	"errors"
	"fmt"
	"math"

	"github.com/albertz/ParseOggVorbis/internal/bits"
	"github.com/albertz/ParseOggVorbis/internal/huffman"
)

// syncPattern is the 24-bit marker opening every codebook.
const syncPattern = 0x564342

var (
	// ErrSync is returned when the codebook sync pattern is missing.
	ErrSync = errors.New("codebook: sync pattern mismatch")
	// ErrBadConfig is returned for structurally invalid codebook
	// parameters (zero dimensions or entries, bad counts).
	ErrBadConfig = errors.New("codebook: invalid configuration")
	// ErrBadLookup is returned for a lookup type outside {0, 1, 2}.
	ErrBadLookup = errors.New("codebook: invalid lookup type")
	// ErrNoLookup is returned by DecodeVector on a scalar-only book.
	ErrNoLookup = errors.New("codebook: vector decode on lookup type 0")
	// ErrBadIndex is returned when a decoded entry has no lookup value.
	ErrBadIndex = errors.New("codebook: decoded index out of range")
	// ErrShortPacket is returned when the setup packet ends inside a
	// codebook definition.
	ErrShortPacket = errors.New("codebook: unexpected end of packet")
)

// Codebook is one parsed codebook. Immutable after Parse; safe for
// concurrent readers.
type Codebook struct {
	Dimensions int
	Entries    int

	lengths    []uint8  // per entry, 0 = unused
	codewords  []uint32 // canonical assignment, aligned with lengths
	tree       *huffman.Tree
	lookupType uint8
	minimum    float64
	delta      float64
	sequenceP  bool
	lookup     []float32 // Entries * Dimensions values, lookup types 1 and 2
}

// Parse reads one codebook from the setup bitstream.
func Parse(r *bits.Reader) (*Codebook, error) {
	if r.ReadBits(24) != syncPattern {
		return nil, ErrSync
	}
	c := &Codebook{
		Dimensions: int(r.ReadBits(16)),
		Entries:    int(r.ReadBits(24)),
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("%w: zero dimensions", ErrBadConfig)
	}
	if c.Entries == 0 {
		return nil, fmt.Errorf("%w: zero entries", ErrBadConfig)
	}

	c.lengths = make([]uint8, c.Entries)
	if !r.ReadBool() { // unordered
		sparse := r.ReadBool()
		for i := 0; i < c.Entries; i++ {
			if sparse && !r.ReadBool() {
				continue // unused entry
			}
			c.lengths[i] = uint8(r.ReadBits(5)) + 1
		}
	} else { // ordered: runs of equal lengths, lengths ascending
		curLen := uint8(r.ReadBits(5)) + 1
		for cur := 0; cur < c.Entries; {
			run := int(r.ReadBits(uint(ilog(c.Entries - cur))))
			if cur+run > c.Entries {
				return nil, fmt.Errorf("%w: ordered run overflows entry count", ErrBadConfig)
			}
			for i := cur; i < cur+run; i++ {
				c.lengths[i] = curLen
			}
			cur += run
			curLen++
			if curLen > 32 && cur < c.Entries {
				return nil, fmt.Errorf("%w: ordered lengths exceed 32", ErrBadConfig)
			}
		}
	}

	codewords, err := huffman.Assign(c.lengths)
	if err != nil {
		return nil, err
	}
	c.codewords = codewords
	c.tree, err = huffman.NewTree(c.lengths, c.codewords)
	if err != nil {
		return nil, err
	}

	c.lookupType = uint8(r.ReadBits(4))
	switch c.lookupType {
	case 0:
		// Scalar-only book.
	case 1, 2:
		c.minimum = float32Unpack(uint32(r.ReadBits(32)))
		c.delta = float32Unpack(uint32(r.ReadBits(32)))
		valueBits := uint(r.ReadBits(4)) + 1
		c.sequenceP = r.ReadBool()

		numValues := c.Entries * c.Dimensions
		if c.lookupType == 1 {
			numValues = lookup1Values(c.Entries, c.Dimensions)
		}
		multiplicands := make([]uint32, numValues)
		for i := range multiplicands {
			multiplicands[i] = uint32(r.ReadBits(valueBits))
		}
		c.buildLookup(multiplicands)
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadLookup, c.lookupType)
	}

	if r.EndReached() {
		return nil, ErrShortPacket
	}
	return c, nil
}

// buildLookup materializes the Entries x Dimensions VQ table.
//
// Type 1 indexes the multiplicand vector as digits of the entry number
// in base len(multiplicands); type 2 stores one multiplicand per cell.
// With the sequence flag, each value accumulates onto the previous one
// within the entry. Vorbis I spec, section 3.2.1 "VQ lookup table
// vector representation".
func (c *Codebook) buildLookup(multiplicands []uint32) {
	c.lookup = make([]float32, c.Entries*c.Dimensions)
	if c.lookupType == 1 {
		m := len(multiplicands)
		for entry := 0; entry < c.Entries; entry++ {
			last := 0.0
			divisor := 1
			for dim := 0; dim < c.Dimensions; dim++ {
				off := (entry / divisor) % m
				v := float64(multiplicands[off])*c.delta + c.minimum + last
				c.lookup[entry*c.Dimensions+dim] = float32(v)
				if c.sequenceP {
					last = v
				}
				divisor *= m
			}
		}
		return
	}
	offset := 0
	for entry := 0; entry < c.Entries; entry++ {
		last := 0.0
		for dim := 0; dim < c.Dimensions; dim++ {
			v := float64(multiplicands[offset])*c.delta + c.minimum + last
			c.lookup[offset] = float32(v)
			if c.sequenceP {
				last = v
			}
			offset++
		}
	}
}

// DecodeScalar reads one codeword and returns its entry number.
func (c *Codebook) DecodeScalar(r *bits.Reader) (uint32, error) {
	return c.tree.Decode(r)
}

// DecodeVector reads one codeword and returns the corresponding
// Dimensions-element row of the lookup table. The returned slice
// aliases the table and must not be modified.
func (c *Codebook) DecodeVector(r *bits.Reader) ([]float32, error) {
	if c.lookupType == 0 {
		return nil, ErrNoLookup
	}
	idx, err := c.DecodeScalar(r)
	if err != nil {
		return nil, err
	}
	if int(idx) >= c.Entries {
		return nil, ErrBadIndex
	}
	off := int(idx) * c.Dimensions
	return c.lookup[off : off+c.Dimensions], nil
}

// LookupType returns the VQ lookup type in {0, 1, 2}.
func (c *Codebook) LookupType() uint8 { return c.lookupType }

// CodewordLengths returns the per-entry code lengths (0 = unused).
func (c *Codebook) CodewordLengths() []uint8 { return c.lengths }

// Codewords returns the canonical codeword per entry.
func (c *Codebook) Codewords() []uint32 { return c.codewords }

// LookupTable returns the flat Entries x Dimensions VQ table, or nil
// for lookup type 0.
func (c *Codebook) LookupTable() []float32 { return c.lookup }

// float32Unpack decodes the 32-bit Vorbis float layout: 21 mantissa
// bits, 10 exponent bits biased by 788, sign in the top bit.
func float32Unpack(x uint32) float64 {
	mantissa := float64(x & 0x1fffff)
	exponent := int(x>>21&0x3ff) - 788
	if x&0x80000000 != 0 {
		mantissa = -mantissa
	}
	return math.Ldexp(mantissa, exponent)
}

// lookup1Values returns the largest k with k^dimensions <= entries.
func lookup1Values(entries, dimensions int) int {
	k := 0
	for powLE(k+1, dimensions, entries) {
		k++
	}
	return k
}

// powLE reports whether base^exp <= limit without overflowing.
func powLE(base, exp, limit int) bool {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
		if r > limit {
			return false
		}
	}
	return true
}

// ilog returns the position of the highest set bit, counting from one;
// ilog(0) is zero. This is the bit-width function the Vorbis spec uses
// for variably-sized fields.
func ilog(x int) int {
	n := 0
	for x > 0 {
		n++
		x >>= 1
	}
	return n
}
