// Package residue implements Vorbis residue decoding, formats 0, 1
// and 2: the per-channel spectral detail transmitted as VQ-coded
// partitions under an 8-pass cascade of codebooks.
//
// Vorbis I spec, section 8 "Residue setup and decode".
package residue

import (
	"errors"
	"fmt"

	"github.com/albertz/ParseOggVorbis/internal/bits"
	"github.com/albertz/ParseOggVorbis/internal/codebook"
)

var (
	// ErrBadType is returned for a residue type above 2.
	ErrBadType = errors.New("residue: invalid residue type")
	// ErrBadConfig is returned for invalid header fields (begin > end,
	// out-of-range book indices, partition size not matching book
	// dimensions for format 0).
	ErrBadConfig = errors.New("residue: invalid configuration")
)

// noBook marks a cascade slot without a codebook.
const noBook = -1

// Residue is one parsed residue configuration. Immutable after Parse.
type Residue struct {
	Type          int
	Begin, End    uint32
	PartitionSize uint32
	// Classifications is the number of partition classes.
	Classifications int
	Classbook       uint8
	// books[class*8+pass] is a codebook index or noBook.
	books []int16
}

// Parse reads one residue configuration from the setup bitstream.
// books is the already-parsed codebook list, used to validate indices
// and the format 0 dimension constraint.
func Parse(r *bits.Reader, books []*codebook.Codebook) (*Residue, error) {
	x := &Residue{Type: int(r.ReadBits(16))}
	if x.Type > 2 {
		return nil, fmt.Errorf("%w: %d", ErrBadType, x.Type)
	}
	x.Begin = uint32(r.ReadBits(24))
	x.End = uint32(r.ReadBits(24))
	if x.Begin > x.End {
		return nil, fmt.Errorf("%w: begin %d > end %d", ErrBadConfig, x.Begin, x.End)
	}
	x.PartitionSize = uint32(r.ReadBits(24)) + 1
	x.Classifications = int(r.ReadBits(6)) + 1
	x.Classbook = uint8(r.ReadBits(8))
	if int(x.Classbook) >= len(books) {
		return nil, fmt.Errorf("%w: classbook %d out of range", ErrBadConfig, x.Classbook)
	}

	cascades := make([]uint8, x.Classifications)
	for i := range cascades {
		low := uint8(r.ReadBits(3))
		high := uint8(0)
		if r.ReadBool() {
			high = uint8(r.ReadBits(5))
		}
		cascades[i] = high<<3 | low
	}

	x.books = make([]int16, x.Classifications*8)
	for i := 0; i < x.Classifications; i++ {
		for j := 0; j < 8; j++ {
			if cascades[i]&(1<<uint(j)) == 0 {
				x.books[i*8+j] = noBook
				continue
			}
			b := int16(r.ReadBits(8))
			if int(b) >= len(books) {
				return nil, fmt.Errorf("%w: book %d out of range", ErrBadConfig, b)
			}
			if x.Type == 0 && x.PartitionSize%uint32(books[b].Dimensions) != 0 {
				return nil, fmt.Errorf("%w: partition size %d not a multiple of book dimensions %d",
					ErrBadConfig, x.PartitionSize, books[b].Dimensions)
			}
			x.books[i*8+j] = b
		}
	}
	return x, nil
}

// Decode reads the residue vectors for one submap into out.
//
// channelUsed carries the per-channel floor flags after nonzero
// propagation; for formats 0 and 1, unused channels consume no bits
// and stay zero. Format 2 ignores the flags: it always decodes the
// interleaved vector and deinterleaves it into every channel. Each
// out[i] must have length n (the half blocksize) and arrive zeroed;
// decoded vectors are added into it.
func (x *Residue) Decode(r *bits.Reader, books []*codebook.Codebook, channelUsed []bool, n int, out [][]float32) error {
	if x.Type == 2 {
		// Format 2 is format 1 over a single interleaved channel of
		// length channels*n, deinterleaved afterwards.
		channels := len(channelUsed)
		flat := make([]float32, channels*n)
		if err := x.decodeFormat(1, r, books, []bool{true}, [][]float32{flat}); err != nil {
			return err
		}
		for j := 0; j < channels; j++ {
			for i := 0; i < n; i++ {
				out[j][i] = flat[j+channels*i]
			}
		}
		return nil
	}
	return x.decodeFormat(x.Type, r, books, channelUsed, out)
}

// decodeFormat runs the format 0/1 partition decode.
//
// The classification table is sized channels x (partitions + classbook
// dimensions): classword decode on pass 0 writes a full codeword worth
// of digits even near the end, and the slack rows absorb the overrun.
func (x *Residue) decodeFormat(format int, r *bits.Reader, books []*codebook.Codebook, channelUsed []bool, out [][]float32) error {
	channels := len(channelUsed)
	n := len(out[0])
	limitBegin := min(int(x.Begin), n)
	limitEnd := min(int(x.End), n)
	if limitBegin > limitEnd {
		return fmt.Errorf("%w: begin beyond end after clamping", ErrBadConfig)
	}
	toRead := limitEnd - limitBegin
	if toRead == 0 {
		return nil
	}

	classBook := books[x.Classbook]
	classwords := classBook.Dimensions
	partitionsToRead := toRead / int(x.PartitionSize)
	stride := partitionsToRead + classwords
	classifications := make([]uint8, channels*stride)

	for pass := 0; pass < 8; pass++ {
		partitionCount := 0
		for partitionCount < partitionsToRead {
			if pass == 0 {
				for j := 0; j < channels; j++ {
					if !channelUsed[j] {
						continue
					}
					temp, err := classBook.DecodeScalar(r)
					if err != nil {
						return err
					}
					// The scalar is a base-Classifications integer of
					// classwords digits, most significant first.
					for i := classwords; i > 0; i-- {
						classifications[j*stride+i-1+partitionCount] = uint8(temp % uint32(x.Classifications))
						temp /= uint32(x.Classifications)
					}
				}
			}
			for i := 0; i < classwords && partitionCount < partitionsToRead; i++ {
				for j := 0; j < channels; j++ {
					if channelUsed[j] {
						cls := classifications[j*stride+partitionCount]
						book := x.books[int(cls)*8+pass]
						if book != noBook {
							offset := limitBegin + partitionCount*int(x.PartitionSize)
							if err := x.decodePartition(format, r, books[book], out[j], offset); err != nil {
								return err
							}
						}
					}
					partitionCount++
				}
			}
		}
	}
	return nil
}

// decodePartition adds one partition worth of codebook vectors into
// v[offset:]. Format 0 interleaves each vector with stride
// partitionSize/dims; format 1 concatenates vectors back to back (a
// final vector may run past the partition when the book dimensions do
// not divide the partition size).
func (x *Residue) decodePartition(format int, r *bits.Reader, book *codebook.Codebook, v []float32, offset int) error {
	dims := book.Dimensions
	psize := int(x.PartitionSize)
	if format == 0 {
		step := psize / dims
		for k := 0; k < step; k++ {
			vec, err := book.DecodeVector(r)
			if err != nil {
				return err
			}
			for l, val := range vec {
				v[offset+k+l*step] += val
			}
		}
		return nil
	}
	for k := 0; k < psize; {
		vec, err := book.DecodeVector(r)
		if err != nil {
			return err
		}
		for _, val := range vec {
			if offset+k >= len(v) {
				return fmt.Errorf("%w: vector runs past the spectrum", ErrBadConfig)
			}
			v[offset+k] += val
			k++
		}
	}
	return nil
}
