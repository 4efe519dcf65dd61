// Package ogg implements the Ogg page framing layer: reading page
// headers, validating their CRC, and reassembling packets from the
// segment lacing table.
//
// Framing is described at https://xiph.org/vorbis/doc/framing.html.
package ogg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/albertz/ParseOggVorbis/internal/crc"
)

// Header type flag bits.
const (
	FlagContinued = 0x1 // page continues a packet from the previous page
	FlagFirst     = 0x2 // first page of a logical stream (bos)
	FlagLast      = 0x4 // last page of a logical stream (eos)
)

// headerSize is the fixed page header prefix: capture pattern, version,
// flags, granule position, serial, sequence, CRC, segment count.
const headerSize = 27

// maxDataSize is the largest possible page body: 255 segments of 255
// bytes each.
const maxDataSize = 255 * 255

var (
	// ErrBadMagic is returned when the capture pattern is not "OggS".
	ErrBadMagic = errors.New("ogg: capture pattern mismatch")
	// ErrBadVersion is returned for a stream structure version other than 0.
	ErrBadVersion = errors.New("ogg: unsupported stream structure version")
	// ErrBadCRC is returned when the stored page CRC does not match the
	// checksum computed over the page.
	ErrBadCRC = errors.New("ogg: page crc mismatch")
	// ErrTruncated is returned on a short read in the middle of a page.
	ErrTruncated = errors.New("ogg: truncated page")
	// ErrPacketSpansPages is returned when a page ends with a lacing
	// value of 255, meaning the final packet continues on the next
	// page. Continued packets are not supported.
	ErrPacketSpansPages = errors.New("ogg: packet spanning pages not supported")
)

// Header is a decoded page header.
type Header struct {
	Version     uint8
	Flags       uint8
	GranulePos  int64 // end PCM sample index of the last packet completed on this page
	Serial      uint32
	Sequence    uint32
	CRC         uint32
	NumSegments uint8
}

// Page is one Ogg page: its header, segment table and body.
// The SegmentTable and Data slices alias buffers owned by the Framer
// and are only valid until the next call to Next.
type Page struct {
	Header
	SegmentTable []byte
	Data         []byte
}

// Packets splits the page body into packets. A packet ends at the
// first segment with a lacing value below 255. The framer has already
// rejected pages whose final packet is unterminated, so the returned
// slices cover the body exactly.
func (p *Page) Packets() [][]byte {
	var packets [][]byte
	offset, length := 0, 0
	for _, seg := range p.SegmentTable {
		length += int(seg)
		if seg < 255 {
			packets = append(packets, p.Data[offset:offset+length])
			offset += length
			length = 0
		}
	}
	return packets
}

// Framer reads pages from a byte stream.
//
// Per page it moves through three states: reading the fixed header,
// reading segment table plus body, done. A clean zero-byte read at a
// page boundary is the end of the stream (io.EOF from Next); a short
// read anywhere inside a page is ErrTruncated.
type Framer struct {
	r      io.Reader
	header [headerSize]byte
	segs   [255]byte
	data   [maxDataSize]byte
}

// NewFramer creates a Framer reading from r.
func NewFramer(r io.Reader) *Framer {
	return &Framer{r: r}
}

// Next reads and validates the next page. It returns io.EOF at a clean
// end of stream. The returned page aliases internal buffers and is
// valid until the following call.
func (f *Framer) Next() (*Page, error) {
	n, err := io.ReadFull(f.r, f.header[:])
	if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: page header (%d of %d bytes)", ErrTruncated, n, headerSize)
	}

	h := f.header[:]
	if string(h[0:4]) != "OggS" {
		return nil, ErrBadMagic
	}
	page := &Page{Header: Header{
		Version:     h[4],
		Flags:       h[5],
		GranulePos:  int64(binary.LittleEndian.Uint64(h[6:14])),
		Serial:      binary.LittleEndian.Uint32(h[14:18]),
		Sequence:    binary.LittleEndian.Uint32(h[18:22]),
		CRC:         binary.LittleEndian.Uint32(h[22:26]),
		NumSegments: h[26],
	}}
	if page.Version != 0 {
		return nil, fmt.Errorf("%w: version %d", ErrBadVersion, page.Version)
	}

	nseg := int(page.NumSegments)
	if _, err := io.ReadFull(f.r, f.segs[:nseg]); err != nil {
		return nil, fmt.Errorf("%w: segment table", ErrTruncated)
	}
	page.SegmentTable = f.segs[:nseg]

	dataLen := 0
	for _, s := range page.SegmentTable {
		dataLen += int(s)
	}
	if nseg > 0 && page.SegmentTable[nseg-1] == 255 {
		return nil, ErrPacketSpansPages
	}
	if _, err := io.ReadFull(f.r, f.data[:dataLen]); err != nil {
		return nil, fmt.Errorf("%w: page body", ErrTruncated)
	}
	page.Data = f.data[:dataLen]

	// The stored CRC is computed with its own field zeroed.
	h[22], h[23], h[24], h[25] = 0, 0, 0, 0
	sum := crc.Update(0, h)
	sum = crc.Update(sum, page.SegmentTable)
	sum = crc.Update(sum, page.Data)
	if sum != page.CRC {
		return nil, fmt.Errorf("%w: stored %#08x, computed %#08x", ErrBadCRC, page.CRC, sum)
	}
	return page, nil
}
