package vorbis

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/albertz/ParseOggVorbis/internal/floor"
	"github.com/albertz/ParseOggVorbis/internal/mdct"
	"github.com/albertz/ParseOggVorbis/internal/ogg"
)

// Decoder reads an Ogg stream and decodes every Vorbis logical stream
// it contains, delivering results through the host callbacks.
//
// A Decoder is single-threaded: it never starts goroutines and must
// not be shared across them. Independent Decoder instances are
// unrelated and may run concurrently.
type Decoder struct {
	framer  *ogg.Framer
	cb      Callbacks
	tap     Tap
	streams map[uint32]*stream
}

// stream is one logical Vorbis stream, keyed by its Ogg serial number.
type stream struct {
	serial       uint32
	packetCount  uint64
	audioPackets uint64
	granulePos   int64

	header *IdHeader
	setup  *Setup
	state  *decodeState
	// imdct[0] is the short-block transform, imdct[1] the long one.
	imdct [2]*mdct.IMDCT
}

// NewDecoder creates a Decoder reading Ogg data from r.
func NewDecoder(r io.Reader, cb Callbacks) *Decoder {
	return &Decoder{
		framer:  ogg.NewFramer(r),
		cb:      cb,
		streams: make(map[uint32]*stream),
	}
}

// SetTap installs a debug tap. Must be called before the first page is
// read.
func (d *Decoder) SetTap(t Tap) {
	d.tap = t
}

// DecodeFile decodes the Ogg file at path to completion.
func DecodeFile(path string, cb Callbacks) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return NewDecoder(f, cb).Run()
}

// DecodeBytes decodes an in-memory Ogg stream to completion.
func DecodeBytes(data []byte, cb Callbacks) error {
	return NewDecoder(bytes.NewReader(data), cb).Run()
}

// Run reads pages until the end of the input or the first error.
// A callback returning false stops the run with ErrStopped.
func (d *Decoder) Run() error {
	for {
		err := d.ReadPage()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ReadPage reads and processes a single page: registers or tears down
// the logical stream per the header flags and routes each completed
// packet. Returns io.EOF at a clean end of input.
func (d *Decoder) ReadPage() error {
	page, err := d.framer.Next()
	if err != nil {
		return err
	}

	if page.Flags&ogg.FlagFirst != 0 {
		if _, ok := d.streams[page.Serial]; ok {
			return fmt.Errorf("%w: duplicate stream serial %#x", ErrFormat, page.Serial)
		}
		d.streams[page.Serial] = &stream{serial: page.Serial}
	}
	st, ok := d.streams[page.Serial]
	if !ok {
		return fmt.Errorf("%w: page for unknown stream serial %#x", ErrFormat, page.Serial)
	}
	st.granulePos = page.GranulePos

	for _, packet := range page.Packets() {
		if err := d.handlePacket(st, packet); err != nil {
			return err
		}
	}

	if page.Flags&ogg.FlagLast != 0 {
		if d.cb.EOF != nil && !d.cb.EOF() {
			return ErrStopped
		}
		delete(d.streams, page.Serial)
	}
	return nil
}

// GranulePosition returns the granule position of the last page seen
// for the given stream serial: in Vorbis, the end PCM sample index of
// the last packet completed on that page.
func (d *Decoder) GranulePosition(serial uint32) (int64, bool) {
	st, ok := d.streams[serial]
	if !ok {
		return 0, false
	}
	return st.granulePos, true
}

// handlePacket dispatches one packet by the stream's packet counter:
// the first three packets are the identification, comment and setup
// headers, everything after is audio.
func (d *Decoder) handlePacket(st *stream, packet []byte) error {
	n := st.packetCount
	st.packetCount++
	switch n {
	case 0:
		h, err := parseIDHeader(packet)
		if err != nil {
			return err
		}
		st.header = h
		if d.cb.Header != nil && !d.cb.Header(h) {
			return ErrStopped
		}
		return nil
	case 1:
		if st.header == nil {
			return fmt.Errorf("%w: comment header before id header", ErrFormat)
		}
		c, err := parseCommentHeader(packet)
		if err != nil {
			return err
		}
		if d.cb.Comments != nil && !d.cb.Comments(c) {
			return ErrStopped
		}
		return nil
	case 2:
		return d.handleSetup(st, packet)
	default:
		if st.setup == nil {
			return fmt.Errorf("%w: audio packet before setup", ErrFormat)
		}
		return d.decodeAudio(st, packet)
	}
}

// handleSetup parses the setup header and brings up the per-stream
// decode machinery: the two IMDCT instances and the PCM accumulator.
func (d *Decoder) handleSetup(st *stream, packet []byte) error {
	s, err := parseSetup(packet, st.header)
	if err != nil {
		return err
	}
	st.setup = s
	st.imdct[0] = mdct.New(st.header.Blocksize0)
	st.imdct[1] = mdct.New(st.header.Blocksize1)
	// Generous accumulator; anything past blocksize1*2 is slack.
	st.state = newDecodeState(st.header.Channels,
		st.header.Blocksize0*5+st.header.Blocksize1*5)

	if d.tap != nil {
		d.tap.Start("ParseOggVorbis", st.header.SampleRate, st.header.Channels)
		for _, f := range s.floors {
			if f1, ok := f.(*floor.Floor1); ok {
				d.tap.Push("floor1_unpack multiplier", -1, []uint8{f1.Multiplier()})
				d.tap.Push("floor1_unpack xs", -1, f1.XList())
			}
		}
		d.tap.Push("finish_setup", -1, nil)
	}

	if d.cb.Setup != nil && !d.cb.Setup(s) {
		return ErrStopped
	}
	return nil
}
