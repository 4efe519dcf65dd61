package vorbis

import (
	"fmt"

	"github.com/albertz/ParseOggVorbis/internal/bits"
	"github.com/albertz/ParseOggVorbis/internal/codebook"
	"github.com/albertz/ParseOggVorbis/internal/floor"
	"github.com/albertz/ParseOggVorbis/internal/residue"
	"github.com/albertz/ParseOggVorbis/internal/window"
)

// Setup is the fully parsed setup header: codebooks, floors, residues,
// mappings and modes. It is immutable once parsed and may be shared by
// reference across concurrent readers.
type Setup struct {
	codebooks []*codebook.Codebook
	floors    []floor.Floor
	residues  []*residue.Residue
	mappings  []*mapping
	modes     []*mode
}

// NumCodebooks returns the number of codebooks in the setup.
func (s *Setup) NumCodebooks() int { return len(s.codebooks) }

// NumFloors returns the number of floor configurations.
func (s *Setup) NumFloors() int { return len(s.floors) }

// NumResidues returns the number of residue configurations.
func (s *Setup) NumResidues() int { return len(s.residues) }

// NumMappings returns the number of mappings.
func (s *Setup) NumMappings() int { return len(s.mappings) }

// NumModes returns the number of modes.
func (s *Setup) NumModes() int { return len(s.modes) }

// coupling is one (magnitude, angle) channel pair.
type coupling struct {
	magnitude int
	angle     int
}

// submap associates a floor and a residue configuration.
type submap struct {
	floor   int
	residue int
}

// mapping describes how channels split into submaps and which channel
// pairs are coupled. Vorbis I spec, section 4.2.4 step 6.
type mapping struct {
	couplings []coupling
	mux       []uint8 // channel -> submap index; all zero if one submap
	submaps   []submap
}

func parseMapping(r *bits.Reader, channels, numFloors, numResidues int) (*mapping, error) {
	if t := r.ReadBits(16); t != 0 {
		return nil, fmt.Errorf("%w: mapping type %d", ErrUnsupported, t)
	}
	m := &mapping{}

	numSubmaps := 1
	if r.ReadBool() {
		numSubmaps = int(r.ReadBits(4)) + 1
	}
	if r.ReadBool() {
		steps := int(r.ReadBits(8)) + 1
		couplingBits := uint(ilog(channels - 1))
		m.couplings = make([]coupling, steps)
		for i := range m.couplings {
			m.couplings[i].magnitude = int(r.ReadBits(couplingBits))
			m.couplings[i].angle = int(r.ReadBits(couplingBits))
			if m.couplings[i].magnitude == m.couplings[i].angle ||
				m.couplings[i].magnitude >= channels ||
				m.couplings[i].angle >= channels {
				return nil, fmt.Errorf("%w: coupling pair %d/%d", ErrFormat, m.couplings[i].magnitude, m.couplings[i].angle)
			}
		}
	}
	if r.ReadBits(2) != 0 {
		return nil, fmt.Errorf("%w: mapping reserved bits", ErrFormat)
	}

	m.mux = make([]uint8, channels)
	if numSubmaps > 1 {
		for i := range m.mux {
			m.mux[i] = uint8(r.ReadBits(4))
			if int(m.mux[i]) >= numSubmaps {
				return nil, fmt.Errorf("%w: mux %d for %d submaps", ErrFormat, m.mux[i], numSubmaps)
			}
		}
	}

	m.submaps = make([]submap, numSubmaps)
	for i := range m.submaps {
		r.ReadBits(8) // time configuration placeholder, discarded
		m.submaps[i].floor = int(r.ReadBits(8))
		if m.submaps[i].floor >= numFloors {
			return nil, fmt.Errorf("%w: submap floor %d", ErrFormat, m.submaps[i].floor)
		}
		m.submaps[i].residue = int(r.ReadBits(8))
		if m.submaps[i].residue >= numResidues {
			return nil, fmt.Errorf("%w: submap residue %d", ErrFormat, m.submaps[i].residue)
		}
	}
	return m, nil
}

// mode selects a window size and a mapping for an audio packet. The
// window shapes are precomputed at parse time: one shape for a short
// mode, four for a long mode keyed by the neighbor block flags.
type mode struct {
	blockFlag bool // long window
	mapping   int
	blocksize int
	windows   [][]float32 // 1 entry, or 4 indexed by prev + 2*next
}

func parseMode(r *bits.Reader, numMappings int, h *IdHeader) (*mode, error) {
	m := &mode{blockFlag: r.ReadBool()}
	if wt := r.ReadBits(16); wt != 0 {
		return nil, fmt.Errorf("%w: window type %d", ErrUnsupported, wt)
	}
	if tt := r.ReadBits(16); tt != 0 {
		return nil, fmt.Errorf("%w: transform type %d", ErrUnsupported, tt)
	}
	m.mapping = int(r.ReadBits(8))
	if m.mapping >= numMappings {
		return nil, fmt.Errorf("%w: mode mapping %d", ErrFormat, m.mapping)
	}

	if m.blockFlag {
		m.blocksize = h.Blocksize1
		m.windows = make([][]float32, 4)
		for idx := range m.windows {
			prev, next := idx&1 != 0, idx&2 != 0
			left, right := h.Blocksize0/2, h.Blocksize0/2
			if prev {
				left = h.Blocksize1 / 2
			}
			if next {
				right = h.Blocksize1 / 2
			}
			m.windows[idx] = window.New(m.blocksize, left, right)
		}
	} else {
		m.blocksize = h.Blocksize0
		m.windows = [][]float32{window.New(m.blocksize, h.Blocksize0/2, h.Blocksize0/2)}
	}
	return m, nil
}

// window returns the precomputed shape for the given neighbor flags.
// Short modes have a single shape; the flags are ignored.
func (m *mode) window(prevLong, nextLong bool) []float32 {
	if !m.blockFlag {
		return m.windows[0]
	}
	idx := 0
	if prevLong {
		idx |= 1
	}
	if nextLong {
		idx |= 2
	}
	return m.windows[idx]
}

// parseSetup decodes the setup header packet: the codebook list, the
// time-domain transform placeholders, floors, residues, mappings and
// modes, closed by a framing bit. Vorbis I spec, section 4.2.4.
func parseSetup(packet []byte, h *IdHeader) (*Setup, error) {
	body, err := checkHeaderPrefix(packet, packetTypeSetup)
	if err != nil {
		return nil, err
	}
	r := bits.NewReader(body)
	s := &Setup{}

	s.codebooks = make([]*codebook.Codebook, r.ReadBits(8)+1)
	for i := range s.codebooks {
		if s.codebooks[i], err = codebook.Parse(r); err != nil {
			return nil, fmt.Errorf("codebook %d: %w", i, err)
		}
	}

	// Time-domain transforms are placeholders in Vorbis I; the count
	// is read and every entry must be zero.
	numTransforms := int(r.ReadBits(6)) + 1
	for i := 0; i < numTransforms; i++ {
		if t := r.ReadBits(16); t != 0 {
			return nil, fmt.Errorf("%w: time transform type %d", ErrUnsupported, t)
		}
	}
	if r.EndReached() {
		return nil, fmt.Errorf("%w: setup packet ends inside transforms", ErrBounds)
	}

	s.floors = make([]floor.Floor, r.ReadBits(6)+1)
	for i := range s.floors {
		if s.floors[i], err = floor.Parse(r, s.codebooks); err != nil {
			return nil, fmt.Errorf("floor %d: %w", i, err)
		}
	}
	if r.EndReached() {
		return nil, fmt.Errorf("%w: setup packet ends inside floors", ErrBounds)
	}

	s.residues = make([]*residue.Residue, r.ReadBits(6)+1)
	for i := range s.residues {
		if s.residues[i], err = residue.Parse(r, s.codebooks); err != nil {
			return nil, fmt.Errorf("residue %d: %w", i, err)
		}
	}
	if r.EndReached() {
		return nil, fmt.Errorf("%w: setup packet ends inside residues", ErrBounds)
	}

	s.mappings = make([]*mapping, r.ReadBits(6)+1)
	for i := range s.mappings {
		if s.mappings[i], err = parseMapping(r, int(h.Channels), len(s.floors), len(s.residues)); err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
	}
	if r.EndReached() {
		return nil, fmt.Errorf("%w: setup packet ends inside mappings", ErrBounds)
	}

	s.modes = make([]*mode, r.ReadBits(6)+1)
	for i := range s.modes {
		if s.modes[i], err = parseMode(r, len(s.mappings), h); err != nil {
			return nil, fmt.Errorf("mode %d: %w", i, err)
		}
	}

	if r.ReadBits(1) != 1 {
		return nil, fmt.Errorf("%w: setup framing bit", ErrFormat)
	}
	if r.EndReached() {
		return nil, fmt.Errorf("%w: setup packet ends before framing bit", ErrBounds)
	}
	// Only zero padding may follow the framing bit, at most one byte.
	if r.ReadBits(8) != 0 {
		return nil, fmt.Errorf("%w: trailing data after setup framing bit", ErrFormat)
	}
	if r.ReadBits(1); !r.EndReached() {
		return nil, fmt.Errorf("%w: trailing data after setup framing bit", ErrFormat)
	}
	return s, nil
}
