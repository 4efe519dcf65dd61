package vorbis

import (
	"fmt"

	"github.com/albertz/ParseOggVorbis/internal/bits"
	"github.com/albertz/ParseOggVorbis/internal/floor"
)

// decodeAudio runs one audio packet through the synthesis pipeline:
// mode and window selection, per-channel floor curves, nonzero
// propagation over the coupling pairs, per-submap residue decode,
// inverse coupling, the floor product, the inverse MDCT, windowed
// overlap-add, and finally PCM emission between the window midpoints.
//
// The setup is read-only here; only the decode state mutates.
// Vorbis I spec, section 4.3 "Audio packet decode and synthesis".
func (d *Decoder) decodeAudio(st *stream, packet []byte) error {
	setup := st.setup
	header := st.header
	channels := int(header.Channels)
	if d.tap != nil {
		d.tap.Push("start_audio_packet", -1, nil)
	}

	r := bits.NewReader(packet)
	if r.ReadBits(1) != 0 {
		return fmt.Errorf("%w: packet type bit set on audio packet", ErrFormat)
	}

	modeIdx := int(r.ReadBits(uint(ilog(len(setup.modes) - 1))))
	if modeIdx >= len(setup.modes) {
		return fmt.Errorf("%w: mode index %d of %d", ErrBounds, modeIdx, len(setup.modes))
	}
	m := setup.modes[modeIdx]
	mp := setup.mappings[m.mapping]

	var prevLong, nextLong bool
	if m.blockFlag {
		prevLong = r.ReadBool()
		nextLong = r.ReadBool()
	}
	win := m.window(prevLong, nextLong)
	n := m.blocksize

	// Floor curve decode, one curve per channel.
	floorOutputs := make([][]float32, channels)
	floorUsed := make([]bool, channels)
	for ch := 0; ch < channels; ch++ {
		floorNumber := mp.submaps[mp.mux[ch]].floor
		if d.tap != nil {
			d.tap.Push("floor_number", ch, []uint8{uint8(floorNumber)})
		}
		floorOutputs[ch] = make([]float32, n)
		var trace floor.Trace
		if d.tap != nil {
			trace = func(name string, data any) { d.tap.Push(name, -1, data) }
		}
		used, err := setup.floors[floorNumber].Decode(r, setup.codebooks, floorOutputs[ch], trace)
		if err != nil {
			return err
		}
		floorUsed[ch] = used
		if used && d.tap != nil {
			d.tap.Push("floor_outputs", ch, floorOutputs[ch])
		}
	}

	// Nonzero vector propagation: a coupled pair lives or dies
	// together.
	for _, c := range mp.couplings {
		if floorUsed[c.magnitude] || floorUsed[c.angle] {
			floorUsed[c.magnitude] = true
			floorUsed[c.angle] = true
		}
	}

	// Residue decode, grouped by submap.
	residueOutputs := make([][]float32, channels)
	for submapIdx, sm := range mp.submaps {
		var used []bool
		var chans []int
		for ch := 0; ch < channels; ch++ {
			if int(mp.mux[ch]) == submapIdx {
				used = append(used, floorUsed[ch])
				chans = append(chans, ch)
			}
		}
		out := make([][]float32, len(chans))
		for i := range out {
			out[i] = make([]float32, n/2)
		}
		if err := setup.residues[sm.residue].Decode(r, setup.codebooks, used, n/2, out); err != nil {
			return err
		}
		for i, ch := range chans {
			residueOutputs[ch] = out[i]
		}
	}
	if d.tap != nil {
		for ch := 0; ch < channels; ch++ {
			d.tap.Push("after_residue", ch, residueOutputs[ch])
		}
	}

	// Inverse coupling, in reverse coupling order. (M, A) carry a
	// polar-like sum and difference; recover the two amplitudes.
	for i := len(mp.couplings) - 1; i >= 0; i-- {
		mag := residueOutputs[mp.couplings[i].magnitude]
		ang := residueOutputs[mp.couplings[i].angle]
		for j := range mag {
			mv, av := mag[j], ang[j]
			switch {
			case mv > 0 && av > 0:
				ang[j] = mv - av
			case mv > 0:
				mag[j] = mv + av
				ang[j] = mv
			case av > 0:
				ang[j] = mv + av
			default:
				mag[j] = mv - av
				ang[j] = mv
			}
		}
	}

	// Floor product: scale the residue by the floor envelope. Unused
	// channels keep their residue untouched (typically all zero).
	for ch := 0; ch < channels; ch++ {
		if floorUsed[ch] {
			res := residueOutputs[ch]
			fl := floorOutputs[ch]
			for i := 0; i < n/2; i++ {
				res[i] *= fl[i]
			}
		}
		if d.tap != nil {
			d.tap.Push("after_envelope", ch, residueOutputs[ch])
		}
	}

	// Inverse MDCT and windowed overlap-add.
	im := st.imdct[0]
	if m.blockFlag {
		im = st.imdct[1]
	}
	pcm := make([]float32, n)
	for ch := 0; ch < channels; ch++ {
		im.Backward(residueOutputs[ch], pcm)
		if d.tap != nil {
			d.tap.Push("pcm_after_mdct", ch, pcm)
		}
		if err := st.state.add(ch, pcm, win); err != nil {
			return err
		}
	}
	if d.tap != nil {
		d.tap.Push("finish_audio_packet", -1, nil)
	}

	// Cursor advance and PCM emission. The first audio packet only
	// establishes the midpoint baseline and emits nothing.
	prevWin := 0
	if st.audioPackets > 0 {
		prevWin = header.Blocksize0
		if prevLong {
			prevWin = header.Blocksize1
		}
	}
	nextWin := header.Blocksize0
	if nextLong {
		nextWin = header.Blocksize1
	}
	st.audioPackets++
	return st.state.advance(prevWin, n, nextWin, func(spans [][]float32) bool {
		if d.tap != nil {
			for ch := range spans {
				d.tap.Push("pcm", ch, spans[ch])
			}
		}
		return d.cb.PCM == nil || d.cb.PCM(spans)
	})
}
