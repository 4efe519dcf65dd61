package vorbis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/albertz/ParseOggVorbis/internal/window"
)

// refOverlapAdd accumulates windowed packets on an unbounded virtual
// timeline, the ground truth the ring-buffer state must reproduce
// across its internal moves.
type refOverlapAdd struct {
	buf    []float64
	offset int // virtual position of the current window
}

func (r *refOverlapAdd) add(pcm, win []float32) {
	for r.offset+len(win) > len(r.buf) {
		r.buf = append(r.buf, make([]float64, 4096)...)
	}
	for i := range win {
		r.buf[r.offset+i] += float64(pcm[i]) * float64(win[i])
	}
}

func (r *refOverlapAdd) advance(cur, next int) {
	r.offset += cur/4*3 - next/4
}

func TestDecodeState_EmissionLengths(t *testing.T) {
	// Emission after each packet spans from the previous window's
	// midpoint to the current one: (prev + cur)/4 samples.
	const w = 64
	s := newDecodeState(1, w*10)
	pcm := make([]float32, w)
	win := make([]float32, w)

	var emitted []int
	emit := func(spans [][]float32) bool {
		emitted = append(emitted, len(spans[0]))
		return true
	}

	for p := 0; p < 5; p++ {
		if err := s.add(0, pcm, win); err != nil {
			t.Fatalf("add %d: %v", p, err)
		}
		prev := w
		if p == 0 {
			prev = 0
		}
		if err := s.advance(prev, w, w, emit); err != nil {
			t.Fatalf("advance %d: %v", p, err)
		}
	}
	if len(emitted) != 4 {
		t.Fatalf("emitted %d spans, want 4 (first packet emits nothing)", len(emitted))
	}
	for i, n := range emitted {
		if n != w/2 {
			t.Errorf("span %d length = %d, want %d", i, n, w/2)
		}
	}
}

// TestDecodeState_MatchesReference drives a random mix of short and
// long windows through the state, forcing both internal moves (the
// slide left near the buffer end and the slide right on short-to-long
// transitions), and compares every emitted sample against the
// unbounded reference timeline.
func TestDecodeState_MatchesReference(t *testing.T) {
	const short, long = 64, 256
	rng := rand.New(rand.NewSource(9))

	sizes := []int{short}
	for p := 0; p < 40; p++ {
		if rng.Intn(2) == 0 {
			sizes = append(sizes, short)
		} else {
			sizes = append(sizes, long)
		}
	}

	s := newDecodeState(1, short*5+long*5)
	// The reference timeline starts at origin rather than 0 so that a
	// short-to-long step, which moves the window start left, stays on it.
	const origin = long
	ref := &refOverlapAdd{offset: origin}
	var got []float64
	emit := func(spans [][]float32) bool {
		for _, v := range spans[0] {
			got = append(got, float64(v))
		}
		return true
	}

	sample := 0
	for p, cur := range sizes {
		prev, next := cur, cur
		if p > 0 {
			prev = sizes[p-1]
		}
		if p+1 < len(sizes) {
			next = sizes[p+1]
		}
		// The true window geometry: a short block always has short
		// slopes; a long block adapts each slope to its neighbor.
		win := window.New(cur, short/2, short/2)
		if cur == long {
			win = window.New(cur, min(prev, cur)/2, min(next, cur)/2)
		}

		pcm := make([]float32, cur)
		for i := range pcm {
			pcm[i] = float32(math.Sin(float64(sample+i) * 0.01))
		}
		sample += cur

		if err := s.add(0, pcm, win); err != nil {
			t.Fatalf("packet %d (size %d): add: %v", p, cur, err)
		}
		ref.add(pcm, win)
		prevArg := prev
		if p == 0 {
			prevArg = 0
		}
		if err := s.advance(prevArg, cur, next, emit); err != nil {
			t.Fatalf("packet %d (size %d): advance: %v", p, cur, err)
		}
		ref.advance(cur, next)
	}

	// Reference emission: from the midpoint of window 0 through the
	// midpoint of the last window.
	start := origin + sizes[0]/2
	var want []float64
	off := origin
	for p := 0; p < len(sizes)-1; p++ {
		off += sizes[p]/4*3 - sizes[p+1]/4
	}
	end := off + sizes[len(sizes)-1]/2
	want = ref.buf[start:end]

	if len(got) != len(want) {
		t.Fatalf("emitted %d samples, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-5 {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeState_StoppedByEmit(t *testing.T) {
	const w = 64
	s := newDecodeState(1, w*10)
	pcm := make([]float32, w)
	win := make([]float32, w)

	if err := s.add(0, pcm, win); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.advance(0, w, w, func([][]float32) bool { return false }); err != nil {
		t.Fatalf("first advance (no emission): %v", err)
	}
	if err := s.add(0, pcm, win); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.advance(w, w, w, func([][]float32) bool { return false }); err != ErrStopped {
		t.Fatalf("advance = %v, want ErrStopped", err)
	}
}

func TestDecodeState_AddBoundsChecked(t *testing.T) {
	s := newDecodeState(1, 16)
	pcm := make([]float32, 32)
	win := make([]float32, 32)
	if err := s.add(0, pcm, win); err == nil {
		t.Error("add past buffer end did not fail")
	}
	if err := s.add(0, pcm[:8], win); err == nil {
		t.Error("mismatched pcm/window lengths did not fail")
	}
}
