package vorbis

import "fmt"

// decodeState is the per-stream overlap-add accumulator: one PCM ring
// per channel, a write cursor, and the offset of the previous window's
// midpoint. Windowed IMDCT output is added at the cursor; after each
// packet the span between the previous and current window midpoints is
// complete and is emitted to the host.
//
// Samples outside the live span are zero; after emission the left half
// of the next window is already present, pre-multiplied by its window
// shape.
type decodeState struct {
	pcm [][]float32
	// cursor is where the current window was added.
	cursor int
	// prevHalfOffset is the previous window midpoint, relative to
	// cursor.
	prevHalfOffset int
}

func newDecodeState(channels uint8, bufferSize int) *decodeState {
	s := &decodeState{pcm: make([][]float32, channels)}
	for i := range s.pcm {
		s.pcm[i] = make([]float32, bufferSize)
	}
	return s
}

// add overlap-adds one channel's time-domain vector, multiplied by the
// window shape, at the cursor.
func (s *decodeState) add(channel int, pcm, win []float32) error {
	if len(pcm) != len(win) {
		return fmt.Errorf("%w: pcm length %d vs window length %d", ErrBounds, len(pcm), len(win))
	}
	if s.cursor+len(win) > len(s.pcm[channel]) {
		return fmt.Errorf("%w: window overruns pcm buffer", ErrBounds)
	}
	dst := s.pcm[channel][s.cursor:]
	for i, v := range pcm {
		dst[i] += v * win[i]
	}
	return nil
}

// advance emits the completed span and moves the cursor for the next
// window: next = cursor + 3/4*cur - 1/4*next. When the next window
// would overrun the buffer, the surviving tail of the current window
// is moved to the left edge; when the next cursor would go negative
// (short window followed by long), the data is moved right instead.
// Either move must preserve everything from the earlier of the current
// midpoint (unemitted samples start there) and the next cursor.
//
// prevWin is zero for the first audio packet, which emits nothing.
// emit receives one borrowed slice per channel, valid only during the
// call; a false return aborts with ErrStopped.
//
// The midpoint offset can go negative: after a long window followed by
// a short one, the long window's midpoint lies before the short
// window's start.
func (s *decodeState) advance(prevWin, curWin, nextWin int, emit func([][]float32) bool) error {
	curHalf := s.cursor + curWin/2
	if prevWin > 0 {
		prevHalf := s.cursor + s.prevHalfOffset
		if prevHalf < 0 || prevHalf >= curHalf {
			return fmt.Errorf("%w: window midpoints out of order", ErrBounds)
		}
		spans := make([][]float32, len(s.pcm))
		for ch := range s.pcm {
			spans[ch] = s.pcm[ch][prevHalf:curHalf]
		}
		if !emit(spans) {
			return ErrStopped
		}
	}

	next := s.cursor + curWin/4*3 - nextWin/4
	liveEnd := s.cursor + curWin
	switch {
	case next+nextWin >= len(s.pcm[0]):
		// Slide left: move the live region to the buffer start.
		liveStart := min(curHalf, next)
		for ch := range s.pcm {
			copy(s.pcm[ch][:liveEnd-liveStart], s.pcm[ch][liveStart:liveEnd])
			zero(s.pcm[ch][liveEnd-liveStart:])
		}
		curHalf -= liveStart
		next -= liveStart
	case next < 0:
		// Slide right to make room on the left.
		extra := -next
		if liveEnd+extra > len(s.pcm[0]) {
			return fmt.Errorf("%w: no room for the next window", ErrBounds)
		}
		for ch := range s.pcm {
			copy(s.pcm[ch][extra:liveEnd+extra], s.pcm[ch][:liveEnd])
			zero(s.pcm[ch][:extra])
		}
		curHalf += extra
		next = 0
	}
	s.prevHalfOffset = curHalf - next
	s.cursor = next
	return nil
}

func zero(v []float32) {
	for i := range v {
		v[i] = 0
	}
}
