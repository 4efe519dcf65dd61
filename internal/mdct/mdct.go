// Package mdct implements the inverse Modified Discrete Cosine
// Transform in the Vorbis convention:
//
//	y[j] = sum_k X[k] * cos(2*pi/n * (j + 1/2 + n/4) * (k + 1/2))
//
// for n output samples from n/2 spectral coefficients, j in [0, n),
// k in [0, n/2). Adjacent windowed outputs overlap-add to cancel the
// time-domain aliasing (TDAC).
//
// The transform is computed through an n/4-point complex FFT with pre-
// and post-twiddles, then unfolded into the four quarters by the MDCT
// symmetries. A decoder needs exactly two instances, one per
// blocksize; each owns its tables and scratch, so Backward never
// allocates.
package mdct

import (
	"math"

	"github.com/albertz/ParseOggVorbis/internal/fft"
)

// IMDCT computes inverse MDCTs of a fixed size.
type IMDCT struct {
	n       int // output length (the blocksize)
	half    int // n/2, spectrum length
	quarter int // n/4, FFT size

	fft    *fft.FFT
	preRe  []float64 // exp(-i*pi*p/half), p < quarter
	preIm  []float64
	postRe []float64 // exp(-i*pi*(4*q+1)/(4*half)), q < quarter
	postIm []float64

	bufRe []float64 // FFT scratch, length quarter
	bufIm []float64
	fold  []float64 // DCT-IV result, length half
}

// New creates an IMDCT instance for blocksize n. n must be a power of
// two and at least 8.
func New(n int) *IMDCT {
	if n < 8 || n&(n-1) != 0 {
		panic("mdct: blocksize must be a power of two >= 8")
	}
	m := &IMDCT{
		n:       n,
		half:    n / 2,
		quarter: n / 4,
	}
	m.fft = fft.New(m.quarter)
	m.preRe = make([]float64, m.quarter)
	m.preIm = make([]float64, m.quarter)
	m.postRe = make([]float64, m.quarter)
	m.postIm = make([]float64, m.quarter)
	for p := 0; p < m.quarter; p++ {
		a := math.Pi * float64(p) / float64(m.half)
		m.preRe[p] = math.Cos(a)
		m.preIm[p] = -math.Sin(a)
		b := math.Pi * float64(4*p+1) / float64(4*m.half)
		m.postRe[p] = math.Cos(b)
		m.postIm[p] = -math.Sin(b)
	}
	m.bufRe = make([]float64, m.quarter)
	m.bufIm = make([]float64, m.quarter)
	m.fold = make([]float64, m.half)
	return m
}

// N returns the output length (the blocksize).
func (m *IMDCT) N() int { return m.n }

// Backward computes the inverse transform of the half-length spectrum
// in into the full-length time-domain vector out. len(in) must be N/2
// and len(out) must be N.
func (m *IMDCT) Backward(in, out []float32) {
	M, P := m.half, m.quarter

	// Pair the spectrum into P complex points and pre-twiddle.
	for p := 0; p < P; p++ {
		zr := float64(in[2*p])
		zi := float64(in[M-1-2*p])
		m.bufRe[p] = zr*m.preRe[p] - zi*m.preIm[p]
		m.bufIm[p] = zr*m.preIm[p] + zi*m.preRe[p]
	}
	m.fft.Transform(m.bufRe, m.bufIm)

	// Post-twiddle back into a DCT-IV of the spectrum.
	for q := 0; q < P; q++ {
		vr := m.bufRe[q]*m.postRe[q] - m.bufIm[q]*m.postIm[q]
		vi := m.bufRe[q]*m.postIm[q] + m.bufIm[q]*m.postRe[q]
		m.fold[2*q] = vr
		m.fold[M-1-2*q] = -vi
	}

	// Unfold (A, B) = fold halves into (B, -rev(B), -rev(A), -A).
	for j := 0; j < P; j++ {
		out[j] = float32(m.fold[P+j])
		out[P+j] = float32(-m.fold[M-1-j])
		out[M+j] = float32(-m.fold[P-1-j])
		out[M+P+j] = float32(-m.fold[j])
	}
}
