// Package floor implements the Vorbis floor configurations and the
// floor type 1 curve synthesis. The floor is the smoothed spectral
// envelope multiplied onto the residue before the inverse MDCT.
//
// Floor type 0 (LSP-based) is parsed but its synthesis is not
// implemented; it is essentially unused in deployed streams.
package floor

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/albertz/ParseOggVorbis/internal/bits"
	"github.com/albertz/ParseOggVorbis/internal/codebook"
)

var (
	// ErrBadType is returned for a floor type other than 0 or 1.
	ErrBadType = errors.New("floor: invalid floor type")
	// ErrBadConfig is returned for out-of-range configuration indices.
	ErrBadConfig = errors.New("floor: invalid configuration")
	// ErrFloor0NotImplemented is returned by Floor0.Decode.
	ErrFloor0NotImplemented = errors.New("floor: floor type 0 synthesis not implemented")
	// ErrBadCurve is returned when synthesized floor values leave the
	// representable range.
	ErrBadCurve = errors.New("floor: curve value out of range")
)

// Trace receives named intermediate vectors during synthesis. It may
// be nil. Used by the debug tap to compare against a reference
// decoder.
type Trace func(name string, data any)

// Floor is one parsed floor configuration. Decode synthesizes the
// curve for one channel into out (length = blocksize; only the first
// half is meaningful downstream) and reports whether the channel
// carries energy this packet.
type Floor interface {
	Decode(r *bits.Reader, books []*codebook.Codebook, out []float32, trace Trace) (used bool, err error)
}

// Parse reads one floor configuration of either type.
func Parse(r *bits.Reader, books []*codebook.Codebook) (Floor, error) {
	floorType := r.ReadBits(16)
	switch floorType {
	case 0:
		return parseFloor0(r, len(books))
	case 1:
		return parseFloor1(r, len(books))
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadType, floorType)
	}
}

// Floor0 is the LSP floor header. Vorbis I spec, section 6.2.
type Floor0 struct {
	Order           uint8
	Rate            uint16
	BarkMapSize     uint16
	AmplitudeBits   uint8
	AmplitudeOffset uint8
	Books           []uint8
}

func parseFloor0(r *bits.Reader, numBooks int) (*Floor0, error) {
	f := &Floor0{
		Order:           uint8(r.ReadBits(8)),
		Rate:            uint16(r.ReadBits(16)),
		BarkMapSize:     uint16(r.ReadBits(16)),
		AmplitudeBits:   uint8(r.ReadBits(6)),
		AmplitudeOffset: uint8(r.ReadBits(8)),
	}
	f.Books = make([]uint8, r.ReadBits(4)+1)
	for i := range f.Books {
		f.Books[i] = uint8(r.ReadBits(8))
		if int(f.Books[i]) >= numBooks {
			return nil, fmt.Errorf("%w: floor0 book %d out of range", ErrBadConfig, f.Books[i])
		}
	}
	return f, nil
}

// Decode is not implemented for floor type 0.
func (f *Floor0) Decode(*bits.Reader, []*codebook.Codebook, []float32, Trace) (bool, error) {
	return false, ErrFloor0NotImplemented
}

// class is one floor 1 partition class definition.
type class struct {
	dimensions    uint8
	subclass      uint8 // log2 of the subordinate book count
	masterbook    uint8
	subclassBooks []int // -1 means "no book": the Y value is zero
}

// Floor1 is the piecewise-linear floor. Vorbis I spec, sections 7.2
// (header and packet decode) and 7.2.4 (curve computation).
type Floor1 struct {
	partitionClasses []uint8
	classes          []class
	multiplier       uint8
	xs               []uint32
	sortedIndex      []int // indices into xs, ascending by X value
}

// rangeByMultiplier maps the multiplier field to the Y value range.
// The 86 for multiplier 3 is verbatim from the reference.
var rangeByMultiplier = [4]int{256, 128, 86, 64}

func parseFloor1(r *bits.Reader, numBooks int) (*Floor1, error) {
	f := &Floor1{}
	f.partitionClasses = make([]uint8, r.ReadBits(5))
	maxClass := -1
	for i := range f.partitionClasses {
		f.partitionClasses[i] = uint8(r.ReadBits(4))
		if int(f.partitionClasses[i]) > maxClass {
			maxClass = int(f.partitionClasses[i])
		}
	}

	f.classes = make([]class, maxClass+1)
	for i := range f.classes {
		cl := &f.classes[i]
		cl.dimensions = uint8(r.ReadBits(3)) + 1
		cl.subclass = uint8(r.ReadBits(2))
		if cl.subclass > 0 {
			cl.masterbook = uint8(r.ReadBits(8))
			if int(cl.masterbook) >= numBooks {
				return nil, fmt.Errorf("%w: masterbook %d out of range", ErrBadConfig, cl.masterbook)
			}
		}
		cl.subclassBooks = make([]int, 1<<cl.subclass)
		for j := range cl.subclassBooks {
			cl.subclassBooks[j] = int(r.ReadBits(8)) - 1
			if cl.subclassBooks[j] >= numBooks {
				return nil, fmt.Errorf("%w: subclass book %d out of range", ErrBadConfig, cl.subclassBooks[j])
			}
		}
	}

	f.multiplier = uint8(r.ReadBits(2)) + 1
	rangeBits := uint(r.ReadBits(4))
	f.xs = []uint32{0, 1 << rangeBits}
	for _, classIdx := range f.partitionClasses {
		cl := &f.classes[classIdx]
		for j := 0; j < int(cl.dimensions); j++ {
			f.xs = append(f.xs, uint32(r.ReadBits(rangeBits)))
		}
	}

	// The curve synthesis walks points ascending by X value.
	f.sortedIndex = make([]int, len(f.xs))
	for i := range f.sortedIndex {
		f.sortedIndex[i] = i
	}
	sort.SliceStable(f.sortedIndex, func(a, b int) bool {
		return f.xs[f.sortedIndex[a]] < f.xs[f.sortedIndex[b]]
	})
	return f, nil
}

// Multiplier returns the configured multiplier in [1, 4].
func (f *Floor1) Multiplier() uint8 { return f.multiplier }

// XList returns the X coordinate vector, in transmission order.
func (f *Floor1) XList() []uint32 { return f.xs }

// Decode reads the packet Y values and synthesizes the floor curve.
//
// A cleared first bit means the channel is silent this packet: used is
// false and out is untouched.
func (f *Floor1) Decode(r *bits.Reader, books []*codebook.Codebook, out []float32, trace Trace) (bool, error) {
	if !r.ReadBool() {
		return false, nil
	}

	yRange := rangeByMultiplier[f.multiplier-1]
	yBits := uint(ilog(yRange - 1))

	// Packet decode: two literal Y values, then per-partition values
	// selected through the class master/subordinate books.
	ys := make([]int, 2, len(f.xs))
	ys[0] = int(r.ReadBits(yBits))
	ys[1] = int(r.ReadBits(yBits))
	for _, classIdx := range f.partitionClasses {
		cl := &f.classes[classIdx]
		classBits := uint(cl.subclass)
		csub := 1<<classBits - 1
		cval := 0
		if classBits > 0 {
			v, err := books[cl.masterbook].DecodeScalar(r)
			if err != nil {
				return false, err
			}
			cval = int(v)
		}
		for j := 0; j < int(cl.dimensions); j++ {
			if cval&csub >= len(cl.subclassBooks) {
				return false, fmt.Errorf("%w: subclass selector out of range", ErrBadCurve)
			}
			book := cl.subclassBooks[cval&csub]
			cval >>= classBits
			if book < 0 {
				ys = append(ys, 0)
				continue
			}
			v, err := books[book].DecodeScalar(r)
			if err != nil {
				return false, err
			}
			ys = append(ys, int(v))
		}
	}
	if trace != nil {
		trace("floor1 ys", intsToU32(ys))
	}
	if len(ys) != len(f.xs) {
		return false, fmt.Errorf("%w: %d Y values for %d X values", ErrBadCurve, len(ys), len(f.xs))
	}

	// Step 1: amplitude value synthesis. Each point is predicted from
	// its already-final neighbors and corrected by the transmitted
	// value, which encodes a signed offset (or an absolute value when
	// the offset would not fit below the nearer range edge).
	finalYs := make([]int, len(f.xs))
	step2Flag := make([]bool, len(f.xs))
	finalYs[0], finalYs[1] = ys[0], ys[1]
	step2Flag[0], step2Flag[1] = true, true
	for i := 2; i < len(f.xs); i++ {
		lowIdx := lowNeighbor(f.xs, i)
		highIdx := highNeighbor(f.xs, i)
		if lowIdx < 0 || highIdx < 0 {
			return false, fmt.Errorf("%w: point %d has no neighbor", ErrBadCurve, i)
		}
		predicted := renderPoint(int(f.xs[lowIdx]), finalYs[lowIdx], int(f.xs[highIdx]), finalYs[highIdx], int(f.xs[i]))
		if predicted < 0 || predicted > yRange {
			return false, fmt.Errorf("%w: predicted value %d outside range", ErrBadCurve, predicted)
		}
		val := ys[i]
		highRoom := yRange - predicted
		lowRoom := predicted
		room := 2 * min(highRoom, lowRoom)
		switch {
		case val == 0:
			step2Flag[i] = false
			finalYs[i] = predicted
		case val >= room:
			step2Flag[lowIdx] = true
			step2Flag[highIdx] = true
			step2Flag[i] = true
			if highRoom > lowRoom {
				finalYs[i] = val - lowRoom + predicted
			} else {
				finalYs[i] = predicted - val + highRoom - 1
			}
		default:
			step2Flag[lowIdx] = true
			step2Flag[highIdx] = true
			step2Flag[i] = true
			if val%2 == 1 {
				finalYs[i] = predicted - (val+1)/2
			} else {
				finalYs[i] = predicted + val/2
			}
		}
	}
	if trace != nil {
		trace("floor1 final_ys", intsToU32(finalYs))
		trace("floor1 step2_flag", append([]bool(nil), step2Flag...))
	}

	// Step 2: curve synthesis. Walk the points ascending by X and draw
	// lines between consecutive flagged ones; extend flat to the end.
	n := len(out)
	curve := make([]int, n)
	lx := 0
	ly := finalYs[f.sortedIndex[0]] * int(f.multiplier)
	hx, hy := 0, 0
	for _, idx := range f.sortedIndex[1:] {
		if !step2Flag[idx] {
			continue
		}
		hx = int(f.xs[idx])
		hy = finalYs[idx] * int(f.multiplier)
		renderLine(lx, ly, hx, hy, curve)
		lx, ly = hx, hy
	}
	if hx < n {
		renderLine(hx, hy, n, hy, curve)
	}
	if trace != nil {
		trace("floor1 floor", intsToU32(curve))
	}

	for i := 0; i < n; i++ {
		if curve[i] < 0 || curve[i] >= len(inverseDBTable) {
			return false, fmt.Errorf("%w: curve value %d at %d", ErrBadCurve, curve[i], i)
		}
		out[i] = inverseDBTable[curve[i]]
	}
	return true, nil
}

func intsToU32(v []int) []uint32 {
	out := make([]uint32, len(v))
	for i, x := range v {
		out[i] = uint32(x)
	}
	return out
}

// lowNeighbor returns the index n < i maximizing xs[n] subject to
// xs[n] < xs[i], or -1 if no such index exists.
func lowNeighbor(xs []uint32, i int) int {
	best := -1
	for n := 0; n < i; n++ {
		if xs[n] < xs[i] && (best < 0 || xs[n] >= xs[best]) {
			best = n
		}
	}
	return best
}

// highNeighbor returns the index n < i minimizing xs[n] subject to
// xs[n] > xs[i], or -1 if no such index exists.
func highNeighbor(xs []uint32, i int) int {
	best := -1
	for n := 0; n < i; n++ {
		if xs[n] > xs[i] && (best < 0 || xs[n] <= xs[best]) {
			best = n
		}
	}
	return best
}

// renderPoint interpolates the line through (x0,y0) and (x1,y1) at X,
// with the truncating integer division of the reference.
func renderPoint(x0, y0, x1, y1, x int) int {
	dy := y1 - y0
	adx := x1 - x0
	ady := dy
	if ady < 0 {
		ady = -ady
	}
	err := ady * (x - x0)
	off := err / adx
	if dy < 0 {
		return y0 - off
	}
	return y0 + off
}

// renderLine draws the integer line from (x0,y0) to (x1,y1) into
// v[x0:x1], Bresenham-style: the slope is split into an integer base
// step plus an error-driven carry.
func renderLine(x0, y0, x1, y1 int, v []int) {
	dy := y1 - y0
	adx := x1 - x0
	if adx <= 0 {
		return
	}
	ady := dy
	if ady < 0 {
		ady = -ady
	}
	base := dy / adx
	sy := base + 1
	if dy < 0 {
		sy = base - 1
	}
	abase := base
	if abase < 0 {
		abase = -abase
	}
	ady -= abase * adx

	if x0 >= len(v) {
		return
	}
	v[x0] = y0
	errAcc := 0
	y := y0
	end := x1
	if end > len(v) {
		end = len(v)
	}
	for x := x0 + 1; x < end; x++ {
		errAcc += ady
		if errAcc >= adx {
			errAcc -= adx
			y += sy
		} else {
			y += base
		}
		v[x] = y
	}
}

// InverseDBTable exposes the floor decibel lookup for tests.
func InverseDBTable() []float32 {
	return inverseDBTable[:]
}

// inverseDBTable maps a synthesized floor value in [0, 255] to a
// linear amplitude: entry i is 10^(-7*(255-i)/256), spanning -140 dB
// to 0 dB. This generates the literal table printed in the Vorbis I
// spec, section 10.1.
var inverseDBTable [256]float32

func init() {
	for i := range inverseDBTable {
		inverseDBTable[i] = float32(math.Pow(10, -7*float64(255-i)/256))
	}
}

func ilog(x int) int {
	n := 0
	for x > 0 {
		n++
		x >>= 1
	}
	return n
}
