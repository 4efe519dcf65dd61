package huffman

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/albertz/ParseOggVorbis/internal/bits"
)

// TestAssign_SpecExample is the worked example from the Vorbis I spec,
// section 3.2.1: lengths {2,4,4,4,4,2,3,3} produce the canonical
// codewords 00, 0100, 0101, 0110, 0111, 10, 110, 111.
func TestAssign_SpecExample(t *testing.T) {
	lengths := []uint8{2, 4, 4, 4, 4, 2, 3, 3}
	want := []uint32{0b00, 0b0100, 0b0101, 0b0110, 0b0111, 0b10, 0b110, 0b111}
	got, err := Assign(lengths)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: codeword %b, want %b", i, got[i], want[i])
		}
	}
}

func TestAssign_Underspecified(t *testing.T) {
	// {1, 2} leaves the codeword 11 unreachable.
	if _, err := Assign([]uint8{1, 2}); !errors.Is(err, ErrUnderspecified) {
		t.Errorf("err = %v, want ErrUnderspecified", err)
	}
}

func TestAssign_Overspecified(t *testing.T) {
	// Three length-1 entries cannot fit a binary tree.
	if _, err := Assign([]uint8{1, 1, 1}); !errors.Is(err, ErrOverspecified) {
		t.Errorf("err = %v, want ErrOverspecified", err)
	}
}

func TestAssign_SingleEntry(t *testing.T) {
	// A one-entry codebook of length 1 leaves codeword 1 unused: its
	// Kraft sum is 1/2, so the marker construction rejects it.
	got, err := Assign([]uint8{1})
	if !errors.Is(err, ErrUnderspecified) {
		t.Fatalf("err = %v, want ErrUnderspecified", err)
	}
	if got != nil {
		t.Errorf("codewords = %v, want nil", got)
	}
}

func TestAssign_SparseEntriesSkipped(t *testing.T) {
	lengths := []uint8{1, 0, 1, 0}
	got, err := Assign(lengths)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got[0] != 0 || got[2] != 1 {
		t.Errorf("codewords = %v, want [0 _ 1 _]", got)
	}
}

func TestAssign_BadLength(t *testing.T) {
	if _, err := Assign([]uint8{33}); !errors.Is(err, ErrBadLength) {
		t.Errorf("err = %v, want ErrBadLength", err)
	}
}

// kraftLengths generates a random complete prefix code by repeatedly
// splitting leaves of a binary tree.
func kraftLengths(rng *rand.Rand, n int) []uint8 {
	lengths := []uint8{0}
	for len(lengths) < n {
		i := rng.Intn(len(lengths))
		if lengths[i] >= 30 {
			continue
		}
		l := lengths[i] + 1
		lengths[i] = l
		lengths = append(lengths, l)
	}
	return lengths
}

// TestAssign_CompleteCodesAccepted feeds random complete codes (Kraft
// sum exactly one) and checks acceptance plus prefix-freedom.
func TestAssign_CompleteCodesAccepted(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		lengths := kraftLengths(rng, 2+rng.Intn(40))
		if lengths[0] == 0 {
			// Degenerate single-leaf tree: length zero is "unused" in
			// codebook terms, skip.
			continue
		}
		codewords, err := Assign(lengths)
		if err != nil {
			t.Fatalf("trial %d: Assign(%v): %v", trial, lengths, err)
		}
		// No codeword may be a prefix of another.
		for i := range lengths {
			for j := range lengths {
				if i == j {
					continue
				}
				li, lj := uint(lengths[i]), uint(lengths[j])
				if li <= lj && codewords[j]>>(lj-li) == codewords[i] {
					t.Fatalf("trial %d: entry %d is a prefix of entry %d", trial, i, j)
				}
			}
		}
	}
}

func TestTree_DecodeRoundTrip(t *testing.T) {
	lengths := []uint8{2, 4, 4, 4, 4, 2, 3, 3}
	codewords, err := Assign(lengths)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	tree, err := NewTree(lengths, codewords)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	// Encode a sequence of entries as their codewords, MSb of each
	// codeword first, and decode it back.
	entries := []int{0, 5, 7, 1, 6, 4, 0, 2, 3}
	w := bits.NewWriter()
	for _, e := range entries {
		for bit := int(lengths[e]) - 1; bit >= 0; bit-- {
			w.WriteBits(uint64(codewords[e]>>uint(bit))&1, 1)
		}
	}
	r := bits.NewReader(w.Bytes())
	for i, want := range entries {
		got, err := tree.Decode(r)
		if err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if int(got) != want {
			t.Errorf("Decode %d = %d, want %d", i, got, want)
		}
	}
}

func TestTree_SparseValues(t *testing.T) {
	// Entry numbering must be preserved across unused entries.
	lengths := []uint8{0, 1, 0, 1}
	codewords, err := Assign(lengths)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	tree, err := NewTree(lengths, codewords)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	w := bits.NewWriter()
	w.WriteBits(0, 1) // codeword 0 -> entry 1
	w.WriteBits(1, 1) // codeword 1 -> entry 3
	r := bits.NewReader(w.Bytes())
	if got, _ := tree.Decode(r); got != 1 {
		t.Errorf("first Decode = %d, want 1", got)
	}
	if got, _ := tree.Decode(r); got != 3 {
		t.Errorf("second Decode = %d, want 3", got)
	}
}
