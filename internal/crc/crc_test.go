package crc

import (
	"math/rand"
	"testing"
)

// bitwise is the definitional CRC: shift the message through the
// register one bit at a time, no reflection, init 0, no final xor.
func bitwise(p []byte) uint32 {
	var crc uint32
	for _, b := range p {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ Poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestChecksum_MatchesBitwise(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 100; trial++ {
		data := make([]byte, rng.Intn(300))
		rng.Read(data)
		if got, want := Checksum(data), bitwise(data); got != want {
			t.Fatalf("trial %d: Checksum = %#08x, bitwise = %#08x", trial, got, want)
		}
	}
}

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"zero byte", []byte{0}},
		{"OggS", []byte("OggS")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, want := Checksum(tt.data), bitwise(tt.data); got != want {
				t.Errorf("Checksum(%q) = %#08x, want %#08x", tt.data, got, want)
			}
		})
	}
	if Checksum(nil) != 0 {
		t.Error("Checksum(nil) != 0")
	}
}

func TestUpdate_Streaming(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	whole := Checksum(data)
	for split := 0; split <= len(data); split += 7 {
		crc := Update(0, data[:split])
		crc = Update(crc, data[split:])
		if crc != whole {
			t.Errorf("split at %d: %#08x, want %#08x", split, crc, whole)
		}
	}
}
