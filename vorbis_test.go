package vorbis

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildIDPacket assembles an identification header packet.
func buildIDPacket(channels uint8, rate uint32, blocksizes byte) []byte {
	p := []byte{packetTypeID}
	p = append(p, "vorbis"...)
	p = binary.LittleEndian.AppendUint32(p, 0) // version
	p = append(p, channels)
	p = binary.LittleEndian.AppendUint32(p, rate)
	p = binary.LittleEndian.AppendUint32(p, 0) // bitrate maximum
	p = binary.LittleEndian.AppendUint32(p, 0) // bitrate nominal
	p = binary.LittleEndian.AppendUint32(p, 0) // bitrate minimum
	p = append(p, blocksizes, 1)
	return p
}

// buildCommentPacket assembles a comment header packet.
func buildCommentPacket(vendor string, tags ...string) []byte {
	p := []byte{packetTypeComment}
	p = append(p, "vorbis"...)
	p = binary.LittleEndian.AppendUint32(p, uint32(len(vendor)))
	p = append(p, vendor...)
	p = binary.LittleEndian.AppendUint32(p, uint32(len(tags)))
	for _, tag := range tags {
		p = binary.LittleEndian.AppendUint32(p, uint32(len(tag)))
		p = append(p, tag...)
	}
	return append(p, 1)
}

func TestParseIDHeader(t *testing.T) {
	h, err := parseIDHeader(buildIDPacket(2, 44100, 0x86))
	if err != nil {
		t.Fatalf("parseIDHeader: %v", err)
	}
	if h.Channels != 2 || h.SampleRate != 44100 {
		t.Errorf("channels/rate = %d/%d", h.Channels, h.SampleRate)
	}
	if h.Blocksize0 != 64 || h.Blocksize1 != 256 {
		t.Errorf("blocksizes = %d/%d, want 64/256", h.Blocksize0, h.Blocksize1)
	}
}

func TestParseIDHeader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p []byte) []byte
		want   error
	}{
		{"wrong type byte", func(p []byte) []byte { p[0] = 2; return p }, ErrFormat},
		{"bad magic", func(p []byte) []byte { p[3] = 'x'; return p }, ErrFormat},
		{"short packet", func(p []byte) []byte { return p[:10] }, ErrFormat},
		{"zero channels", func(p []byte) []byte { p[11] = 0; return p }, ErrFormat},
		{"framing bit clear", func(p []byte) []byte { p[len(p)-1] = 0; return p }, ErrFormat},
		{"blocksize0 > blocksize1", func(p []byte) []byte { p[len(p)-2] = 0x68; return p }, ErrFormat},
		{"blocksize too small", func(p []byte) []byte { p[len(p)-2] = 0x55; return p }, ErrFormat},
		{"nonzero version", func(p []byte) []byte { p[7] = 9; return p }, ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.mutate(buildIDPacket(1, 48000, 0x66))
			if _, err := parseIDHeader(p); !errors.Is(err, ErrFormat) && !errors.Is(err, ErrBounds) {
				t.Errorf("err = %v, want a format/bounds error", err)
			}
		})
	}
}

func TestParseCommentHeader(t *testing.T) {
	c, err := parseCommentHeader(buildCommentPacket("test vendor", "ARTIST=someone", "TITLE=thing"))
	if err != nil {
		t.Fatalf("parseCommentHeader: %v", err)
	}
	if c.Vendor != "test vendor" {
		t.Errorf("Vendor = %q", c.Vendor)
	}
	if len(c.Tags) != 2 || c.Tags[0] != "ARTIST=someone" || c.Tags[1] != "TITLE=thing" {
		t.Errorf("Tags = %q", c.Tags)
	}
}

func TestParseCommentHeader_Truncated(t *testing.T) {
	p := buildCommentPacket("vendor", "A=1")
	for _, cut := range []int{8, 12, 14, len(p) - 1} {
		if _, err := parseCommentHeader(p[:cut]); err == nil {
			t.Errorf("cut at %d: no error", cut)
		}
	}
}

func TestIlog(t *testing.T) {
	tests := []struct{ x, want int }{
		{0, 0}, {1, 1}, {2, 2}, {3, 2}, {4, 3}, {7, 3}, {8, 4}, {255, 8}, {256, 9},
	}
	for _, tt := range tests {
		if got := ilog(tt.x); got != tt.want {
			t.Errorf("ilog(%d) = %d, want %d", tt.x, got, tt.want)
		}
	}
}
