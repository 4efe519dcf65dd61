package vorbis

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// readTapRecords parses the binary tap format back into (key, typeID,
// elemSize, payload) tuples.
type tapRecord struct {
	key      string
	typeID   byte
	elemSize byte
	payload  []byte
}

func readTapRecords(t *testing.T, path string) []tapRecord {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	readChunk := func() []byte {
		if len(raw) < 4 {
			t.Fatalf("truncated length prefix")
		}
		n := binary.LittleEndian.Uint32(raw)
		raw = raw[4:]
		if uint32(len(raw)) < n {
			t.Fatalf("truncated chunk of %d bytes", n)
		}
		chunk := raw[:n]
		raw = raw[n:]
		return chunk
	}

	if got := string(readChunk()); got != "ParseOggVorbis-header-v1" {
		t.Fatalf("header literal = %q", got)
	}
	var records []tapRecord
	for len(raw) > 0 {
		rec := tapRecord{key: string(readChunk())}
		if len(raw) < 2 {
			t.Fatalf("truncated type/size bytes")
		}
		rec.typeID, rec.elemSize = raw[0], raw[1]
		raw = raw[2:]
		rec.payload = readChunk()
		records = append(records, rec)
	}
	return records
}

func TestFileTap_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.bin")
	tap, err := NewFileTap(path)
	if err != nil {
		t.Fatalf("NewFileTap: %v", err)
	}
	tap.Start("ParseOggVorbis", 48000, 2)
	tap.Push("floor1 ys", -1, []uint32{1, 2, 3})
	tap.Push("pcm", 1, []float32{0.5})
	tap.Push("finish_setup", -1, nil)
	tap.Push("flags", -1, []bool{true, false})
	if err := tap.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records := readTapRecords(t, path)
	want := []struct {
		key      string
		typeID   byte
		elemSize byte
		payload  []byte
	}{
		{"decoder-name", tapTypeUint8, 1, []byte("ParseOggVorbis")},
		{"decoder-sample-rate", tapTypeUint32, 4, binary.LittleEndian.AppendUint32(nil, 48000)},
		{"decoder-num-channels", tapTypeUint8, 1, []byte{2}},
		{"entry-name", tapTypeUint8, 1, []byte("floor1 ys")},
		{"entry-data", tapTypeUint32, 4, []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}},
		{"entry-name", tapTypeUint8, 1, []byte("pcm")},
		{"entry-channel", tapTypeUint8, 1, []byte{1}},
		{"entry-data", tapTypeFloat32, 4, binary.LittleEndian.AppendUint32(nil, math.Float32bits(0.5))},
		{"entry-name", tapTypeUint8, 1, []byte("finish_setup")},
		{"entry-data", tapTypeUint8, 1, nil},
		{"entry-name", tapTypeUint8, 1, []byte("flags")},
		{"entry-data", tapTypeBool, 1, []byte{1, 0}},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, w := range want {
		r := records[i]
		if r.key != w.key || r.typeID != w.typeID || r.elemSize != w.elemSize || !bytes.Equal(r.payload, w.payload) {
			t.Errorf("record %d = {%q %d %d %v}, want {%q %d %d %v}",
				i, r.key, r.typeID, r.elemSize, r.payload, w.key, w.typeID, w.elemSize, w.payload)
		}
	}
}

func TestStdoutTap_Format(t *testing.T) {
	var buf bytes.Buffer
	tap := &StdoutTap{W: &buf}
	tap.Start("ParseOggVorbis", 44100, 1)
	tap.Push("floor1 ys", -1, []uint32{7, 8, 9})
	tap.Push("long", 0, make([]float32, 30))

	out := buf.String()
	for _, want := range []string{
		"sample_rate=44100",
		"name='floor1 ys' channel=-1 data=u32{7 8 9} len=3",
		"name='long' channel=0 data=f32{",
		"...} len=30",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
