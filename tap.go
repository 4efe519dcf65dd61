package vorbis

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Tap observes named intermediate vectors during decoding, for
// bit-exact comparison against a reference decoder. A tap is installed
// per decoder with Decoder.SetTap; the null case is simply a nil Tap.
//
// Start is called once per stream, as soon as the setup header
// completes. Push delivers one checkpoint: a name, an optional channel
// (-1 when not applicable) and a data vector of type []float32,
// []int32, []uint32, []uint8, []int64, []uint64 or []bool; data may be
// nil for pure event markers.
type Tap interface {
	Start(decoderName string, sampleRate uint32, channels uint8)
	Push(name string, channel int, data any)
}

// StdoutTap prints one line per checkpoint, truncating long vectors.
type StdoutTap struct {
	// W is the destination; os.Stdout if nil.
	W io.Writer
}

// Start implements Tap.
func (t *StdoutTap) Start(decoderName string, sampleRate uint32, channels uint8) {
	fmt.Fprintf(t.writer(), "decoder '%s' sample_rate=%d num_channels=%d\n",
		decoderName, sampleRate, channels)
}

// Push implements Tap.
func (t *StdoutTap) Push(name string, channel int, data any) {
	w := t.writer()
	fmt.Fprintf(w, "name='%s' channel=%d", name, channel)
	if data == nil {
		fmt.Fprint(w, " data=NULL\n")
		return
	}
	typeName, n := tapTypeOf(data)
	fmt.Fprintf(w, " data=%s{", typeName)
	const maxShown = 10
	each(data, func(i int, v any) bool {
		if i == maxShown {
			fmt.Fprint(w, " ...")
			return false
		}
		if i > 0 {
			fmt.Fprint(w, " ")
		}
		fmt.Fprintf(w, "%v", v)
		return true
	})
	fmt.Fprintf(w, "} len=%d\n", n)
}

func (t *StdoutTap) writer() io.Writer {
	if t.W != nil {
		return t.W
	}
	return os.Stdout
}

// Binary tap element type ids.
const (
	tapTypeFloat32 = 1
	tapTypeInt32   = 2
	tapTypeUint32  = 3
	tapTypeUint8   = 4
	tapTypeInt64   = 5
	tapTypeUint64  = 6
	tapTypeBool    = 7 // stored as one byte per element
)

// fileTapHeader opens every binary tap file, written length-prefixed
// like every record key.
const fileTapHeader = "ParseOggVorbis-header-v1"

// FileTap writes checkpoints to a binary file.
//
// The format is the header literal followed by records of the form
// [u32 key-len][key][u8 type-id][u8 elem-size][u32 payload-len][payload],
// all integers little-endian. The first records are decoder-name,
// decoder-sample-rate (u32) and decoder-num-channels (u8); each
// checkpoint then contributes entry-name, an optional entry-channel
// (u8) and entry-data.
type FileTap struct {
	f   *os.File
	w   *bufio.Writer
	err error
}

// NewFileTap creates the output file, truncating any existing one, and
// writes the format header.
func NewFileTap(path string) (*FileTap, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t := &FileTap{f: f, w: bufio.NewWriter(f)}
	t.writeRaw([]byte(fileTapHeader))
	return t, nil
}

// Close flushes and closes the file, returning the first error that
// occurred while writing.
func (t *FileTap) Close() error {
	flushErr := t.w.Flush()
	closeErr := t.f.Close()
	if t.err != nil {
		return t.err
	}
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Err returns the first write error, if any.
func (t *FileTap) Err() error { return t.err }

// Start implements Tap.
func (t *FileTap) Start(decoderName string, sampleRate uint32, channels uint8) {
	t.writeRecord("decoder-name", []uint8(decoderName))
	t.writeRecord("decoder-sample-rate", []uint32{sampleRate})
	t.writeRecord("decoder-num-channels", []uint8{channels})
}

// Push implements Tap.
func (t *FileTap) Push(name string, channel int, data any) {
	t.writeRecord("entry-name", []uint8(name))
	if channel >= 0 {
		t.writeRecord("entry-channel", []uint8{uint8(channel)})
	}
	t.writeRecord("entry-data", data)
}

func (t *FileTap) writeRaw(p []byte) {
	if t.err != nil {
		return
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
	if _, err := t.w.Write(lenBuf[:]); err != nil {
		t.err = err
		return
	}
	if _, err := t.w.Write(p); err != nil {
		t.err = err
	}
}

func (t *FileTap) writeRecord(key string, data any) {
	if t.err != nil {
		return
	}
	t.writeRaw([]byte(key))
	typeID, elemSize := tapTypeID(data)
	t.w.WriteByte(typeID)
	t.w.WriteByte(elemSize)
	t.writeRaw(tapPayload(data))
}

// tapTypeID returns the binary type id and element size for data.
// nil data is written as an empty u8 vector.
func tapTypeID(data any) (uint8, uint8) {
	switch data.(type) {
	case []float32:
		return tapTypeFloat32, 4
	case []int32:
		return tapTypeInt32, 4
	case []uint32:
		return tapTypeUint32, 4
	case []uint8, nil:
		return tapTypeUint8, 1
	case []int64:
		return tapTypeInt64, 8
	case []uint64:
		return tapTypeUint64, 8
	case []bool:
		return tapTypeBool, 1
	default:
		panic(fmt.Sprintf("tap: unsupported data type %T", data))
	}
}

// tapPayload serializes data little-endian.
func tapPayload(data any) []byte {
	switch v := data.(type) {
	case nil:
		return nil
	case []uint8:
		return v
	case []bool:
		out := make([]byte, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out
	case []float32:
		out := make([]byte, 4*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(x))
		}
		return out
	case []int32:
		out := make([]byte, 4*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint32(out[4*i:], uint32(x))
		}
		return out
	case []uint32:
		out := make([]byte, 4*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint32(out[4*i:], x)
		}
		return out
	case []int64:
		out := make([]byte, 8*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint64(out[8*i:], uint64(x))
		}
		return out
	case []uint64:
		out := make([]byte, 8*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint64(out[8*i:], x)
		}
		return out
	default:
		panic(fmt.Sprintf("tap: unsupported data type %T", data))
	}
}

// tapTypeOf names the element type for the stdout format.
func tapTypeOf(data any) (string, int) {
	switch v := data.(type) {
	case []float32:
		return "f32", len(v)
	case []int32:
		return "i32", len(v)
	case []uint32:
		return "u32", len(v)
	case []uint8:
		return "u8", len(v)
	case []int64:
		return "i64", len(v)
	case []uint64:
		return "u64", len(v)
	case []bool:
		return "bool", len(v)
	default:
		panic(fmt.Sprintf("tap: unsupported data type %T", data))
	}
}

// each iterates the elements of a tap vector until fn returns false.
func each(data any, fn func(i int, v any) bool) {
	switch v := data.(type) {
	case []float32:
		for i, x := range v {
			if !fn(i, x) {
				return
			}
		}
	case []int32:
		for i, x := range v {
			if !fn(i, x) {
				return
			}
		}
	case []uint32:
		for i, x := range v {
			if !fn(i, x) {
				return
			}
		}
	case []uint8:
		for i, x := range v {
			if !fn(i, x) {
				return
			}
		}
	case []int64:
		for i, x := range v {
			if !fn(i, x) {
				return
			}
		}
	case []uint64:
		for i, x := range v {
			if !fn(i, x) {
				return
			}
		}
	case []bool:
		for i, x := range v {
			if !fn(i, x) {
				return
			}
		}
	}
}
