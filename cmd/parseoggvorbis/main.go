// Command parseoggvorbis decodes an Ogg/Vorbis file, optionally
// emitting debug checkpoints for comparison against a reference
// decoder and/or writing the decoded PCM to a WAV file.
//
// Usage:
//
//	parseoggvorbis --in file.ogg [--debug_out file] [--debug_stdout] [--wav out.wav]
//
// Exit code 0 on success, 1 otherwise.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	vorbis "github.com/albertz/ParseOggVorbis"
)

func main() {
	os.Exit(run())
}

func run() int {
	in := flag.String("in", "", "input ogg filename (required)")
	debugOut := flag.String("debug_out", "", "write binary debug checkpoints to this file")
	debugStdout := flag.Bool("debug_stdout", false, "print debug checkpoints to stdout")
	wavOut := flag.String("wav", "", "write decoded PCM to this WAV file (16-bit)")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "need to provide --in ogg_filename")
		flag.Usage()
		return 1
	}

	f, err := os.Open(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer f.Close()

	var header vorbis.IdHeader
	var pcm [][]float32 // per channel, only collected for --wav
	cb := vorbis.Callbacks{
		Header: func(h *vorbis.IdHeader) bool {
			header = *h
			if *wavOut != "" {
				pcm = make([][]float32, h.Channels)
			}
			return true
		},
		PCM: func(channels [][]float32) bool {
			for ch := range pcm {
				pcm[ch] = append(pcm[ch], channels[ch]...)
			}
			return true
		},
	}

	dec := vorbis.NewDecoder(f, cb)
	var fileTap *vorbis.FileTap
	switch {
	case *debugOut != "":
		fileTap, err = vorbis.NewFileTap(*debugOut)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		dec.SetTap(fileTap)
	case *debugStdout:
		dec.SetTap(&vorbis.StdoutTap{})
	}

	if err := dec.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if fileTap != nil {
		if err := fileTap.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}

	if *wavOut != "" {
		if err := writeWAV(*wavOut, &header, pcm); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}
	fmt.Println("ok")
	return 0
}

// writeWAV interleaves the per-channel PCM and writes a 16-bit WAV.
func writeWAV(path string, h *vorbis.IdHeader, pcm [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	channels := len(pcm)
	frames := 0
	if channels > 0 {
		frames = len(pcm[0])
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  int(h.SampleRate),
		},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Data[i*channels+ch] = int(clampToInt16(pcm[ch][i]))
		}
	}

	enc := wav.NewEncoder(f, int(h.SampleRate), 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func clampToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(x * 32767.0)
}
