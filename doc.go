// Package vorbis decodes Ogg-encapsulated Vorbis I audio streams into
// per-channel float32 PCM.
//
// The decoder parses the Ogg page framing (CRC32, segment lacing),
// reassembles logical packets, and for each Vorbis stream decodes the
// three header packets followed by the audio packets: codebook huffman
// and VQ decode, floor curve synthesis, residue decode, inverse channel
// coupling, inverse MDCT and the windowed overlap-add that produces the
// final PCM.
//
// # Basic Usage
//
// Decoding is pull-driven over a byte source and delivers results
// through callbacks:
//
//	err := vorbis.DecodeFile("in.ogg", vorbis.Callbacks{
//	    Header: func(h *vorbis.IdHeader) bool {
//	        fmt.Println(h.SampleRate, h.Channels)
//	        return true
//	    },
//	    PCM: func(channels [][]float32) bool {
//	        // channels[c] is only valid during this call.
//	        return true
//	    },
//	})
//
// Returning false from any callback stops the decoder cleanly at the
// next packet boundary; Run then returns ErrStopped.
//
// # Supported Streams
//
// Floor types 0 (parse only) and 1, residue types 0, 1 and 2, mapping
// type 0, all blocksizes from 64 to 8192. Packets spanning Ogg pages,
// chained streams and seeking are not supported.
//
// # Thread Safety
//
// Decoder instances are NOT safe for concurrent use; give each
// goroutine its own. A parsed Setup is immutable and may be inspected
// concurrently.
//
// # Reference
//
// Implements https://xiph.org/vorbis/doc/Vorbis_I_spec.html and the
// framing at https://xiph.org/vorbis/doc/framing.html.
package vorbis
