package vorbis

import "errors"

// Error kinds. Failures detected in this package wrap (or are) one of
// these sentinels, so hosts can classify them with errors.Is. Errors
// from the internal layers (ogg framing, huffman construction,
// codebook, floor, residue) keep their own package sentinels, at most
// wrapped with context, and do not wrap these. Together they fall into
// five categories; the codebook category has no sentinel here:
//
//   - format: magic/version/CRC/framing violations
//     (ogg.ErrBadMagic, ogg.ErrBadVersion, ogg.ErrBadCRC, codebook.ErrSync, ...)
//   - bounds: unexpected end of source, out-of-range index,
//     dimension mismatch (ogg.ErrTruncated, codebook.ErrBadIndex, ...)
//   - codebook: over-/underspecified trees, invalid lookup
//     (huffman.ErrOverspecified, huffman.ErrUnderspecified, ...)
//   - unsupported: valid but unimplemented stream features
//     (ogg.ErrPacketSpansPages, floor.ErrFloor0NotImplemented, ...)
//   - callback abort: the host asked to stop
var (
	// ErrFormat reports a malformed header or packet.
	ErrFormat = errors.New("vorbis: format error")
	// ErrBounds reports an unexpected end of data or an out-of-range
	// index or size.
	ErrBounds = errors.New("vorbis: bounds error")
	// ErrUnsupported reports a stream feature this decoder does not
	// implement (non-zero window or transform type, unknown mapping).
	ErrUnsupported = errors.New("vorbis: unsupported feature")
	// ErrStopped reports that a host callback returned false. The
	// decoder stopped cleanly at the following packet boundary; it is
	// not a stream defect.
	ErrStopped = errors.New("vorbis: stopped by callback")
)
