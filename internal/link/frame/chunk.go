package frame

import "iter"

// Chunks splits buf into payload slices that each fit within unitSize
// after the codec's per-chunk header is prepended. The sequence is lazy,
// finite, and single-pass; slices alias buf, so the caller must not
// mutate buf while iterating. Every byte of buf appears in exactly one
// slice, in order; only the final slice may be short.
//
// unitSize must exceed overhead. The link session guarantees this: the
// negotiated unit size is never below 20 bytes and no profile's header
// exceeds 10.
func Chunks(buf []byte, unitSize, overhead int) iter.Seq[[]byte] {
	payloadSize := unitSize - overhead
	return func(yield func([]byte) bool) {
		if payloadSize <= 0 {
			return
		}
		for off := 0; off < len(buf); off += payloadSize {
			end := off + payloadSize
			if end > len(buf) {
				end = len(buf)
			}
			if !yield(buf[off:end]) {
				return
			}
		}
	}
}

// ChunkCount returns the number of slices Chunks will yield for a buffer
// of n bytes: ceil(n / (unitSize - overhead)).
func ChunkCount(n, unitSize, overhead int) int {
	payloadSize := unitSize - overhead
	if payloadSize <= 0 || n <= 0 {
		return 0
	}
	return (n + payloadSize - 1) / payloadSize
}
