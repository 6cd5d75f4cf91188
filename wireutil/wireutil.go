// Package wireutil holds small, dependency-free helpers for the webcam
// client wire formats: the binary frame header and the percent-encoding
// used to embed tokens in URL paths. It plays the same role for this module
// that http2utils plays for dgrr-http2 — leaf helpers with no knowledge of
// the parent package's state.
package wireutil

const (
	// FrameMagic is the two-byte little-endian sequence that opens every
	// media frame on the streaming connections.
	FrameMagic uint16 = 0xAAAA

	// FrameHeaderSize is the length in bytes of the frame header: a u16
	// magic followed by a u32 body size, both little-endian.
	FrameHeaderSize = 6
)

// PutUint16LE writes n into b[0:2] little-endian. Panics if len(b) < 2.
func PutUint16LE(b []byte, n uint16) {
	_ = b[1] // bound check hint
	b[0] = byte(n)
	b[1] = byte(n >> 8)
}

// Uint16LE reads a little-endian u16 from b[0:2]. Panics if len(b) < 2.
func Uint16LE(b []byte) uint16 {
	_ = b[1]
	return uint16(b[0]) | uint16(b[1])<<8
}

// PutUint32LE writes n into b[0:4] little-endian. Panics if len(b) < 4.
func PutUint32LE(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n)
	b[1] = byte(n >> 8)
	b[2] = byte(n >> 16)
	b[3] = byte(n >> 24)
}

// Uint32LE reads a little-endian u32 from b[0:4]. Panics if len(b) < 4.
func Uint32LE(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// PutFrameHeader writes the 6-byte magic+body-size header into b, which
// must have at least FrameHeaderSize bytes available.
func PutFrameHeader(b []byte, bodySize uint32) {
	PutUint16LE(b[0:2], FrameMagic)
	PutUint32LE(b[2:6], bodySize)
}

const upperXDigits = "0123456789ABCDEF"

// isUnreservedByte reports whether b is in [0-9A-Za-z] and can be copied
// into a URL path verbatim.
func isUnreservedByte(b byte) bool {
	return (b >= '0' && b <= '9') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z')
}

// PercentEncode appends the percent-encoded form of s to dst and returns
// the result. Alphanumeric bytes are copied verbatim; every other byte is
// replaced with "%" followed by two uppercase hex digits. This matches
// the encoder used to embed sid/device tokens into URL paths — it is not
// a general URL-encoder (it doesn't reserve "/" or "?", for instance,
// since those are exactly the bytes the server expects escaped here).
func PercentEncode(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedByte(c) {
			dst = append(dst, c)
			continue
		}
		dst = append(dst, '%', upperXDigits[(c>>4)&0x0f], upperXDigits[c&0x0f])
	}
	return dst
}

// PercentEncodeString is a convenience wrapper around PercentEncode that
// returns a freshly allocated string.
func PercentEncodeString(s string) string {
	return string(PercentEncode(make([]byte, 0, len(s)), s))
}
