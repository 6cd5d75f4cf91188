package wcamclient

// RequestBodySource feeds a POST request body to the transport's data
// provider callback in arbitrary-size chunks (spec §4.5/§6, grounded on
// send_post_data in the original; the outbound PUT stream is fed by
// SessionClient.outgoingProvider instead). It holds either bytes the
// session owns outright (a JSON-encoded request) or bytes borrowed from
// another buffer that outlives the request (an outgoing media frame
// assembled in a FrameBuffer) — Go's GC makes the owned/borrowed
// distinction moot for freeing, but the cursor and EOF semantics the
// transport callback depends on are identical either way, so one type
// serves both.
type RequestBodySource struct {
	data []byte
	pos  int
}

// NewRequestBodySource wraps data (owned or borrowed — the caller decides
// whether to keep writing to the backing array afterwards) as a body
// source starting at position 0.
func NewRequestBodySource(data []byte) *RequestBodySource {
	return &RequestBodySource{data: data}
}

// Reset replaces the source's data with data and rewinds the cursor to
// position 0, for reuse across requests issued back-to-back (spec's h2pc_prepare_to_send
// always resets bytes_tosend_pos to 0).
func (s *RequestBodySource) Reset(data []byte) {
	s.data = data
	s.pos = 0
}

// Len returns the total size of the body.
func (s *RequestBodySource) Len() int { return len(s.data) }

// Remaining returns the number of bytes not yet read.
func (s *RequestBodySource) Remaining() int { return len(s.data) - s.pos }

// Next copies up to len(dst) bytes starting at the cursor into dst,
// advances the cursor, and reports whether the source is now fully
// consumed (the transport's EOF flag). Mirrors send_post_data's
// "clamp length to what's left, memcpy, advance pos" sequence.
func (s *RequestBodySource) Next(dst []byte) (n int, eof bool) {
	n = s.Remaining()
	if n > len(dst) {
		n = len(dst)
	}
	if n > 0 {
		copy(dst[:n], s.data[s.pos:s.pos+n])
		s.pos += n
	}
	return n, s.pos == len(s.data)
}

// ResponseSink accumulates a synchronous control-plane response body as it
// arrives in chunks from the transport (spec §4.5, grounded on
// handle_get_response). Storage grows in 1 KiB multiples up to max, after
// which further writes are rejected rather than silently truncated —
// callers observe this via Write's ok return and should treat the
// response as failed, the same outcome handle_get_response's "response
// buffer overflow" log line leads to (the request is left to time out or
// complete with a body consume_response_content then fails to parse,
// since bytes past max were simply dropped).
type ResponseSink struct {
	buf      []byte
	max      int
	overflow bool
}

// NewResponseSink creates a sink with the given initial capacity
// (pre-allocated) and hard maximum size.
func NewResponseSink(initial, max int) *ResponseSink {
	if initial > max {
		initial = max
	}
	return &ResponseSink{buf: make([]byte, 0, initial), max: max}
}

// Reset empties the sink for reuse across requests, keeping its backing
// array and limits.
func (s *ResponseSink) Reset() {
	s.buf = s.buf[:0]
	s.overflow = false
}

// Write appends data, growing the backing array in 1 KiB multiples
// (capped at max) as needed. It returns false without copying anything if
// doing so would exceed max, and latches that condition in Overflow.
func (s *ResponseSink) Write(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	need := len(s.buf) + len(data)
	if need > s.max {
		s.overflow = true
		return false
	}
	if need > cap(s.buf) {
		newCap := ((need / 1024) + 1) * 1024
		if newCap > s.max {
			newCap = s.max
		}
		grown := make([]byte, len(s.buf), newCap)
		copy(grown, s.buf)
		s.buf = grown
	}
	s.buf = s.buf[:need]
	copy(s.buf[need-len(data):need], data)
	return true
}

// Overflow reports whether a Write has been rejected since the last
// Reset.
func (s *ResponseSink) Overflow() bool { return s.overflow }

// Len returns the number of bytes currently held.
func (s *ResponseSink) Len() int { return len(s.buf) }

// Bytes returns the accumulated body. The returned slice is only valid
// until the next Write or Reset.
func (s *ResponseSink) Bytes() []byte { return s.buf }
