package wcamclient

import (
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/iLya2IK/wcamclient/wireutil"
)

// FrameBuffer is a growable byte buffer with an explicit read/write cursor
// (spec §3/§4.1). It backs both the streaming frame parser's working area
// and the opaque payload held by a pooled frame. The growable byte slice
// is held in an embedded bytebufferpool.ByteBuffer, and whole FrameBuffers
// (storage included) are recycled through a sync.Pool, the same pooling
// discipline the teacher applies to Frame/Headers/Settings; FrameBuffer
// adds the cursor bytebufferpool.ByteBuffer doesn't have a notion of.
type FrameBuffer struct {
	buf bytebufferpool.ByteBuffer
	pos int
}

var frameBufferPool = sync.Pool{
	New: func() interface{} { return new(FrameBuffer) },
}

// AcquireFrameBuffer returns a pooled, empty FrameBuffer.
func AcquireFrameBuffer() *FrameBuffer {
	return frameBufferPool.Get().(*FrameBuffer)
}

// ReleaseFrameBuffer clears fb and returns it to the pool.
func ReleaseFrameBuffer(fb *FrameBuffer) {
	fb.Clear()
	frameBufferPool.Put(fb)
}

// Len returns the logical size of the buffer (spec: `size`).
func (fb *FrameBuffer) Len() int {
	return len(fb.buf.B)
}

// Pos returns the current cursor position.
func (fb *FrameBuffer) Pos() int {
	return fb.pos
}

// SetPos repositions the cursor. Used by the parser to rewind before a
// read pass over data already written.
func (fb *FrameBuffer) SetPos(pos int) {
	fb.pos = pos
}

// Bytes returns the full logical content of the buffer (ignoring cursor).
func (fb *FrameBuffer) Bytes() []byte {
	return fb.buf.B
}

// Write copies src at the cursor, growing the backing storage in 1 KiB
// multiples if needed (spec §4.1), advances the cursor, and extends the
// logical size to cover the write.
func (fb *FrameBuffer) Write(src []byte) {
	n := len(src)
	if n == 0 {
		return
	}
	need := fb.pos + n
	if need > len(fb.buf.B) {
		if cap(fb.buf.B) < need {
			grown := ((need / 1024) + 1) * 1024
			nb := make([]byte, len(fb.buf.B), grown)
			copy(nb, fb.buf.B)
			fb.buf.B = nb
		}
		fb.buf.B = fb.buf.B[:need]
	}
	copy(fb.buf.B[fb.pos:need], src)
	fb.pos = need
}

// ReadByte reads one byte at the cursor and advances it. The caller must
// ensure Pos()+1 <= Len() — behavior is undefined (and may panic)
// otherwise, matching the original's unchecked memcpy.
func (fb *FrameBuffer) ReadByte() byte {
	b := fb.buf.B[fb.pos]
	fb.pos++
	return b
}

// ReadUint16LE reads a little-endian u16 at the cursor and advances it by
// 2. Caller must ensure Pos()+2 <= Len().
func (fb *FrameBuffer) ReadUint16LE() uint16 {
	v := wireutil.Uint16LE(fb.buf.B[fb.pos:])
	fb.pos += 2
	return v
}

// ReadUint32LE reads a little-endian u32 at the cursor and advances it by
// 4. Caller must ensure Pos()+4 <= Len().
func (fb *FrameBuffer) ReadUint32LE() uint32 {
	v := wireutil.Uint32LE(fb.buf.B[fb.pos:])
	fb.pos += 4
	return v
}

// ReadInto copies min(len(dst), Len()-Pos()) bytes into dst, advances the
// cursor by that amount, and returns the number of bytes copied.
func (fb *FrameBuffer) ReadInto(dst []byte) int {
	avail := len(fb.buf.B) - fb.pos
	n := len(dst)
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	copy(dst[:n], fb.buf.B[fb.pos:fb.pos+n])
	fb.pos += n
	return n
}

// Clear resets size and cursor to 0, retaining the backing storage.
func (fb *FrameBuffer) Clear() {
	fb.buf.Reset()
	fb.pos = 0
}

// CompactFrom discards everything before `from`, moving any remaining
// bytes to the start of the buffer and resetting the cursor to 0. Used by
// the parser to keep a partial frame at the front of the working buffer
// after consuming complete frames ahead of it.
func (fb *FrameBuffer) CompactFrom(from int) {
	if from <= 0 {
		return
	}
	remaining := len(fb.buf.B) - from
	if remaining > 0 {
		copy(fb.buf.B, fb.buf.B[from:])
	} else {
		remaining = 0
	}
	fb.buf.B = fb.buf.B[:remaining]
	fb.pos = 0
}

// Clone returns a new FrameBuffer (from the pool) containing a copy of
// fb.Bytes(), with its cursor at 0. The clone owns independent storage,
// so later writes to fb do not affect it.
func (fb *FrameBuffer) Clone() *FrameBuffer {
	clone := AcquireFrameBuffer()
	clone.Write(fb.buf.B)
	clone.pos = 0
	return clone
}
