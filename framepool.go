package wcamclient

import "sync"

// frameNode is one link of the FramePool's singly-linked FIFO.
type frameNode struct {
	next *frameNode
	fr   *FrameBuffer
}

// OnEraseFunc is invoked just before an evicted or cleared frame is freed
// (spec §4.2's on_erase_cb).
type OnEraseFunc func(fr *FrameBuffer)

// FramePool is a bounded FIFO of FrameBuffers with a count limit and a
// total-bytes limit (spec §3/§4.2). Pushing past either limit drops the
// oldest frame until both hold, the drop-oldest policy spec §4.2 and §9
// call out as a deliberate real-time-media tradeoff, not a bug. All
// mutating operations are guarded by a single mutex; *Locked variants
// assume the caller already holds it, mirroring wcFramePool_*_nonsafe in
// the original.
type FramePool struct {
	mu sync.Mutex

	head, tail *frameNode
	count      int
	totalBytes int

	countLimit int
	bytesLimit int

	onErase OnEraseFunc
}

// NewFramePool creates an empty pool bounded by countLimit frames and
// bytesLimit total bytes.
func NewFramePool(countLimit, bytesLimit int) *FramePool {
	return &FramePool{countLimit: countLimit, bytesLimit: bytesLimit}
}

// SetOnErase installs the callback invoked before an evicted/cleared
// frame is freed.
func (p *FramePool) SetOnErase(cb OnEraseFunc) {
	p.mu.Lock()
	p.onErase = cb
	p.mu.Unlock()
}

// Lock acquires the pool's mutex for a batch of Locked operations.
func (p *FramePool) Lock() { p.mu.Lock() }

// Unlock releases the pool's mutex.
func (p *FramePool) Unlock() { p.mu.Unlock() }

// Count returns the current frame count.
func (p *FramePool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// TotalBytes returns the current total byte size across all held frames.
func (p *FramePool) TotalBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalBytes
}

// PushBack appends fr, then evicts from the front while either limit is
// breached.
func (p *FramePool) PushBack(fr *FrameBuffer) {
	p.mu.Lock()
	p.PushBackLocked(fr)
	p.mu.Unlock()
}

// PushBackLocked is PushBack for a caller already holding the lock.
func (p *FramePool) PushBackLocked(fr *FrameBuffer) {
	node := &frameNode{fr: fr}
	p.count++
	p.totalBytes += fr.Len()

	if p.tail != nil {
		p.tail.next = node
	} else {
		p.head = node
	}
	p.tail = node

	for p.count > 0 && (p.count > p.countLimit || p.totalBytes > p.bytesLimit) {
		p.eraseFrontLocked()
	}
}

// PopFront removes and returns the oldest frame, or nil if empty.
func (p *FramePool) PopFront() *FrameBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PopFrontLocked()
}

// PopFrontLocked is PopFront for a caller already holding the lock.
func (p *FramePool) PopFrontLocked() *FrameBuffer {
	node := p.head
	if node == nil {
		return nil
	}
	p.head = node.next
	if p.head == nil {
		p.tail = nil
	}
	p.count--
	p.totalBytes -= node.fr.Len()
	return node.fr
}

// EraseFront pops the oldest frame, invokes the erase callback, and frees
// it back to the FrameBuffer pool.
func (p *FramePool) EraseFront() {
	p.mu.Lock()
	p.eraseFrontLocked()
	p.mu.Unlock()
}

func (p *FramePool) eraseFrontLocked() {
	fr := p.PopFrontLocked()
	if fr == nil {
		return
	}
	if p.onErase != nil {
		p.onErase(fr)
	}
	ReleaseFrameBuffer(fr)
}

// Clear erases every frame currently held.
func (p *FramePool) Clear() {
	p.mu.Lock()
	for p.count > 0 {
		p.eraseFrontLocked()
	}
	p.mu.Unlock()
}
