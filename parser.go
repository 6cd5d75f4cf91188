package wcamclient

import (
	"log"

	"github.com/iLya2IK/wcamclient/wireutil"
)

type parserState uint8

const (
	parserWaitingStart parserState = iota
	parserWaitingData
)

// FrameFilterFunc is the optional acceptance filter a FrameParser runs on
// each complete frame before handing it to a FramePool (spec §4.3's
// accept callback). headerOffset is always wireutil.FrameHeaderSize — the
// byte where the frame's payload begins within fr. Returning false drops
// the frame silently.
type FrameFilterFunc func(fr *FrameBuffer, headerOffset int) bool

// FrameParser consumes arbitrary byte chunks from a network stream and
// emits complete length-prefixed frames into a FramePool (spec §3/§4.3).
// It is not safe for concurrent use — it is driven exclusively from the
// transport's inbound data callback (spec §5).
type FrameParser struct {
	working  *FrameBuffer
	maxSize  int
	state    parserState
	bodySize uint32
	base     int // BP in the original: offset of the in-progress frame

	pool   *FramePool
	filter FrameFilterFunc

	log *log.Logger
}

// NewFrameParser creates a parser whose working buffer never exceeds
// maxSize bytes (H2PC_MAX_ALLOWED_FRAMES_SIZE), delivering complete
// frames into pool. filter may be nil.
func NewFrameParser(maxSize int, pool *FramePool, filter FrameFilterFunc) *FrameParser {
	return &FrameParser{
		working: AcquireFrameBuffer(),
		maxSize: maxSize,
		pool:    pool,
		filter:  filter,
		log:     logger,
	}
}

// SetPool replaces the destination pool and filter (spec's
// h2pc_is_set_pool) — used when the session registers a new consumer for
// an incoming stream without tearing down the parser itself.
func (p *FrameParser) SetPool(pool *FramePool, filter FrameFilterFunc) {
	p.pool = pool
	p.filter = filter
}

// Reset returns the parser to WAITING_START with an empty working buffer,
// without touching the registered pool/filter.
func (p *FrameParser) Reset() {
	p.working.Clear()
	p.state = parserWaitingStart
	p.bodySize = 0
	p.base = 0
}

// Free releases the parser's working buffer back to the pool.
func (p *FrameParser) Free() {
	ReleaseFrameBuffer(p.working)
	p.working = nil
}

func (p *FrameParser) freeSpace() int {
	return p.maxSize - p.working.Len()
}

// Consume feeds chunk into the parser, pushing every complete frame it
// recognizes into the destination pool, and returns the number of bytes
// of chunk consumed plus a non-nil error if a malformed header, an
// oversize body, or a full working buffer halted processing partway
// through (spec §4.3: "the parser aborts the current chunk and reports
// failure to the transport layer, which may elect to close the stream").
// A nil error with consumed < len(chunk) cannot happen except together
// with a non-nil error — every byte is either buffered or rejected.
func (p *FrameParser) Consume(chunk []byte) (int, error) {
	chunkPos := 0

	for {
		if p.freeSpace() == 0 {
			if p.log != nil {
				p.log.Printf("wcamclient: frame buffer overflow, dropping chunk")
			}
			return chunkPos, errBufferFull
		}

		if chunkPos < len(chunk) {
			avail := p.freeSpace()
			take := len(chunk) - chunkPos
			if take > avail {
				take = avail
			}
			p.working.SetPos(p.working.Len())
			p.working.Write(chunk[chunkPos : chunkPos+take])
			chunkPos += take
		}

		advanced, err := p.step()
		if err != nil {
			return chunkPos, err
		}
		if !advanced {
			p.compact()
			if chunkPos == len(chunk) {
				return chunkPos, nil
			}
		}
	}
}

// step attempts one state transition at the current base offset. It
// returns true if a transition occurred (so the caller should retry
// immediately), false if more data is needed, and a non-nil error if the
// header was malformed or the body oversize.
func (p *FrameParser) step() (bool, error) {
	switch p.state {
	case parserWaitingStart:
		if p.working.Len()-p.base < wireutil.FrameHeaderSize {
			return false, nil
		}
		p.working.SetPos(p.base)
		magic := p.working.ReadUint16LE()
		if magic != wireutil.FrameMagic {
			if p.log != nil {
				p.log.Printf("wcamclient: malformed frame header (magic=%#x)", magic)
			}
			return false, errMalformedHdr
		}
		bodySize := p.working.ReadUint32LE()
		if int(bodySize) > p.maxSize-wireutil.FrameHeaderSize {
			if p.log != nil {
				p.log.Printf("wcamclient: oversize frame body (%d bytes)", bodySize)
			}
			return false, errFrameTooLarge
		}
		p.bodySize = bodySize
		p.state = parserWaitingData
		return true, nil

	case parserWaitingData:
		total := int(p.bodySize) + wireutil.FrameHeaderSize
		if p.working.Len()-p.base < total {
			return false, nil
		}
		p.pushFrame(p.base, total)
		p.base += total
		p.state = parserWaitingStart
		return true, nil
	}
	return false, nil
}

func (p *FrameParser) pushFrame(from, total int) {
	p.working.SetPos(from)
	body := make([]byte, total)
	n := p.working.ReadInto(body)
	body = body[:n]

	fr := AcquireFrameBuffer()
	fr.Write(body)
	fr.SetPos(0)

	if p.pool == nil {
		ReleaseFrameBuffer(fr)
		return
	}

	accept := true
	if p.filter != nil {
		accept = p.filter(fr, wireutil.FrameHeaderSize)
	}
	if accept {
		p.pool.PushBack(fr)
	} else {
		ReleaseFrameBuffer(fr)
	}
}

// compact moves any bytes from base..Len() down to offset 0, so the
// working buffer never has to grow past maxSize even across many frames.
func (p *FrameParser) compact() {
	if p.base == 0 {
		return
	}
	p.working.CompactFrom(p.base)
	p.base = 0
}
