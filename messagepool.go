package wcamclient

import (
	"encoding/json"
	"sync"

	"github.com/iLya2IK/wcamclient/jsonrpc"
)

// OutgoingPool is the producer-side message queue (spec §3/§4.4): the
// application appends messages to it; SendMsgs drains it as a whole. All
// mutating access goes through the pool's own lock, never direct field
// access, per spec §9's "producer tasks access message pools only through
// lock-guarded handles".
type OutgoingPool struct {
	mu   sync.Mutex
	msgs []jsonrpc.Message
}

// NewOutgoingPool creates an empty outgoing pool.
func NewOutgoingPool() *OutgoingPool { return &OutgoingPool{} }

// Lock/Unlock expose the pool's mutex for batches of *Locked calls, same
// as FramePool and the original's h2pc_om_lock/unlock.
func (p *OutgoingPool) Lock()   { p.mu.Lock() }
func (p *OutgoingPool) Unlock() { p.mu.Unlock() }

// AddMsg appends {msg, target?, params?} with no result field (spec's
// h2pc_om_add_msg).
func (p *OutgoingPool) AddMsg(kind, target string, params json.RawMessage) {
	p.mu.Lock()
	p.msgs = append(p.msgs, jsonrpc.Message{Msg: kind, Target: target, Params: params})
	p.mu.Unlock()
}

// AddMsgRes appends a message carrying a boolean result (spec's
// h2pc_om_add_msg_res): ok maps to result "OK", otherwise result "BAD"
// with no code (REST_ERR_UNSPECIFIED has no "code" field per
// h2pc_msg_set_res).
func (p *OutgoingPool) AddMsgRes(kind, target string, params json.RawMessage, ok bool) {
	p.mu.Lock()
	m := jsonrpc.Message{Msg: kind, Target: target, Params: params}
	setMsgResult(&m, ok, 0, false)
	p.msgs = append(p.msgs, m)
	p.mu.Unlock()
}

// AddMsgResCode appends a message carrying an explicit server error code
// (spec's h2pc_om_add_msg_res_code): result "BAD" with a code field, or
// result "OK" with no code when code is 0.
func (p *OutgoingPool) AddMsgResCode(kind, target string, params json.RawMessage, code int) {
	p.mu.Lock()
	m := jsonrpc.Message{Msg: kind, Target: target, Params: params}
	setMsgResult(&m, code == 0, code, true)
	p.msgs = append(p.msgs, m)
	p.mu.Unlock()
}

// setMsgResult mirrors h2pc_msg_set_res: ok -> result "OK" with no code;
// otherwise result "BAD" and, when explicit is true or code != 0, a code
// field.
func setMsgResult(m *jsonrpc.Message, ok bool, code int, explicit bool) {
	if ok {
		m.Result = jsonrpc.ResultOK
		return
	}
	m.Result = jsonrpc.ResultBad
	if explicit || code != 0 {
		c := code
		m.Code = &c
	}
}

// LockedWaiting reports whether the pool currently holds any messages
// (spec's h2pc_om_locked_waiting — a polling helper for producers).
func (p *OutgoingPool) LockedWaiting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs) > 0
}

// GetPoolLocked returns the live slice; caller must hold the lock.
func (p *OutgoingPool) GetPoolLocked() []jsonrpc.Message {
	return p.msgs
}

// SetPoolLocked replaces the live slice; caller must hold the lock.
func (p *OutgoingPool) SetPoolLocked(msgs []jsonrpc.Message) {
	p.msgs = msgs
}

// ClearPoolLocked empties the pool; caller must hold the lock.
func (p *OutgoingPool) ClearPoolLocked() {
	p.msgs = nil
}

// DrainForSend duplicates the pool's contents (by value — jsonrpc.Message
// only holds value fields and a json.RawMessage, which callers must treat
// as immutable, giving the same "deep enough" copy semantics as cJSON's
// deep Duplicate) and clears the live pool, returning the duplicate. If
// the pool is empty it returns nil without touching anything, matching
// the original's "only duplicate if non-empty" gate in
// h2pc_req_send_msgs_sync.
func (p *OutgoingPool) DrainForSend() []jsonrpc.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return nil
	}
	dup := make([]jsonrpc.Message, len(p.msgs))
	copy(dup, p.msgs)
	p.msgs = nil
	return dup
}

// Restore puts a previously-drained batch back after a failed send (spec
// §4.6/§5/§8): if the live pool is empty it's simply replaced by the
// batch; otherwise the batch is prepended so it precedes any messages
// appended to the pool while the send was in flight.
func (p *OutgoingPool) Restore(batch []jsonrpc.Message) {
	if len(batch) == 0 {
		return
	}
	p.mu.Lock()
	if len(p.msgs) == 0 {
		p.msgs = batch
	} else {
		merged := make([]jsonrpc.Message, 0, len(batch)+len(p.msgs))
		merged = append(merged, batch...)
		merged = append(merged, p.msgs...)
		p.msgs = merged
	}
	p.mu.Unlock()
}

// NextMsgFunc is the callback IncomingPool.Proceed invokes per message
// (spec's h2pc_cb_next_msg). Returning false stops delivery early.
type NextMsgFunc func(device, kind string, params json.RawMessage, mid json.RawMessage) bool

// IncomingPool is the consumer-side message queue (spec §3/§4.4),
// populated wholesale by GetMsgs and drained incrementally by Proceed via
// a cursor. onStamp, if set, receives every non-empty "stamp" field seen
// while proceeding — the session wires this to its last_stamp field so
// delta-polling advances monotonically (spec §5).
type IncomingPool struct {
	mu     sync.Mutex
	msgs   []jsonrpc.Message
	cursor int

	onStamp func(stamp string)
}

// NewIncomingPool creates an empty incoming pool.
func NewIncomingPool() *IncomingPool { return &IncomingPool{} }

func (p *IncomingPool) Lock()   { p.mu.Lock() }
func (p *IncomingPool) Unlock() { p.mu.Unlock() }

// SetOnStamp installs the callback invoked with each STAMP field seen
// during Proceed.
func (p *IncomingPool) SetOnStamp(cb func(stamp string)) {
	p.onStamp = cb
}

// SetPoolLocked replaces the pool's contents and resets the cursor to 0
// (spec's h2pc_im_set_pool / the cursor-reset half of get_msgs_sync).
// Caller must hold the lock.
func (p *IncomingPool) SetPoolLocked(msgs []jsonrpc.Message) {
	p.msgs = msgs
	p.cursor = 0
}

// ClearPoolLocked empties the pool and resets the cursor. Caller must
// hold the lock.
func (p *IncomingPool) ClearPoolLocked() {
	p.msgs = nil
	p.cursor = 0
}

// LockedWaiting reports whether the pool is empty (spec's
// h2pc_im_locked_waiting — note the original's name is misleading: it
// returns true when the pool is empty/absent, the opposite sense of
// OutgoingPool's LockedWaiting; preserved here for fidelity with a
// comment instead of silently "fixing" the asymmetry).
func (p *IncomingPool) LockedWaiting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs) == 0
}

// Proceed delivers messages to cb starting at the current cursor (spec
// §4.4): for each message, STAMP (if present) is reported via onStamp,
// and if both DEVICE and MSG are present cb is invoked with the message's
// params and its mid (extracted from params). The cursor always advances;
// iteration stops when cb returns false, when the cursor reaches the end
// (the pool is then cleared), or once more than limit messages have been
// delivered to cb.
func (p *IncomingPool) Proceed(cb NextMsgFunc, limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.msgs) == 0 || p.cursor >= len(p.msgs) {
		return
	}

	delivered := 0
	for {
		m := &p.msgs[p.cursor]

		if m.Stamp != "" && p.onStamp != nil {
			p.onStamp(m.Stamp)
		}

		keepGoing := true
		if m.Device != "" && m.Msg != "" {
			keepGoing = cb(m.Device, m.Msg, m.Params, m.Mid())
			delivered++
		}

		p.cursor++
		if p.cursor >= len(p.msgs) {
			p.msgs = nil
			p.cursor = 0
			break
		}
		if !keepGoing {
			break
		}
		if delivered > limit {
			break
		}
	}
}
