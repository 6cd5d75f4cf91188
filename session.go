package wcamclient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fastrand"

	"github.com/iLya2IK/wcamclient/jsonrpc"
	"github.com/iLya2IK/wcamclient/wireutil"
)

// SessionClient is the façade driving one authorized session over a
// Transport (spec §4.6): synchronous control-plane operations plus the
// two long-lived streaming lifecycles. It owns exactly the state the
// original's global h2pc_* variables held, gathered into one struct so a
// process can run more than one session.
type SessionClient struct {
	cfg       *Config
	mode      Mode
	transport Transport

	sid            string
	lastStamp      string
	protocolErrors int
	lastErrCode    wireutil.ServerErrorCode
	connected      bool

	// Out and In are the application's handles onto the outgoing and
	// incoming message queues (spec §4.4); nil unless ModeMessaging is
	// set.
	Out *OutgoingPool
	In  *IncomingPool

	resp   *ResponseSink
	reqSrc *RequestBodySource

	incPool     *FramePool
	incParser   *FrameParser
	incStreamID int32

	outStreamID int32
	outHeader   [wireutil.FrameHeaderSize]byte
	outPayload  []byte
	outFrameLen int
	outFramePos int
	sendingDone bool
}

// NewSessionClient creates a client bound to transport with the given
// configuration. Call Initialize before issuing any operation.
func NewSessionClient(transport Transport, cfg Config) *SessionClient {
	cfg.defaults()
	c := cfg
	return &SessionClient{
		cfg:         &c,
		transport:   transport,
		incStreamID: -1,
		outStreamID: -1,
	}
}

// Initialize allocates the pools and buffers the given mode needs (spec's
// h2pc_initialize).
func (sc *SessionClient) Initialize(mode Mode) {
	sc.mode = mode
	sc.resp = NewResponseSink(sc.cfg.InitialRespBuffer, sc.cfg.MaximumRespBuffer)
	sc.reqSrc = NewRequestBodySource(nil)

	if mode.Has(ModeIncoming) {
		sc.incParser = NewFrameParser(sc.cfg.MaxAllowedFramesSize, nil, nil)
	}
	if mode.Has(ModeMessaging) {
		sc.Out = NewOutgoingPool()
		sc.In = NewIncomingPool()
		sc.In.SetOnStamp(func(stamp string) { sc.lastStamp = stamp })
	}
}

/* getters, mirroring h2pc_get_* */

// SID returns the current session hash, or "" if not authorized.
func (sc *SessionClient) SID() string { return sc.sid }

// ProtocolErrorsCount returns how many protocol errors have been recorded
// since the last successful Authorize.
func (sc *SessionClient) ProtocolErrorsCount() int { return sc.protocolErrors }

// LastErrorCode returns the most recently recorded server error code.
func (sc *SessionClient) LastErrorCode() wireutil.ServerErrorCode { return sc.lastErrCode }

// Connected reports whether the transport is currently connected.
func (sc *SessionClient) Connected() bool { return sc.connected }

// IsStreaming reports whether either streaming direction has a live
// stream id.
func (sc *SessionClient) IsStreaming() bool {
	return sc.outStreamID > 0 || sc.incStreamID > 0
}

// Streaming returns a bitmask of which streaming directions are live
// (supplements h2pc_get_streaming, which the original only declares but a
// caller needs to tell GET and PUT apart rather than just "some stream is
// open").
func (sc *SessionClient) Streaming() Mode {
	var m Mode
	if sc.outStreamID > 0 {
		m |= ModeOutgoing
	}
	if sc.incStreamID > 0 {
		m |= ModeIncoming
	}
	return m
}

// ClearIncomingFrames drops every frame currently queued in the
// registered incoming FramePool, if any (spec's h2pc_clear_incoming_frames).
func (sc *SessionClient) ClearIncomingFrames() {
	if sc.incPool != nil {
		sc.incPool.Clear()
	}
}

func (sc *SessionClient) recordProtocolError(env *jsonrpc.Envelope) {
	sc.protocolErrors++
	code := wireutil.ServerUnspecified
	if env != nil && env.Code != nil {
		code = wireutil.ServerErrorCode(*env.Code)
	}
	sc.lastErrCode = code
	if logger != nil {
		logger.Printf("wcamclient: protocol error %d (%s)", code, code)
	}
}

// parseEnvelope decodes the accumulated response body. An empty body and
// an unparseable body are both treated as EmptyResponse/Internal
// respectively — the original's get_msgs path is the only one that names
// EMPTY_RESPONSE explicitly, but every operation faces the same "transport
// said OK yet there's nothing to parse" case, so this unifies it instead
// of leaving it to silently read as Code.OK the way the C client's
// authorize/send_media_record do when consume_response_content returns
// NULL.
func (sc *SessionClient) parseEnvelope() (*jsonrpc.Envelope, Code) {
	if sc.resp.Len() == 0 {
		return nil, EmptyResponse
	}
	var env jsonrpc.Envelope
	if err := json.Unmarshal(sc.resp.Bytes(), &env); err != nil {
		return nil, Internal
	}
	return &env, OK
}

/* low-level request/response plumbing, grounded on h2pc_prepare_to_send /
   h2pc_do_post / h2pc_wait_for_response / h2pc_consume_response_content */

// buildPath splits a pre-formatted "path?query" string (built through one
// of jsonrpc's PathXxxFmt constants) and reassembles it through fasthttp's
// URI, validating the result against MaxPathLength.
func (sc *SessionClient) buildPath(pathAndQuery string) (string, error) {
	uri := fasthttp.AcquireURI()
	defer fasthttp.ReleaseURI(uri)
	if i := strings.IndexByte(pathAndQuery, '?'); i >= 0 {
		uri.SetPath(pathAndQuery[:i])
		uri.SetQueryStringBytes([]byte(pathAndQuery[i+1:]))
	} else {
		uri.SetPath(pathAndQuery)
	}
	full := uri.RequestURI()
	if len(full) > sc.cfg.MaxPathLength {
		return "", errPathTooLong
	}
	return string(full), nil
}

// doPost runs one synchronous POST to path with the given body, collects
// the response into sc.resp, and reports whether the connection survived
// the round trip. body is streamed directly, with no extra copy, by
// wrapping it in a RequestBodySource — used for both JSON bodies and the
// raw media-record bytes of SendMediaRecord.
func (sc *SessionClient) doPost(path string, body []byte) bool {
	sc.reqSrc.Reset(body)
	sc.resp.Reset()

	finished := false
	provider := func(buf []byte) (int, ProviderSignal) {
		n, eof := sc.reqSrc.Next(buf)
		if eof {
			return n, ProviderEOF
		}
		return n, ProviderMore
	}
	onData := func(data []byte, flags DataFlag) {
		if len(data) > 0 {
			sc.resp.Write(data)
		}
		switch flags {
		case DataRecvRstStream:
			finished = true
		case DataRecvGoAway:
			sc.Disconnect()
		}
	}

	if _, err := sc.transport.DoPost(path, len(body), provider, onData); err != nil {
		return false
	}
	return sc.pumpUntilResponse(&finished)
}

// pumpUntilResponse repeatedly drives the transport's send/recv pump
// (spec's "unified send/receive pump") until done is set or the
// connection drops, yielding between iterations with a small jittered
// sleep so many sessions sharing a process don't all wake in lockstep.
func (sc *SessionClient) pumpUntilResponse(done *bool) bool {
	for {
		if err := sc.transport.SessionRecv(); err != nil {
			sc.Disconnect()
			return false
		}
		if err := sc.transport.SessionSend(); err != nil {
			sc.Disconnect()
			return false
		}
		if *done || !sc.connected {
			break
		}
		sleepJitter(sc.cfg.ResponseWaitTick)
	}
	return sc.connected
}

/* synchronous operations, spec §4.6 */

// Connect establishes the underlying transport connection.
func (sc *SessionClient) Connect(server string) Code {
	if err := sc.transport.Connect(server); err != nil {
		return NotConnected
	}
	sc.connected = true
	return OK
}

// Authorize exchanges credentials for a session hash (spec's
// h2pc_req_authorize_sync). meta may be nil.
func (sc *SessionClient) Authorize(name, pass, device string, meta json.RawMessage) Code {
	sc.sid = ""

	body, err := json.Marshal(jsonrpc.AuthorizeRequest{Name: name, Pass: pass, Device: device, Meta: meta})
	if err != nil {
		return Internal
	}
	if !sc.doPost(jsonrpc.PathAuthorize, body) {
		return NotConnected
	}

	env, code := sc.parseEnvelope()
	if code == EmptyResponse {
		sc.recordProtocolError(nil)
		return Protocol
	}
	if code != OK {
		return code
	}
	if env.SHash != "" {
		sc.sid = env.SHash
		sc.protocolErrors = 0
		sc.lastStamp = jsonrpc.SyncStamp
		return OK
	}
	sc.recordProtocolError(env)
	return Protocol
}

// NextDeviceFunc is invoked once per device returned by GetStreams.
// Returning false stops iteration early (spec's h2pc_cb_stream_next_device).
type NextDeviceFunc func(device, subproto string) bool

// GetStreams lists the devices currently streaming to the server (spec's
// h2pc_req_get_streams_sync).
func (sc *SessionClient) GetStreams(cb NextDeviceFunc) Code {
	if sc.sid == "" {
		return InvalidState
	}
	body, err := json.Marshal(jsonrpc.GetStreamsRequest{SHash: sc.sid})
	if err != nil {
		return Internal
	}
	if !sc.doPost(jsonrpc.PathGetStreams, body) {
		return NotConnected
	}

	env, code := sc.parseEnvelope()
	if code == EmptyResponse {
		sc.recordProtocolError(nil)
		return Protocol
	}
	if code != OK {
		return code
	}
	if !env.IsOK() {
		sc.recordProtocolError(env)
		return Protocol
	}
	if len(env.Devices) == 0 || cb == nil {
		return OK
	}
	var devices []jsonrpc.Device
	if err := json.Unmarshal(env.Devices, &devices); err != nil {
		return Internal
	}
	for _, d := range devices {
		if !cb(d.DeviceName, d.SubProto) {
			break
		}
	}
	return OK
}

// SendMsgs drains the outgoing pool and posts it as one batch (spec's
// h2pc_req_send_msgs_sync), restoring the batch on any failure so nothing
// queued by the application is lost.
func (sc *SessionClient) SendMsgs() Code {
	if sc.sid == "" || !sc.mode.Has(ModeMessaging) {
		return InvalidState
	}
	batch := sc.Out.DrainForSend()
	if len(batch) == 0 {
		return OK
	}

	body, err := json.Marshal(jsonrpc.AddMsgsRequest{SHash: sc.sid, Msgs: batch})
	if err != nil {
		sc.Out.Restore(batch)
		return Internal
	}
	if !sc.doPost(jsonrpc.PathAddMsgs, body) {
		sc.Out.Restore(batch)
		return NotConnected
	}

	env, code := sc.parseEnvelope()
	if code == EmptyResponse {
		sc.Out.Restore(batch)
		sc.recordProtocolError(nil)
		return Protocol
	}
	if code != OK {
		sc.Out.Restore(batch)
		return code
	}
	if env.IsOK() {
		return OK
	}
	sc.Out.Restore(batch)
	sc.recordProtocolError(env)
	return Protocol
}

// SendMediaRecord posts one complete media record as the raw bytes of buf
// (spec's h2pc_req_send_media_record_sync).
func (sc *SessionClient) SendMediaRecord(buf []byte) Code {
	if sc.sid == "" {
		return InvalidState
	}
	path, err := sc.buildPath(fmt.Sprintf(jsonrpc.PathAddRecordFmt, sc.percentEncodeToken(sc.sid)))
	if err != nil {
		return InvalidArg
	}
	if !sc.doPost(path, buf) {
		return NotConnected
	}

	env, code := sc.parseEnvelope()
	if code == EmptyResponse {
		sc.recordProtocolError(nil)
		return Protocol
	}
	if code != OK {
		return code
	}
	if env.IsOK() {
		return OK
	}
	sc.recordProtocolError(env)
	return Protocol
}

// GetMsgs polls for new incoming messages since last_stamp (spec's
// h2pc_req_get_msgs_sync).
func (sc *SessionClient) GetMsgs() Code {
	if !sc.mode.Has(ModeMessaging) || sc.sid == "" || sc.lastStamp == "" {
		return InvalidState
	}
	body, err := json.Marshal(jsonrpc.GetMsgsRequest{SHash: sc.sid, Stamp: sc.lastStamp})
	if err != nil {
		return Internal
	}
	ok := sc.doPost(jsonrpc.PathGetMsgsSync, body)

	sc.In.Lock()
	defer sc.In.Unlock()
	sc.In.ClearPoolLocked()

	if !ok {
		return NotConnected
	}

	env, code := sc.parseEnvelope()
	if code == EmptyResponse {
		return EmptyResponse
	}
	if code != OK {
		return code
	}
	if !env.IsOK() {
		sc.recordProtocolError(env)
		return Protocol
	}
	if len(env.Msgs) == 0 {
		return EmptyResponse
	}
	var msgs []jsonrpc.Message
	if err := json.Unmarshal(env.Msgs, &msgs); err != nil {
		return Internal
	}
	sc.In.SetPoolLocked(msgs)
	return OK
}

// percentEncodeToken percent-encodes s and clamps it to MaxTokenLength.
// The overflow check that actually matters is buildPath's MaxPathLength
// check on the assembled path; this just keeps one oversize token from
// ballooning the path before that check runs.
func (sc *SessionClient) percentEncodeToken(s string) string {
	enc := wireutil.PercentEncodeString(s)
	if len(enc) > sc.cfg.MaxTokenLength {
		enc = enc[:sc.cfg.MaxTokenLength]
	}
	return enc
}

/* incoming streaming, spec's h2pc_is_* */

// IncomingLaunch opens the inbound GET stream for deviceName, registering
// pool as the destination for parsed frames and filter (which may be nil)
// as the acceptance callback (spec's h2pc_is_launch).
func (sc *SessionClient) IncomingLaunch(deviceName string, pool *FramePool, filter FrameFilterFunc) Code {
	if !sc.mode.Has(ModeIncoming) {
		return InvalidState
	}
	if sc.sid == "" {
		return InvalidState
	}
	if deviceName == "" {
		return InvalidArg
	}

	sc.incPool = pool
	sc.incParser.SetPool(pool, filter)
	sc.incParser.Reset()

	path, err := sc.buildPath(fmt.Sprintf(jsonrpc.PathOutputRawFmt,
		sc.percentEncodeToken(sc.sid), sc.percentEncodeToken(deviceName)))
	if err != nil {
		return InvalidArg
	}

	onData := func(data []byte, flags DataFlag) {
		if len(data) > 0 {
			if _, ferr := sc.incParser.Consume(data); ferr != nil && logger != nil {
				logger.Printf("wcamclient: incoming frame parse error: %v", ferr)
			}
		}
		switch flags {
		case DataRecvRstStream:
			sc.incStreamID = -1
		case DataRecvGoAway:
			sc.Disconnect()
		}
	}

	streamID, derr := sc.transport.DoGet(path, onData)
	sc.incStreamID = streamID
	if derr != nil || streamID <= 0 {
		return InvalidResponse
	}
	return OK
}

// IncomingWaitForFrame pumps the transport for up to
// Config.IncomingStreamWaitTicks iterations, resuming the incoming
// stream's data provider each time (spec's h2pc_is_wait_for_frame).
// Returns false once the stream has ended or the connection has dropped.
func (sc *SessionClient) IncomingWaitForFrame() bool {
	for tick := 0; tick < sc.cfg.IncomingStreamWaitTicks; tick++ {
		if sc.incStreamID <= 0 {
			return false
		}
		sc.transport.ResumeData(sc.incStreamID)

		if err := sc.transport.SessionRecv(); err != nil {
			sc.Disconnect()
			return false
		}
		if err := sc.transport.SessionSend(); err != nil {
			sc.Disconnect()
			return false
		}
		if sc.incStreamID <= 0 || !sc.connected {
			return false
		}
		sleepJitter(sc.cfg.IncomingWaitTick)
	}
	return true
}

// IncomingStop resets the inbound GET stream (spec's h2pc_is_stop).
func (sc *SessionClient) IncomingStop() {
	if sc.incStreamID > 0 && sc.connected {
		sc.transport.SubmitRstStream(sc.incStreamID, RstStreamRefused)
	}
}

/* outgoing streaming, spec's h2pc_os_* */

// OutgoingPrepare opens the outbound PUT stream (spec's h2pc_os_prepare).
func (sc *SessionClient) OutgoingPrepare() Code {
	if sc.sid == "" {
		return InvalidState
	}
	path, err := sc.buildPath(fmt.Sprintf(jsonrpc.PathAddRecordFmt, sc.percentEncodeToken(sc.sid)))
	if err != nil {
		return InvalidArg
	}

	onResponse := func(data []byte, flags DataFlag) {
		switch flags {
		case DataSendFrameData:
			// The transport reports bytes actually written to the wire;
			// completion is driven by outFramePos reaching outFrameLen
			// in the provider itself, so there is nothing to track here
			// beyond what the provider already advances.
		case DataRecvRstStream:
			sc.sendingDone = true
			sc.outStreamID = -1
		case DataRecvGoAway:
			sc.Disconnect()
		}
	}

	streamID, derr := sc.transport.DoPut(path, sc.outgoingProvider, onResponse)
	sc.outStreamID = streamID
	if derr != nil {
		return InvalidResponse
	}
	return OK
}

// OutgoingPrepareFrame stages one media frame for the PUT stream (spec's
// h2pc_os_prepare_frame): payload is the frame body; the 6-byte header is
// synthesized into outHeader ahead of it, ready to be doled out by
// outgoingProvider one buffer at a time regardless of how small that
// buffer is.
func (sc *SessionClient) OutgoingPrepareFrame(payload []byte) {
	wireutil.PutFrameHeader(sc.outHeader[:], uint32(len(payload)))
	sc.outPayload = payload
	sc.outFrameLen = len(payload) + wireutil.FrameHeaderSize
	sc.outFramePos = 0
	sc.sendingDone = false
}

// outgoingProvider is the PUT body provider (spec's send_put_data): it
// streams the already-synthesized frame header ahead of the payload, then
// the payload itself, returning Deferred once the frame is exhausted so
// the transport parks the stream until the next OutgoingPrepareFrame +
// ResumeData. buf may be smaller than the header (transport.go's
// DataProvider contract documents no minimum buffer size), so the header
// is copied out byte-range by byte-range via outFramePos rather than
// assumed to fit in one call.
func (sc *SessionClient) outgoingProvider(buf []byte) (int, ProviderSignal) {
	remaining := sc.outFrameLen - sc.outFramePos
	length := len(buf)
	if length > remaining {
		length = remaining
	}

	n := 0
	for n < length {
		if sc.outFramePos < wireutil.FrameHeaderSize {
			take := wireutil.FrameHeaderSize - sc.outFramePos
			if take > length-n {
				take = length - n
			}
			copy(buf[n:n+take], sc.outHeader[sc.outFramePos:sc.outFramePos+take])
			n += take
			sc.outFramePos += take
			continue
		}
		payloadOff := sc.outFramePos - wireutil.FrameHeaderSize
		take := len(sc.outPayload) - payloadOff
		if take > length-n {
			take = length - n
		}
		copy(buf[n:n+take], sc.outPayload[payloadOff:payloadOff+take])
		n += take
		sc.outFramePos += take
	}

	if sc.outFramePos == sc.outFrameLen {
		sc.sendingDone = true
		if n == 0 {
			return 0, ProviderDeferred
		}
		return n, ProviderMore
	}
	return n, ProviderMore
}

// OutgoingWaitForFrame pumps the transport until the provider has handed
// out the whole current frame, the stream is reset, or the connection
// drops (spec's
// h2pc_os_wait_for_frame), then clears the staged frame.
func (sc *SessionClient) OutgoingWaitForFrame() bool {
	res := true
	for {
		if sc.outStreamID > 0 {
			sc.transport.ResumeData(sc.outStreamID)
		}
		if err := sc.transport.SessionRecv(); err != nil {
			sc.Disconnect()
			res = false
			break
		}
		if err := sc.transport.SessionSend(); err != nil {
			sc.Disconnect()
			res = false
			break
		}
		if sc.sendingDone || !sc.connected {
			break
		}
		sleepJitter(sc.cfg.ResponseWaitTick)
	}
	sc.outPayload = nil
	sc.outFrameLen = 0
	sc.outFramePos = 0
	return res
}

/* lifecycle, spec's h2pc_reset_buffers / h2pc_reset / h2pc_disconnect_http2 /
   h2pc_finalize */

// ResetBuffers drops the staged request body and outbound frame, and
// empties the response accumulator (spec's h2pc_reset_buffers).
func (sc *SessionClient) ResetBuffers() {
	sc.resp.Reset()
	sc.reqSrc.Reset(nil)
	sc.outPayload = nil
	sc.outFrameLen = 0
	sc.outFramePos = 0
}

// Reset clears all per-session state: buffers, error counters, the
// incoming-stream registration, the frame parser, and the session hash
// (spec's h2pc_reset).
func (sc *SessionClient) Reset() {
	sc.ResetBuffers()
	sc.protocolErrors = 0
	sc.lastErrCode = wireutil.ServerNoError
	if sc.incParser != nil {
		sc.incParser.SetPool(nil, nil)
		sc.incParser.Reset()
	}
	sc.incPool = nil
	sc.sid = ""
}

// Disconnect releases the transport handle and resets session state
// (spec's h2pc_disconnect_http2).
func (sc *SessionClient) Disconnect() {
	if sc.connected {
		sc.transport.Free()
		sc.outStreamID = -1
		sc.incStreamID = -1
		sc.connected = false
	}
	sc.Reset()
}

// Finalize releases the frame parser's working buffer and clears the
// message pools (spec's h2pc_finalize). Call once, after the client is no
// longer needed.
func (sc *SessionClient) Finalize() {
	sc.Reset()
	if sc.incParser != nil {
		sc.incParser.Free()
	}
	sc.Out = nil
	sc.In = nil
}

// sleepJitter yields for a random duration between base/2 and base, so
// many sessions polling in the same process don't wake in lockstep — the same
// role fastrand plays for frame-padding length in the teacher's
// AddPadding, repurposed here for wait-loop timing instead of byte
// counts.
func sleepJitter(base time.Duration) {
	if base <= 0 {
		return
	}
	jitter := time.Duration(fastrand.Uint32n(uint32(base) / 2))
	time.Sleep(base/2 + jitter)
}
