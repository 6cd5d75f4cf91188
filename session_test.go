package wcamclient

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/iLya2IK/wcamclient/wireutil"
)

// fakeTransport is a minimal, single-threaded stand-in for a real HTTP/2
// connection: DoPost/DoGet deliver a pre-scripted response synchronously
// instead of driving actual network I/O, DoPut only records the path, and
// SessionRecv/SessionSend are no-ops unless scripted to fail. This is
// enough to exercise SessionClient's control flow without a transport
// implementation, which is out of scope for this module.
type fakeTransport struct {
	connectErr error
	connected  bool

	postResponse []byte
	postErr      error

	recvErr error
	sendErr error

	lastPath string
	lastBody []byte
}

func (f *fakeTransport) Connect(server string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) DoGet(path string, onData OnDataFunc) (int32, error) {
	f.lastPath = path
	if onData != nil {
		onData(f.postResponse, DataRecvRstStream)
	}
	return 1, f.postErr
}

func (f *fakeTransport) DoPost(path string, contentLength int, provider DataProvider, onData OnDataFunc) (int32, error) {
	f.lastPath = path
	if f.postErr != nil {
		return 0, f.postErr
	}
	// Drain the provider fully, as a real transport would, so the
	// request body logic is exercised even though nothing inspects it.
	buf := make([]byte, 4096)
	var body []byte
	for {
		n, sig := provider(buf)
		body = append(body, buf[:n]...)
		if sig == ProviderEOF || n == 0 {
			break
		}
	}
	f.lastBody = body
	if onData != nil {
		onData(f.postResponse, DataRecvRstStream)
	}
	return 2, nil
}

func (f *fakeTransport) DoPut(path string, provider DataProvider, onData OnDataFunc) (int32, error) {
	f.lastPath = path
	return 3, f.postErr
}

func (f *fakeTransport) SessionRecv() error                                 { return f.recvErr }
func (f *fakeTransport) SessionSend() error                                 { return f.sendErr }
func (f *fakeTransport) ResumeData(streamID int32)                          {}
func (f *fakeTransport) SubmitRstStream(streamID int32, code RstStreamCode) {}
func (f *fakeTransport) Connected() bool                                    { return f.connected }
func (f *fakeTransport) Free()                                              { f.connected = false }

func newTestSession(t *testing.T, ft *fakeTransport) *SessionClient {
	t.Helper()
	sc := NewSessionClient(ft, DefaultConfig())
	sc.Initialize(ModeMessaging)
	if code := sc.Connect("example.test:443"); code != OK {
		t.Fatalf("Connect failed: %v", code)
	}
	return sc
}

func TestAuthorizeSuccess(t *testing.T) {
	ft := &fakeTransport{postResponse: []byte(`{"result":"OK","shash":"sid-123"}`)}
	sc := newTestSession(t, ft)

	if code := sc.Authorize("alice", "secret", "cam1", nil); code != OK {
		t.Fatalf("expected OK, got %v", code)
	}
	if sc.SID() != "sid-123" {
		t.Fatalf("unexpected sid %q", sc.SID())
	}
	if sc.ProtocolErrorsCount() != 0 {
		t.Fatalf("expected protocol error count reset to 0")
	}
}

func TestAuthorizeBadCredentials(t *testing.T) {
	// code 7 is wireutil.ServerNoSuchUser.
	ft := &fakeTransport{postResponse: []byte(`{"result":"BAD","code":7}`)}
	sc := newTestSession(t, ft)

	if got := sc.Authorize("alice", "wrong", "cam1", nil); got != Protocol {
		t.Fatalf("expected Protocol, got %v", got)
	}
	if sc.SID() != "" {
		t.Fatalf("sid should remain empty after a failed authorize")
	}
	if sc.ProtocolErrorsCount() != 1 {
		t.Fatalf("expected protocol error to be recorded, count=%d", sc.ProtocolErrorsCount())
	}
	if sc.LastErrorCode() != wireutil.ServerNoSuchUser {
		t.Fatalf("unexpected last error code %v", sc.LastErrorCode())
	}
}

func TestAuthorizeEmptyResponseIsProtocolError(t *testing.T) {
	ft := &fakeTransport{postResponse: nil}
	sc := newTestSession(t, ft)

	if got := sc.Authorize("alice", "secret", "cam1", nil); got != Protocol {
		t.Fatalf("expected Protocol for an empty response, got %v", got)
	}
}

func TestAuthorizeNotConnected(t *testing.T) {
	ft := &fakeTransport{postErr: errors.New("submit failed")}
	sc := newTestSession(t, ft)

	if got := sc.Authorize("alice", "secret", "cam1", nil); got != NotConnected {
		t.Fatalf("expected NotConnected, got %v", got)
	}
}

func TestGetStreamsRequiresAuthorize(t *testing.T) {
	ft := &fakeTransport{}
	sc := newTestSession(t, ft)

	if got := sc.GetStreams(nil); got != InvalidState {
		t.Fatalf("expected InvalidState before authorize, got %v", got)
	}
}

func TestGetStreamsDeliversDevices(t *testing.T) {
	ft := &fakeTransport{postResponse: []byte(`{"result":"OK","shash":"sid-123"}`)}
	sc := newTestSession(t, ft)
	sc.Authorize("alice", "secret", "cam1", nil)

	ft.postResponse = []byte(`{"result":"OK","devices":[{"device":"cam1","subproto":"h264"},{"device":"cam2","subproto":"mjpeg"}]}`)

	var got []string
	code := sc.GetStreams(func(device, subproto string) bool {
		got = append(got, device+"/"+subproto)
		return true
	})
	if code != OK {
		t.Fatalf("expected OK, got %v", code)
	}
	if len(got) != 2 || got[0] != "cam1/h264" || got[1] != "cam2/mjpeg" {
		t.Fatalf("unexpected devices: %v", got)
	}
}

func TestSendMsgsRestoresOnProtocolError(t *testing.T) {
	ft := &fakeTransport{postResponse: []byte(`{"result":"OK","shash":"sid-123"}`)}
	sc := newTestSession(t, ft)
	sc.Authorize("alice", "secret", "cam1", nil)

	sc.Out.AddMsg("hello", "cam1", nil)

	ft.postResponse = []byte(`{"result":"BAD","code":3}`)
	if got := sc.SendMsgs(); got != Protocol {
		t.Fatalf("expected Protocol, got %v", got)
	}
	if !sc.Out.LockedWaiting() {
		t.Fatalf("the failed batch should have been restored to the outgoing pool")
	}
}

func TestSendMsgsRestoresOnNotConnected(t *testing.T) {
	ft := &fakeTransport{postResponse: []byte(`{"result":"OK","shash":"sid-123"}`)}
	sc := newTestSession(t, ft)
	sc.Authorize("alice", "secret", "cam1", nil)

	sc.Out.AddMsg("hello", "cam1", nil)
	ft.postErr = errors.New("submit failed")

	if got := sc.SendMsgs(); got != NotConnected {
		t.Fatalf("expected NotConnected, got %v", got)
	}
	if !sc.Out.LockedWaiting() {
		t.Fatalf("batch should be restored after a transport failure")
	}
}

func TestSendMsgsSucceedsAndClearsPool(t *testing.T) {
	ft := &fakeTransport{postResponse: []byte(`{"result":"OK","shash":"sid-123"}`)}
	sc := newTestSession(t, ft)
	sc.Authorize("alice", "secret", "cam1", nil)

	sc.Out.AddMsg("hello", "cam1", nil)
	ft.postResponse = []byte(`{"result":"OK"}`)

	if got := sc.SendMsgs(); got != OK {
		t.Fatalf("expected OK, got %v", got)
	}
	if sc.Out.LockedWaiting() {
		t.Fatalf("pool should be empty after a successful send")
	}
}

func TestSendMsgsNoopWhenPoolEmpty(t *testing.T) {
	ft := &fakeTransport{postResponse: []byte(`{"result":"OK","shash":"sid-123"}`)}
	sc := newTestSession(t, ft)
	sc.Authorize("alice", "secret", "cam1", nil)

	ft.lastPath = ""
	if got := sc.SendMsgs(); got != OK {
		t.Fatalf("expected OK when there's nothing queued, got %v", got)
	}
	if ft.lastPath != "" {
		t.Fatalf("no request should have been issued for an empty pool, got path %q", ft.lastPath)
	}
}

func TestGetMsgsRequiresPriorAuthorize(t *testing.T) {
	ft := &fakeTransport{}
	sc := newTestSession(t, ft)

	if got := sc.GetMsgs(); got != InvalidState {
		t.Fatalf("expected InvalidState before authorize sets last_stamp, got %v", got)
	}
}

func TestGetMsgsPopulatesIncomingPool(t *testing.T) {
	ft := &fakeTransport{postResponse: []byte(`{"result":"OK","shash":"sid-123"}`)}
	sc := newTestSession(t, ft)
	sc.Authorize("alice", "secret", "cam1", nil)

	ft.postResponse = []byte(`{"result":"OK","stamp":"s2","msgs":[{"device":"cam1","msg":"ping"}]}`)
	if got := sc.GetMsgs(); got != OK {
		t.Fatalf("expected OK, got %v", got)
	}

	var delivered []string
	sc.In.Proceed(func(device, kind string, params, mid json.RawMessage) bool {
		delivered = append(delivered, device+":"+kind)
		return true
	}, 10)
	if len(delivered) != 1 || delivered[0] != "cam1:ping" {
		t.Fatalf("unexpected incoming messages: %v", delivered)
	}
}

func TestDisconnectResetsSessionState(t *testing.T) {
	ft := &fakeTransport{postResponse: []byte(`{"result":"OK","shash":"sid-123"}`)}
	sc := newTestSession(t, ft)
	sc.Authorize("alice", "secret", "cam1", nil)

	sc.Disconnect()
	if sc.Connected() {
		t.Fatalf("expected Connected() to be false after Disconnect")
	}
	if sc.SID() != "" {
		t.Fatalf("expected sid to be cleared after Disconnect")
	}
}

func TestOutgoingProviderSynthesizesHeaderThenPayload(t *testing.T) {
	ft := &fakeTransport{}
	sc := NewSessionClient(ft, DefaultConfig())
	sc.Initialize(ModeOutgoing)

	payload := []byte("framebytes")
	sc.OutgoingPrepareFrame(payload)

	buf := make([]byte, wireutil.FrameHeaderSize+len(payload))
	n, sig := sc.outgoingProvider(buf)
	if sig != ProviderMore {
		t.Fatalf("expected ProviderMore for a full single-shot write, got %v", sig)
	}
	if n != len(buf) {
		t.Fatalf("expected the whole frame written at once, got %d/%d", n, len(buf))
	}
	if wireutil.Uint16LE(buf[0:2]) != wireutil.FrameMagic {
		t.Fatalf("missing frame magic in synthesized header")
	}
	if wireutil.Uint32LE(buf[2:6]) != uint32(len(payload)) {
		t.Fatalf("unexpected body size in synthesized header")
	}
	if string(buf[wireutil.FrameHeaderSize:]) != "framebytes" {
		t.Fatalf("unexpected payload bytes %q", buf[wireutil.FrameHeaderSize:])
	}

	// A further call once the frame is exhausted should defer rather
	// than report spurious progress.
	n, sig = sc.outgoingProvider(buf)
	if n != 0 || sig != ProviderDeferred {
		t.Fatalf("expected (0, ProviderDeferred) once exhausted, got (%d, %v)", n, sig)
	}
}

func TestOutgoingProviderSplitsAcrossSmallBuffers(t *testing.T) {
	ft := &fakeTransport{}
	sc := NewSessionClient(ft, DefaultConfig())
	sc.Initialize(ModeOutgoing)

	payload := []byte("0123456789")
	sc.OutgoingPrepareFrame(payload)

	var got []byte
	small := make([]byte, 4)
	for i := 0; i < 10; i++ {
		n, sig := sc.outgoingProvider(small)
		got = append(got, small[:n]...)
		if sig == ProviderDeferred {
			break
		}
	}

	want := make([]byte, wireutil.FrameHeaderSize)
	wireutil.PutFrameHeader(want, uint32(len(payload)))
	want = append(want, payload...)

	if string(got) != string(want) {
		t.Fatalf("reassembled provider output mismatch:\ngot  %x\nwant %x", got, want)
	}
}
