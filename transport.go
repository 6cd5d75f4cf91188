package wcamclient

// DataFlag mirrors the flag bits an HTTP/2 transport surfaces to a
// SessionClient callback alongside a chunk of data (spec §6, grounded on
// DATA_SEND_FRAME_DATA/DATA_RECV_FRAME_COMPLETE/DATA_RECV_RST_STREAM/
// DATA_RECV_GOAWAY in the original). The transport itself — handshake,
// TLS, frame multiplexing — is out of scope; Transport only names the
// seam a SessionClient is driven through.
type DataFlag uint8

const (
	// DataSendFrameData is reported to a PUT response handler once a
	// chunk of outbound body data has actually gone out on the wire; the
	// payload is the byte count sent, not echoed request data.
	DataSendFrameData DataFlag = iota + 1
	// DataRecvFrameComplete marks the end of one HTTP/2 DATA frame, not
	// the end of the logical response.
	DataRecvFrameComplete
	// DataRecvRstStream marks that the peer (or transport) has closed the
	// stream; this is the actual end-of-response signal.
	DataRecvRstStream
	// DataRecvGoAway signals connection-level teardown; every open
	// stream is considered dead.
	DataRecvGoAway
)

// ProviderSignal is the scheduling instruction a DataProvider returns
// alongside its byte count (spec §6's "return bytes-produced; set EOF
// flag on last chunk; return DEFERRED ...; return WOULDBLOCK ..."),
// collapsed into one result type instead of an out-parameter flags word
// plus magic negative return values.
type ProviderSignal uint8

const (
	// ProviderMore indicates the provider produced n bytes and has more
	// to send on a later call.
	ProviderMore ProviderSignal = iota
	// ProviderEOF indicates n bytes were produced and this was the last
	// chunk of the body.
	ProviderEOF
	// ProviderDeferred indicates no bytes are available right now and
	// the transport should park this stream's data provider until
	// ResumeData is called (NGHTTP2_ERR_DEFERRED in the original).
	ProviderDeferred
	// ProviderWouldBlock indicates the provider has nothing to add but
	// the stream should stay open and the handler loop should go
	// quiescent without being parked (NGHTTP2_ERR_WOULDBLOCK).
	ProviderWouldBlock
)

// DataProvider fills buf with up to len(buf) bytes of request body and
// reports how to proceed. Grounded on send_post_data/send_put_data.
type DataProvider func(buf []byte) (n int, signal ProviderSignal)

// OnDataFunc receives response chunks for a stream along with the flags
// describing what just happened. Grounded on handle_get_response/
// handle_frame_response/handle_response.
type OnDataFunc func(data []byte, flags DataFlag)

// RstStreamCode identifies why a stream is being reset (spec's
// submit_rst_stream(stream_id, code)).
type RstStreamCode uint32

// RstStreamRefused is the only reset code this client issues itself —
// used by incoming-stream Stop to tell the server it's no longer
// consuming the GET stream (spec §4.6's inc_stop).
const RstStreamRefused RstStreamCode = 7

// Transport is the HTTP/2 connection a SessionClient drives (spec §6).
// An implementation owns the TCP/TLS handshake, HPACK, and frame
// multiplexing; none of that is this module's concern — it only needs to
// satisfy this contract.
type Transport interface {
	// Connect performs the TCP/TLS handshake to server.
	Connect(server string) error

	// DoGet issues a GET request to path; response chunks are delivered
	// to onData. Returns the stream id, or a negative value / error on
	// failure to submit the request.
	DoGet(path string, onData OnDataFunc) (streamID int32, err error)

	// DoPost issues a POST request to path with a known content length,
	// streaming the body from provider and delivering the response to
	// onData.
	DoPost(path string, contentLength int, provider DataProvider, onData OnDataFunc) (streamID int32, err error)

	// DoPut issues a PUT request to path, streaming the body from
	// provider (which may be DEFERRED repeatedly across many logical
	// frames) and delivering send/response events to onData.
	DoPut(path string, provider DataProvider, onData OnDataFunc) (streamID int32, err error)

	// SessionRecv/SessionSend perform one pass of incoming/outgoing I/O
	// for the whole connection (sh2lib_execute's send+recv half in the
	// original is one call; this module keeps them as one pump step by
	// calling both every iteration of the wait loops in session.go).
	SessionRecv() error
	SessionSend() error

	// ResumeData wakes a data provider previously left ProviderDeferred.
	ResumeData(streamID int32)

	// SubmitRstStream resets an open stream with the given code.
	SubmitRstStream(streamID int32, code RstStreamCode)

	// Connected reports whether the underlying connection is still
	// alive.
	Connected() bool

	// Free releases the transport handle. Called once, from Disconnect.
	Free()
}
