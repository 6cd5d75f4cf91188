package wcamclient

import "errors"

// Code is the error namespace surfaced to the application (spec §6, §7):
// the four H2PC-specific codes plus the platform-standard ones shared by
// every operation in this client. Mirrors the teacher's table-indexed
// ErrorCode pattern (errors.go's errParser slice keyed by code), but as
// application return codes instead of HTTP/2 wire-protocol codes.
type Code uint8

const (
	OK Code = iota
	EmptyResponse
	NotConnected
	Protocol
	Internal
	InvalidState
	InvalidArg
	InvalidResponse
	NoMem

	codeCount
)

var codeNames = [codeCount]string{
	OK:              "OK",
	EmptyResponse:   "EMPTY_RESPONSE",
	NotConnected:    "NOT_CONNECTED",
	Protocol:        "PROTOCOL",
	Internal:        "INTERNAL",
	InvalidState:    "INVALID_STATE",
	InvalidArg:      "INVALID_ARG",
	InvalidResponse: "INVALID_RESPONSE",
	NoMem:           "NO_MEM",
}

func (c Code) String() string {
	if c >= codeCount {
		return "UNKNOWN"
	}
	return codeNames[c]
}

// Error implements the error interface so Code can be returned (and
// compared with errors.Is/errors.As) directly from public operations.
func (c Code) Error() string {
	return c.String()
}

// sentinel errors for conditions that need a distinguishable error but
// aren't one of the Code values (parser and path-length failures).
var (
	errPathTooLong   = errors.New("wcamclient: encoded path exceeds configured max length")
	errFrameTooLarge = errors.New("wcamclient: frame body exceeds configured max frames size")
	errMalformedHdr  = errors.New("wcamclient: malformed frame header")
	errBufferFull    = errors.New("wcamclient: frame parse buffer is full")
)

// AsCode reports whether err is (or wraps) a Code, returning it and true
// if so.
func AsCode(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return 0, false
}
