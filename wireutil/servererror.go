package wireutil

// ServerErrorCode is the server-side error taxonomy propagated verbatim in
// JSON-RPC "code" fields (spec §6). Index 0 is "no error" (result == "OK");
// the rest describe why result == "BAD".
type ServerErrorCode uint8

const (
	ServerNoError ServerErrorCode = iota
	ServerUnspecified
	ServerInternalUnknownError
	ServerDatabaseFail
	ServerJSONParserFail
	ServerJSONFail
	ServerNoSuchSession
	ServerNoSuchUser
	ServerNoDevicesOnline
	ServerNoSuchRecord
	ServerNoDataReturned
	ServerEmptyRequest
	ServerMalformedRequest

	serverErrorCodeCount
)

var serverErrorNames = [serverErrorCodeCount]string{
	ServerNoError:              "NO_ERROR",
	ServerUnspecified:          "UNSPECIFIED",
	ServerInternalUnknownError: "INTERNAL_UNKNOWN_ERROR",
	ServerDatabaseFail:         "DATABASE_FAIL",
	ServerJSONParserFail:       "JSON_PARSER_FAIL",
	ServerJSONFail:             "JSON_FAIL",
	ServerNoSuchSession:        "NO_SUCH_SESSION",
	ServerNoSuchUser:           "NO_SUCH_USER",
	ServerNoDevicesOnline:      "NO_DEVICES_ONLINE",
	ServerNoSuchRecord:         "NO_SUCH_RECORD",
	ServerNoDataReturned:       "NO_DATA_RETURNED",
	ServerEmptyRequest:         "EMPTY_REQUEST",
	ServerMalformedRequest:     "MALFORMED_REQUEST",
}

// String returns the taxonomy name for code, or "UNSPECIFIED" if code is
// outside the known range (matching the original's fallback to
// REST_ERR_UNSPECIFIED on an unrecognized/missing code).
func (c ServerErrorCode) String() string {
	if int(c) < 0 || c >= serverErrorCodeCount {
		return serverErrorNames[ServerUnspecified]
	}
	return serverErrorNames[c]
}
