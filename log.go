package wcamclient

import (
	"log"
	"os"
)

// logger is the package-wide log sink. The teacher logs straight to the
// standard `log` package at call sites (client.go's readLoop/writeLoop,
// server.go) rather than threading an interface through every function;
// this module does the same, with SetLogger as the only seam for
// redirecting output — logging itself, SNTP time, and configuration
// loading are all out of scope per spec §1 beyond this minimal sink.
var logger = log.New(os.Stderr, "wcamclient: ", log.LstdFlags)

// SetLogger replaces the package's log sink. Passing nil silences logging
// (FrameParser and SessionClient both check for a nil logger before
// writing). A FrameParser keeps the sink that was current when it was
// created, so SetLogger does not affect parsers that already exist.
func SetLogger(l *log.Logger) {
	logger = l
}
