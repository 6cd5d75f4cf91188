package wcamclient

import (
	"sync"
	"time"
)

// Mode is a bitmask gating which operations and pools are active on a
// SessionClient (spec §3).
type Mode uint8

const (
	ModeMessaging Mode = 1 << iota
	ModeOutgoing
	ModeIncoming
)

// Has reports whether all bits of want are set in m.
func (m Mode) Has(want Mode) bool {
	return m&want == want
}

// Config carries the compile-time tunables from the original's
// CONFIG_H2PC_* defines (spec §6) as an explicit, documented struct
// instead of package-level constants — the same shift dgrr-http2/settings.go
// makes from raw HTTP/2 SETTINGS values to a named, pooled Settings type.
type Config struct {
	// InitialRespBuffer is ResponseSink's starting capacity in bytes.
	InitialRespBuffer int
	// MaximumRespBuffer is the hard cap ResponseSink will grow to.
	MaximumRespBuffer int

	// MaxAllowedFrames is the configured frame-count limit for an
	// incoming FramePool. SessionClient does not read it: the FramePool
	// passed to IncomingLaunch keeps the limits given to NewFramePool.
	MaxAllowedFrames int
	// MaxAllowedFramesSize is the size of the FrameParser's working buffer
	// and so the ceiling it enforces on a single frame's header+body.
	// SessionClient does not apply it as a FramePool byte limit.
	MaxAllowedFramesSize int

	// InitialFrameBuffer is the configured starting capacity for a
	// FrameBuffer. Nothing in this package reads it: AcquireFrameBuffer
	// returns an empty buffer that grows in 1 KiB steps on write.
	InitialFrameBuffer int

	// MaxPathLength and MaxTokenLength bound the scratch buffers used to
	// build request paths (originally fixed-size C buffers sized
	// PATH_LENGTH/TOKEN_LENGTH; here they bound a growable buffer
	// instead of risking overflow).
	MaxPathLength  int
	MaxTokenLength int

	// IncomingStreamWaitTicks bounds SessionClient.IncomingWaitForFrame's pump
	// iterations (the original's hardcoded 20-tick budget — see
	// spec §9 Open Questions; kept configurable rather than silently
	// "fixed").
	IncomingStreamWaitTicks int

	// ResponseWaitTick and IncomingWaitTick are the cooperative-yield
	// durations between pump iterations (spec §5: "≈2-tick sleep for
	// response waits, 1-tick for incoming streaming").
	ResponseWaitTick time.Duration
	IncomingWaitTick time.Duration
}

// DefaultConfig returns the documented defaults from spec §6.
func DefaultConfig() Config {
	return Config{
		InitialRespBuffer:       4 * 1024,
		MaximumRespBuffer:       256 * 1024,
		MaxAllowedFrames:        32,
		MaxAllowedFramesSize:    2 * 1024 * 1024,
		InitialFrameBuffer:      32 * 1024,
		MaxPathLength:           256,
		MaxTokenLength:          128,
		IncomingStreamWaitTicks: 20,
		ResponseWaitTick:        20 * time.Millisecond,
		IncomingWaitTick:        10 * time.Millisecond,
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.InitialRespBuffer <= 0 {
		c.InitialRespBuffer = d.InitialRespBuffer
	}
	if c.MaximumRespBuffer <= 0 {
		c.MaximumRespBuffer = d.MaximumRespBuffer
	}
	if c.MaxAllowedFrames <= 0 {
		c.MaxAllowedFrames = d.MaxAllowedFrames
	}
	if c.MaxAllowedFramesSize <= 0 {
		c.MaxAllowedFramesSize = d.MaxAllowedFramesSize
	}
	if c.InitialFrameBuffer <= 0 {
		c.InitialFrameBuffer = d.InitialFrameBuffer
	}
	if c.MaxPathLength <= 0 {
		c.MaxPathLength = d.MaxPathLength
	}
	if c.MaxTokenLength <= 0 {
		c.MaxTokenLength = d.MaxTokenLength
	}
	if c.IncomingStreamWaitTicks <= 0 {
		c.IncomingStreamWaitTicks = d.IncomingStreamWaitTicks
	}
	if c.ResponseWaitTick <= 0 {
		c.ResponseWaitTick = d.ResponseWaitTick
	}
	if c.IncomingWaitTick <= 0 {
		c.IncomingWaitTick = d.IncomingWaitTick
	}
}

var configPool = sync.Pool{
	New: func() interface{} {
		cfg := DefaultConfig()
		return &cfg
	},
}

// AcquireConfig returns a pooled Config set to defaults, following the
// Acquire/Release convention used throughout the teacher (AcquireFrame,
// AcquireHeaders, AcquireSettings, ...).
func AcquireConfig() *Config {
	cfg := configPool.Get().(*Config)
	*cfg = DefaultConfig()
	return cfg
}

// ReleaseConfig returns cfg to the pool.
func ReleaseConfig(cfg *Config) {
	configPool.Put(cfg)
}
