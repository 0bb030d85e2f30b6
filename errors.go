package framepump

import "errors"

// Sentinel errors.
var (
	// ErrClosed is returned by operations on a closed Pump.
	ErrClosed = errors.New("framepump: pump closed")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("framepump: invalid config")

	// ErrNilRecorder is returned by New without a recorder.
	ErrNilRecorder = errors.New("framepump: nil recorder")
)
