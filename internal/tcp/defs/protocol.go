package defs

import "time"

// Protocol constants
const (
	MagicNumber uint16 = 0xCAFE

	// Header layout: magic(2) | kind(1) | reserved(1) | partition(4) | length(4)
	HeaderSize = 12

	// Frame kinds
	FrameData  byte = 0x01
	FrameError byte = 0x07

	// DefaultPartition is the partition key used when none is configured.
	DefaultPartition uint32 = 56789

	// MaxPayloadSize bounds a single frame payload.
	MaxPayloadSize = 64 << 20

	// Configuration constants
	InitialRegistrationTimeout = 30 * time.Second
	ConnectionRetryDelay       = 1 * time.Second
	InboxSize                  = 1024
)
