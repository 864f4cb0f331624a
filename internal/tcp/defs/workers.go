package defs

// Error codes carried by error frames
const (
	ErrCodeBadMagic          = 1001
	ErrCodePartitionMismatch = 1002
	ErrCodeBadFrameKind      = 1003
	ErrCodeTooLarge          = 1004
)

// ErrorData represents data sent with error frames
type ErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
