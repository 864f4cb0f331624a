package errs

import "errors"

// Protocol and framing failures of the master service loop.
var (
	// ErrMalformedMessage: payload is not one of the six message types or lacks a required field.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrProtocolViolation: a master-only message arrived at the master, or an unknown uid was referenced.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrSizeMismatch: a receive consumed a different byte count than the probe reported.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrEncodingMismatch: an encoded reply is not the UTF-8 text it was built from.
	ErrEncodingMismatch = errors.New("encoding mismatch")
	// ErrPeerGone: the peer hung up or can no longer be written to.
	ErrPeerGone = errors.New("peer gone")
	// ErrTransportClosed: the transport was closed while the loop was waiting on it.
	ErrTransportClosed = errors.New("transport closed")
)

// Isolatable reports whether err is attributable to a single worker and
// can be handled by dropping that worker instead of stopping the master.
func Isolatable(err error) bool {
	return errors.Is(err, ErrMalformedMessage) ||
		errors.Is(err, ErrProtocolViolation) ||
		errors.Is(err, ErrPeerGone)
}

// Fatal reports whether err stops the master regardless of the failure policy.
func Fatal(err error) bool {
	return errors.Is(err, ErrSizeMismatch) ||
		errors.Is(err, ErrEncodingMismatch) ||
		errors.Is(err, ErrTransportClosed)
}
