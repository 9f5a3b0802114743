package msr605x

import "errors"

// Sentinel errors forming the closed failure taxonomy. Transport and
// protocol failures always wrap one of these; nothing in this package
// panics or aborts.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrOpenFailed       = errors.New("open failed")
	ErrWriteFailed      = errors.New("write failed")
	ErrTimeout          = errors.New("timeout waiting for device")
	ErrPayloadTooLarge  = errors.New("payload exceeds report size")
	ErrBusy             = errors.New("operation already in flight")
)

// Code classifies a Result for callers that switch on outcome instead
// of matching error values.
type Code int

const (
	CodeOK Code = iota
	CodeNotConnected
	CodeAlreadyConnected
	CodeOpenFailed
	CodeWriteFailed
	CodeTimeout
	CodePayloadTooLarge
	CodeDeviceReported
	CodeValidationFailed
	CodeBusy
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNotConnected:
		return "not connected"
	case CodeAlreadyConnected:
		return "already connected"
	case CodeOpenFailed:
		return "open failed"
	case CodeWriteFailed:
		return "write failed"
	case CodeTimeout:
		return "timeout"
	case CodePayloadTooLarge:
		return "payload too large"
	case CodeDeviceReported:
		return "device reported failure"
	case CodeValidationFailed:
		return "validation failed"
	case CodeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// codeForError maps a transport error into the closed taxonomy.
func codeForError(err error) Code {
	switch {
	case errors.Is(err, ErrNotConnected):
		return CodeNotConnected
	case errors.Is(err, ErrAlreadyConnected):
		return CodeAlreadyConnected
	case errors.Is(err, ErrOpenFailed):
		return CodeOpenFailed
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrPayloadTooLarge):
		return CodePayloadTooLarge
	case errors.Is(err, ErrBusy):
		return CodeBusy
	default:
		return CodeWriteFailed
	}
}
