package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for the wire package.
var (
	// ErrProtocol matches every *ProtocolError.
	ErrProtocol = errors.New("protocol error")

	// ErrBadMagic indicates the frame does not start with the family's magic number.
	ErrBadMagic = errors.New("bad magic number")

	// ErrTruncated indicates fewer bytes were available than the frame requires.
	ErrTruncated = errors.New("truncated frame")

	// ErrLengthMismatch indicates the declared length disagrees with the frame contents.
	ErrLengthMismatch = errors.New("frame length mismatch")

	// ErrTrailingBytes indicates bytes remain after the declared frame end.
	ErrTrailingBytes = errors.New("trailing bytes after frame")

	// ErrTooLarge indicates a frame exceeds the maximum encodable size.
	ErrTooLarge = errors.New("frame too large")

	// ErrUnknownOpCode is returned when encoding an op-code the family does not define.
	ErrUnknownOpCode = errors.New("unknown op-code")

	// ErrUnknownOptions is returned when encoding option bits outside the family vocabulary.
	ErrUnknownOptions = errors.New("unknown option bits")
)

// ErrorKind classifies a ProtocolError.
type ErrorKind int

const (
	// KindBadMagic is a magic number mismatch.
	KindBadMagic ErrorKind = iota
	// KindTruncated is a short buffer or stream.
	KindTruncated
	// KindLengthMismatch is an inconsistent total_length or argument counts.
	KindLengthMismatch
	// KindTrailingBytes is extra data after the frame.
	KindTrailingBytes
	// KindTooLarge is a frame above the size limit.
	KindTooLarge
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindBadMagic:
		return "bad-magic"
	case KindTruncated:
		return "truncated"
	case KindLengthMismatch:
		return "length-mismatch"
	case KindTrailingBytes:
		return "trailing-bytes"
	case KindTooLarge:
		return "too-large"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindBadMagic:
		return ErrBadMagic
	case KindTruncated:
		return ErrTruncated
	case KindLengthMismatch:
		return ErrLengthMismatch
	case KindTrailingBytes:
		return ErrTrailingBytes
	case KindTooLarge:
		return ErrTooLarge
	default:
		return ErrProtocol
	}
}

// ProtocolError describes a framing failure.
type ProtocolError struct {
	// Family is the name of the family whose codec failed.
	Family string

	// Kind identifies the failure.
	Kind ErrorKind

	// Detail is a human-readable description.
	Detail string
}

// NewProtocolError creates a ProtocolError. It is used by decoders of other
// framings that share the error taxonomy, such as inbound event payloads.
func NewProtocolError(family string, kind ErrorKind, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Family: family,
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s protocol: %s: %s", e.Family, e.Kind, e.Detail)
}

// Is matches ErrProtocol and the sentinel for the error's kind.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol || target == e.Kind.sentinel()
}
