// Package wire implements the binary framing shared by every command sent to
// the display server and the camera server.
//
// # Frame Layout
//
// All fixed-width fields are 32-bit unsigned integers in the byte order the
// Codec was configured with:
//
//	magic | total_length | op_code | options | request_id |
//	int_arg_count | char_arg_count |
//	int_args...                      (int_arg_count words)
//	char_arg_lengths...              (char_arg_count words)
//	char_arg_bytes...                (concatenated, no padding)
//
// total_length is the exact encoded size of the frame, header included.
//
// # Families
//
// A Family bundles a magic number, the op-codes it understands and the names
// of its option bits. The tablet family drives document and page commands;
// the camera family shares the framing but uses its own magic number and
// option vocabulary. One Codec serves exactly one family.
//
// # Errors
//
// Decoding never returns a partially valid Message. Every failure is a
// *ProtocolError whose Kind identifies the problem, and errors.Is matches it
// against ErrProtocol and the per-kind sentinels (ErrBadMagic, ErrTruncated,
// ErrLengthMismatch, ErrTrailingBytes, ErrTooLarge).
package wire
