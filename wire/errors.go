package wire

import "errors"

// Sentinel errors for the codec primitives (C1). Package packet returns
// these unchanged when a buffer runs out and uses its own sentinels for
// values that are invalid, so callers can distinguish "the buffer ran out"
// from "the buffer was fine but the value was invalid" with errors.Is.
var (
	// ErrBufferReadOverflow is returned when a read would cross the end
	// of the underlying slice.
	ErrBufferReadOverflow = errors.New("wire: buffer read overflow")
	// ErrBufferTooSmall is returned when a write would cross the end of
	// the underlying slice, and (together with ErrGuardTooLarge) when a
	// size-guard backfill does not fit its prefix.
	ErrBufferTooSmall = errors.New("wire: buffer too small")
	// ErrUTF8 is returned when a string primitive is not valid UTF-8.
	ErrUTF8 = errors.New("wire: invalid utf-8")
	// ErrNotEmpty is returned by a bounded sub-reader's AssertEmpty when
	// bytes remain unconsumed.
	ErrNotEmpty = errors.New("wire: sub-reader not fully consumed")
	// ErrGuardTooLarge is returned when a size-guarded writer is asked to
	// backfill a length that does not fit the prefix width (e.g. more
	// than 255 bytes written inside a u8 guard). Size guards wrap it
	// together with ErrBufferTooSmall, so errors.Is matches either.
	ErrGuardTooLarge = errors.New("wire: size guard payload exceeds prefix width")
)
