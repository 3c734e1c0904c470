package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer is a cursor over a mutable byte slice. Every primitive that would
// write past the end of buf returns ErrBufferTooSmall.
type Writer struct {
	buf []byte
	idx int
}

// NewWriter wraps buf for sequential writes starting at offset 0.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Bytes returns the bytes written so far.
func (w *Writer) Bytes() []byte { return w.buf[:w.idx] }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.idx }

// Reset rewinds the cursor to the start of the buffer.
func (w *Writer) Reset() { w.idx = 0 }

func (w *Writer) grow(n int) (int, error) {
	if w.idx+n > len(w.buf) {
		return 0, fmt.Errorf("%w: tried to write %d bytes at offset %d of %d", ErrBufferTooSmall, n, w.idx, len(w.buf))
	}
	old := w.idx
	w.idx += n
	return old, nil
}

// WriteAll copies vals into the buffer.
func (w *Writer) WriteAll(vals []byte) error {
	old, err := w.grow(len(vals))
	if err != nil {
		return err
	}
	copy(w.buf[old:w.idx], vals)
	return nil
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) error {
	old, err := w.grow(1)
	if err != nil {
		return err
	}
	w.buf[old] = v
	return nil
}

// WriteU16 writes a big-endian uint16.
func (w *Writer) WriteU16(v uint16) error {
	old, err := w.grow(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(w.buf[old:], v)
	return nil
}

// WriteU32 writes a big-endian uint32.
func (w *Writer) WriteU32(v uint32) error {
	old, err := w.grow(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(w.buf[old:], v)
	return nil
}

// WriteU64 writes a big-endian uint64.
func (w *Writer) WriteU64(v uint64) error {
	old, err := w.grow(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(w.buf[old:], v)
	return nil
}

// WriteF32 writes a big-endian IEEE-754 float32.
func (w *Writer) WriteF32(v float32) error {
	return w.WriteU32(math.Float32bits(v))
}

// WriteShortStr writes a u8-length-prefixed UTF-8 string. Strings of 256
// bytes or more fail with ErrGuardTooLarge.
func (w *Writer) WriteShortStr(s string) error {
	if len(s) > 255 {
		return fmt.Errorf("%w: short string of %d bytes", ErrGuardTooLarge, len(s))
	}
	if err := w.WriteU8(uint8(len(s))); err != nil {
		return err
	}
	return w.WriteAll([]byte(s))
}

// WriteShortU8Arr writes a u8-length-prefixed byte array.
func (w *Writer) WriteShortU8Arr(b []byte) error {
	if len(b) > 255 {
		return fmt.Errorf("%w: short array of %d bytes", ErrGuardTooLarge, len(b))
	}
	if err := w.WriteU8(uint8(len(b))); err != nil {
		return err
	}
	return w.WriteAll(b)
}

// SizeGuard8 reserves a u8 length prefix at the writer's current position
// and returns a closure that backfills it with however many bytes were
// written in between. This is the standard mechanism for writing every
// length-prefixed tag: callers write the prefix reservation, write the
// payload, then call the returned finish function.
//
//	finish, err := w.SizeGuard8()
//	... write payload into w ...
//	if err := finish(); err != nil { ... }
func (w *Writer) SizeGuard8() (func() error, error) {
	prefixAt := w.idx
	if err := w.WriteU8(0); err != nil {
		return nil, err
	}
	payloadStart := w.idx
	return func() error {
		n := w.idx - payloadStart
		if n > 255 {
			return fmt.Errorf("%w (%w): %d bytes written into u8 guard", ErrGuardTooLarge, ErrBufferTooSmall, n)
		}
		w.buf[prefixAt] = uint8(n)
		return nil
	}, nil
}

// SizeGuard16 is the u16-prefixed analogue of SizeGuard8, used for TCP
// auxiliary frames.
func (w *Writer) SizeGuard16() (func() error, error) {
	prefixAt := w.idx
	if err := w.WriteU16(0); err != nil {
		return nil, err
	}
	payloadStart := w.idx
	return func() error {
		n := w.idx - payloadStart
		if n > 0xFFFF {
			return fmt.Errorf("%w (%w): %d bytes written into u16 guard", ErrGuardTooLarge, ErrBufferTooSmall, n)
		}
		binary.BigEndian.PutUint16(w.buf[prefixAt:], uint16(n))
		return nil
	}, nil
}
