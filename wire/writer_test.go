package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterPrimitives(t *testing.T) {
	buf := make([]byte, 32)
	w := NewWriter(buf)

	require.NoError(t, w.WriteU8(0x01))
	require.NoError(t, w.WriteU16(0x0203))
	require.NoError(t, w.WriteU32(0x04050607))
	require.NoError(t, w.WriteU64(0x08090A0B0C0D0E0F))

	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}
	require.Equal(t, want, w.Bytes())
}

func TestWriterTooSmall(t *testing.T) {
	w := NewWriter(make([]byte, 1))
	require.ErrorIs(t, w.WriteU16(1), ErrBufferTooSmall)
}

func TestSizeGuard8(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)

	finish, err := w.SizeGuard8()
	require.NoError(t, err)
	require.NoError(t, w.WriteU8(0x0C))
	require.NoError(t, w.WriteU16(0xBEEF))
	require.NoError(t, finish())

	require.Equal(t, []byte{0x03, 0x0C, 0xBE, 0xEF}, w.Bytes())
}

func TestSizeGuard8RejectsOversize(t *testing.T) {
	buf := make([]byte, 512)
	w := NewWriter(buf)

	finish, err := w.SizeGuard8()
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(bytes.Repeat([]byte{0xAA}, 256)))
	require.ErrorIs(t, finish(), ErrGuardTooLarge)
}

func TestSizeGuard16(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)

	finish, err := w.SizeGuard16()
	require.NoError(t, err)
	require.NoError(t, w.WriteAll([]byte{1, 2, 3}))
	require.NoError(t, finish())

	require.Equal(t, []byte{0x00, 0x03, 1, 2, 3}, w.Bytes())
}

func TestWriteShortStrLimit(t *testing.T) {
	w := NewWriter(make([]byte, 512))
	require.ErrorIs(t, w.WriteShortStr(string(bytes.Repeat([]byte{'a'}, 256))), ErrGuardTooLarge)
	require.NoError(t, w.WriteShortStr("ok"))
	require.Equal(t, []byte{0x02, 'o', 'k'}, w.Bytes())
}
