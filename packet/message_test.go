package packet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frcnet/robotcom/wire"
)

func TestControllerInfoRoundTrip(t *testing.T) {
	in := ControllerInfo{
		ID:        2,
		IsXbox:    true,
		IsPresent: true,
		Name:      "Gamepad F310",
		Axes:      []uint8{0, 1, 2, 5},
		Buttons:   12,
		Povs:      1,
	}

	buf := make([]byte, 128)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteControllerInfo(w, in))

	r := wire.NewReader(w.Bytes())
	tag, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, TCPTagControllerInfo, tag)

	out, err := ReadControllerInfo(r)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestControllerInfoAbsent(t *testing.T) {
	in := ControllerInfo{ID: 4, IsPresent: false}

	buf := make([]byte, 16)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteControllerInfo(w, in))
	require.Equal(t, 4, w.Len())

	r := wire.NewReader(w.Bytes()[1:])
	out, err := ReadControllerInfo(r)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.False(t, r.HasMore())
}

func TestMatchInfoRoundTrip(t *testing.T) {
	in := MatchInfo{
		EventName:    "NECMP",
		Type:         MatchQual,
		MatchNumber:  42,
		ReplayNumber: 1,
	}

	buf := make([]byte, 64)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteMatchInfo(w, in))

	out, err := ReadMatchInfo(wire.NewReader(w.Bytes()[1:]))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestMatchInfoRejectsBadType(t *testing.T) {
	buf := make([]byte, 16)
	w := wire.NewWriter(buf)
	require.NoError(t, w.WriteShortStr("ev"))
	require.NoError(t, w.WriteU8(4))
	require.NoError(t, w.WriteU16(1))
	require.NoError(t, w.WriteU8(0))
	_, err := ReadMatchInfo(wire.NewReader(w.Bytes()))
	require.Error(t, err)
}

func TestGameDataRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteGameData(w, "LRL"))

	gd, err := ReadGameData(wire.NewReader(w.Bytes()[1:]))
	require.NoError(t, err)
	require.Equal(t, "LRL", gd)
}

func TestPlainMessageRoundTrip(t *testing.T) {
	in := PlainMessage{MsSinceEpoch: 123456, Number: 7, Text: "hello robot"}

	buf := make([]byte, 64)
	w := wire.NewWriter(buf)
	require.NoError(t, WritePlainMessage(w, in))
	require.Equal(t, MsgKindPlain, w.Bytes()[0])

	out, err := ReadPlainMessageBody(wire.NewReader(w.Bytes()[1:]))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestTypedMessageRoundTrip(t *testing.T) {
	in := TypedMessage{MsSinceEpoch: 99, Number: 3, Code: -44, Text: "motor fault"}
	require.True(t, in.IsError())

	buf := make([]byte, 64)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteTypedMessage(w, in))
	require.Equal(t, MsgKindTyped, w.Bytes()[0])

	out, err := ReadTypedMessageBody(wire.NewReader(w.Bytes()[1:]))
	require.NoError(t, err)
	require.Equal(t, in, out)

	warn := TypedMessage{Code: 10}
	require.False(t, warn.IsError())
}

func TestVersionInfoRoundTrip(t *testing.T) {
	in := VersionInfoMessage{Kind: VersionInfoImage, Version: "2024_v3.2"}

	buf := make([]byte, 64)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteVersionInfoMessage(w, in))
	require.Equal(t, MsgKindVersionInfo, w.Bytes()[0])

	out, err := ReadVersionInfoBody(wire.NewReader(w.Bytes()[1:]))
	require.NoError(t, err)
	require.Equal(t, in, out)

	empty := VersionInfoMessage{Kind: VersionInfoEmpty}
	w = wire.NewWriter(buf)
	require.NoError(t, WriteVersionInfoMessage(w, empty))
	out, err = ReadVersionInfoBody(wire.NewReader(w.Bytes()[1:]))
	require.NoError(t, err)
	require.Equal(t, empty, out)
}

func TestZeroCodeMessage(t *testing.T) {
	buf := make([]byte, 32)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteZeroCodeMessage(w, ZeroCodeMessage{Text: "boot"}))
	require.Equal(t, MsgKindZeroCode, w.Bytes()[0])
	require.Equal(t, "boot", string(w.Bytes()[1:]))
}
