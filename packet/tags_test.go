package packet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frcnet/robotcom/wire"
)

type capturingAcceptor struct {
	joysticks [6]*Joystick
	countdown *float32
	timeData  TimeData
}

func (a *capturingAcceptor) AcceptJoystick(i int, j *Joystick) {
	if i >= 0 && i < 6 {
		a.joysticks[i] = j
	}
}
func (a *capturingAcceptor) AcceptCountdown(c *float32) { a.countdown = c }
func (a *capturingAcceptor) AcceptTimeData(t TimeData)  { a.timeData = t }

func TestJoystickRoundTrip(t *testing.T) {
	var j Joystick
	j.SetAxes([]int8{-128, 0, 64, 127})
	j.SetButtons(10, 0b1010101010)
	j.SetPovs([]uint16{0, PovNone})

	buf := make([]byte, 64)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteJoystickTag(w, &j))

	var acc capturingAcceptor
	require.NoError(t, ReadInboundTags(wire.NewReader(w.Bytes()), &acc))

	out := acc.joysticks[0]
	require.NotNil(t, out)
	require.Equal(t, 4, out.NumAxes())
	for i, want := range []int8{-128, 0, 64, 127} {
		got, ok := out.Axis(i)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	require.Equal(t, 10, out.NumButtons())
	for i := 0; i < 10; i++ {
		require.Equal(t, i%2 == 1, out.Button(i), "button %d", i)
	}

	require.Equal(t, 2, out.NumPovs())
	v, ok := out.Pov(0)
	require.True(t, ok)
	require.Equal(t, uint16(0), v)
	v, ok = out.Pov(1)
	require.True(t, ok)
	require.Equal(t, PovNone, v)

	// the remaining slots were explicitly reset to absent
	for i := 1; i < 6; i++ {
		require.Nil(t, acc.joysticks[i])
	}
}

func TestSevenJoysticksFails(t *testing.T) {
	var j Joystick
	j.SetAxes([]int8{1})

	buf := make([]byte, 256)
	w := wire.NewWriter(buf)
	for i := 0; i < 7; i++ {
		require.NoError(t, WriteJoystickTag(w, &j))
	}

	var acc capturingAcceptor
	err := ReadInboundTags(wire.NewReader(w.Bytes()), &acc)
	require.ErrorIs(t, err, ErrTooManyJoysticks)
}

func TestCountdownTag(t *testing.T) {
	buf := make([]byte, 16)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteCountdownTag(w, 15.5))

	var acc capturingAcceptor
	require.NoError(t, ReadInboundTags(wire.NewReader(w.Bytes()), &acc))
	require.NotNil(t, acc.countdown)
	require.Equal(t, float32(15.5), *acc.countdown)

	// a packet with no tags reports countdown absent
	acc = capturingAcceptor{}
	require.NoError(t, ReadInboundTags(wire.NewReader(nil), &acc))
	require.Nil(t, acc.countdown)
}

func TestTimeAndTimezoneTags(t *testing.T) {
	when := time.Date(2024, time.March, 9, 13, 37, 42, 123000*1000, time.UTC)

	buf := make([]byte, 64)
	w := wire.NewWriter(buf)
	require.NoError(t, WriteTimeTag(w, when))
	require.NoError(t, WriteTimezoneTag(w, "America/New_York"))

	var acc capturingAcceptor
	require.NoError(t, ReadInboundTags(wire.NewReader(w.Bytes()), &acc))
	require.True(t, acc.timeData.HasWhen)
	require.True(t, acc.timeData.When.Equal(when))
	require.True(t, acc.timeData.HasZone)
	require.Equal(t, "America/New_York", acc.timeData.Zone)
}

func TestInvalidTagID(t *testing.T) {
	// length=2, tag=0x7F, one payload byte
	r := wire.NewReader([]byte{0x02, 0x7F, 0x00})
	var acc capturingAcceptor
	require.ErrorIs(t, ReadInboundTags(r, &acc), ErrInvalidTag)
}

func TestTagLengthPastFrame(t *testing.T) {
	// declared tag length 0x20 but only 2 bytes follow
	r := wire.NewReader([]byte{0x20, 0x07, 0x00})
	var acc capturingAcceptor
	require.ErrorIs(t, ReadInboundTags(r, &acc), wire.ErrBufferReadOverflow)
}

func TestTagTrailingBytesRejected(t *testing.T) {
	// countdown tag with one extra byte inside its bounded region
	buf := []byte{0x06, 0x07, 0x3F, 0x80, 0x00, 0x00, 0xAA}
	var acc capturingAcceptor
	require.ErrorIs(t, ReadInboundTags(wire.NewReader(buf), &acc), wire.ErrNotEmpty)
}

func TestInvalidTimeData(t *testing.T) {
	buf := make([]byte, 16)
	w := wire.NewWriter(buf)
	// µs then sec=61 (invalid), rest zero
	require.NoError(t, w.WriteU32(0))
	require.NoError(t, w.WriteAll([]byte{61, 0, 0, 1, 0, 0}))
	_, err := ReadTimeBody(wire.NewReader(w.Bytes()))
	require.ErrorIs(t, err, ErrInvalidTimeData)
}
