package packet

import (
	"time"

	"github.com/frcnet/robotcom/wire"
)

// Tag ids for the repeated elements appended to core packets.
const (
	TagRumble         uint8 = 0x01
	TagDiskUsage      uint8 = 0x04
	TagCPUUsage       uint8 = 0x05
	TagRAMUsage       uint8 = 0x06
	TagCountdown      uint8 = 0x07
	TagPDPPortReport  uint8 = 0x08
	TagPDPPowerReport uint8 = 0x09
	TagJoystick       uint8 = 0x0C
	TagCANUsage       uint8 = 0x0E
	TagTime           uint8 = 0x0F
	TagTimezone       uint8 = 0x10
)

// InboundTagAcceptor receives tags parsed out of a driver→robot packet,
// one call per tag family, after the core header has already been
// decoded. A malformed tag stops the walk: calls for the tags before it
// have already been made, while the end-of-walk calls (countdown, absent
// joystick slots, time data) are made only when every tag parses.
type InboundTagAcceptor interface {
	AcceptJoystick(index int, j *Joystick)
	AcceptCountdown(countdown *float32)
	AcceptTimeData(t TimeData)
}

// ReadInboundTags walks every tag in r (positioned right after the 6-byte
// core header) and dispatches it to acceptor. A parse error on an
// individual tag body is returned immediately; the caller decides whether
// to keep processing the rest of the packet.
func ReadInboundTags(r *wire.Reader, acceptor InboundTagAcceptor) error {
	joystickIndex := 0
	var countdown *float32
	var td TimeData

	for r.HasMore() {
		sub, err := r.ReadKnownLengthU8()
		if err != nil {
			return err
		}
		if sub.Len() == 0 {
			continue
		}
		tag, err := sub.ReadU8()
		if err != nil {
			return err
		}
		switch tag {
		case TagCountdown:
			v, err := sub.ReadF32()
			if err != nil {
				return err
			}
			countdown = &v
		case TagTime:
			when, err := ReadTimeBody(sub)
			if err != nil {
				return err
			}
			td.UpdateTime(when)
		case TagTimezone:
			zone, err := ReadTimezoneBody(sub)
			if err != nil {
				return err
			}
			td.UpdateZone(zone)
		case TagJoystick:
			if joystickIndex >= 6 {
				return ErrTooManyJoysticks
			}
			j, err := ReadJoystickBody(sub)
			if err != nil {
				return err
			}
			acceptor.AcceptJoystick(joystickIndex, j)
			joystickIndex++
		default:
			return ErrInvalidTag
		}
		if err := sub.AssertEmpty(); err != nil {
			return err
		}
	}

	acceptor.AcceptCountdown(countdown)
	for i := joystickIndex; i < 6; i++ {
		acceptor.AcceptJoystick(i, nil)
	}
	acceptor.AcceptTimeData(td)
	return nil
}

// writeTag runs fn inside a u8 size guard whose backfilled length covers
// the tag id byte plus whatever fn writes: the length_of_rest prefix
// counts the tag id as well as the payload.
func writeTag(w *wire.Writer, id uint8, fn func(*wire.Writer) error) error {
	finish, err := w.SizeGuard8()
	if err != nil {
		return err
	}
	if err := w.WriteU8(id); err != nil {
		return err
	}
	if err := fn(w); err != nil {
		return err
	}
	return finish()
}

// WriteJoystickTag writes a complete tag 0x0C (length guard + id + body).
func WriteJoystickTag(w *wire.Writer, j *Joystick) error {
	return writeTag(w, TagJoystick, j.WriteBody)
}

// WriteCountdownTag writes a complete tag 0x07.
func WriteCountdownTag(w *wire.Writer, countdown float32) error {
	return writeTag(w, TagCountdown, func(w *wire.Writer) error { return w.WriteF32(countdown) })
}

// WriteTimeTag writes a complete tag 0x0F. Used by the driver-station
// side, which is the sender of time/timezone tags.
func WriteTimeTag(w *wire.Writer, when time.Time) error {
	return writeTag(w, TagTime, func(w *wire.Writer) error { return WriteTimeBody(w, when) })
}

// WriteTimezoneTag writes a complete tag 0x10.
func WriteTimezoneTag(w *wire.Writer, zone string) error {
	return writeTag(w, TagTimezone, func(w *wire.Writer) error { return WriteTimezoneBody(w, zone) })
}
