package packet

import (
	"fmt"

	"github.com/frcnet/robotcom/wire"
)

// TCP auxiliary inbound control tag ids. This is a
// separate namespace from the UDP tag ids in tags.go.
const (
	TCPTagControllerInfo uint8 = 0x02
	TCPTagMatchInfo      uint8 = 0x07
	TCPTagGameData       uint8 = 0x0E
)

// ControllerInfo is the decoded payload of TCP tag 0x02.
type ControllerInfo struct {
	ID        uint8
	IsXbox    bool
	IsPresent bool
	Name      string
	Axes      []uint8
	Buttons   uint8
	Povs      uint8
}

// ReadControllerInfo decodes a TCP tag 0x02 body (the reader is already
// positioned past the tag id byte).
func ReadControllerInfo(r *wire.Reader) (ControllerInfo, error) {
	var c ControllerInfo
	id, err := r.ReadU8()
	if err != nil {
		return c, err
	}
	isXbox, err := r.ReadU8()
	if err != nil {
		return c, err
	}
	isPresent, err := r.ReadU8()
	if err != nil {
		return c, err
	}
	c.ID = id
	c.IsXbox = isXbox != 0
	c.IsPresent = isPresent != 0
	if !c.IsPresent {
		return c, nil
	}
	name, err := r.ReadShortStr()
	if err != nil {
		return c, err
	}
	axes, err := r.ReadShortU8Arr()
	if err != nil {
		return c, err
	}
	buttons, err := r.ReadU8()
	if err != nil {
		return c, err
	}
	povs, err := r.ReadU8()
	if err != nil {
		return c, err
	}
	c.Name = name
	c.Axes = append([]uint8(nil), axes...)
	c.Buttons = buttons
	c.Povs = povs
	return c, nil
}

// WriteControllerInfo writes a TCP tag 0x02 body including the tag byte,
// used by the driver-station side to describe an attached controller.
func WriteControllerInfo(w *wire.Writer, c ControllerInfo) error {
	if err := w.WriteU8(TCPTagControllerInfo); err != nil {
		return err
	}
	if err := w.WriteU8(c.ID); err != nil {
		return err
	}
	if err := w.WriteU8(boolByte(c.IsXbox)); err != nil {
		return err
	}
	if err := w.WriteU8(boolByte(c.IsPresent)); err != nil {
		return err
	}
	if !c.IsPresent {
		return nil
	}
	if err := w.WriteShortStr(c.Name); err != nil {
		return err
	}
	if err := w.WriteShortU8Arr(c.Axes); err != nil {
		return err
	}
	if err := w.WriteU8(c.Buttons); err != nil {
		return err
	}
	return w.WriteU8(c.Povs)
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// MatchType is the FMS match type carried in TCP tag 0x07.
type MatchType uint8

// MatchType values.
const (
	MatchNone MatchType = iota
	MatchPractice
	MatchQual
	MatchElim
)

// MatchInfo is the decoded payload of TCP tag 0x07.
type MatchInfo struct {
	EventName    string
	Type         MatchType
	MatchNumber  uint16
	ReplayNumber uint8
}

// ReadMatchInfo decodes a TCP tag 0x07 body.
func ReadMatchInfo(r *wire.Reader) (MatchInfo, error) {
	var m MatchInfo
	name, err := r.ReadShortStr()
	if err != nil {
		return m, err
	}
	mtype, err := r.ReadU8()
	if err != nil {
		return m, err
	}
	if mtype > uint8(MatchElim) {
		return m, fmt.Errorf("packet: invalid match_type %d", mtype)
	}
	num, err := r.ReadU16()
	if err != nil {
		return m, err
	}
	replay, err := r.ReadU8()
	if err != nil {
		return m, err
	}
	m.EventName = name
	m.Type = MatchType(mtype)
	m.MatchNumber = num
	m.ReplayNumber = replay
	return m, nil
}

// WriteMatchInfo writes a TCP tag 0x07 body including the tag byte.
func WriteMatchInfo(w *wire.Writer, m MatchInfo) error {
	if err := w.WriteU8(TCPTagMatchInfo); err != nil {
		return err
	}
	if err := w.WriteShortStr(m.EventName); err != nil {
		return err
	}
	if err := w.WriteU8(uint8(m.Type)); err != nil {
		return err
	}
	if err := w.WriteU16(m.MatchNumber); err != nil {
		return err
	}
	return w.WriteU8(m.ReplayNumber)
}

// ReadGameData decodes a TCP tag 0x0E body: the remainder of the frame as
// UTF-8.
func ReadGameData(r *wire.Reader) (string, error) {
	return r.ReadStr(r.Remaining())
}

// WriteGameData writes a TCP tag 0x0E body including the tag byte.
func WriteGameData(w *wire.Writer, data string) error {
	if err := w.WriteU8(TCPTagGameData); err != nil {
		return err
	}
	return w.WriteAll([]byte(data))
}

// Outbound (robot→driver station) message kinds on the TCP auxiliary
// channel.
const (
	MsgKindZeroCode    uint8 = 0x00
	MsgKindPlain       uint8 = 0x0C
	MsgKindTyped       uint8 = 0x0B
	MsgKindVersionInfo uint8 = 0x0D
)

// VersionInfoKind distinguishes the subtypes of a version-info message.
type VersionInfoKind uint8

// VersionInfoKind values.
const (
	VersionInfoImage VersionInfoKind = iota
	VersionInfoLibC
	VersionInfoEmpty
)

// ZeroCodeMessage is a raw string with no ms/sequence-number envelope.
type ZeroCodeMessage struct {
	Text string
}

// WriteZeroCodeMessage writes a complete 0x00 message frame body
// (following the TCP u16 length prefix, which the caller writes via
// wire.Writer.SizeGuard16).
func WriteZeroCodeMessage(w *wire.Writer, m ZeroCodeMessage) error {
	if err := w.WriteU8(MsgKindZeroCode); err != nil {
		return err
	}
	return w.WriteAll([]byte(m.Text))
}

// PlainMessage is message kind 0x0C: ms-since-epoch, wrapping message
// number, then UTF-8 text.
type PlainMessage struct {
	MsSinceEpoch uint32
	Number       uint16
	Text         string
}

// WritePlainMessage writes a complete 0x0C message frame body.
func WritePlainMessage(w *wire.Writer, m PlainMessage) error {
	if err := w.WriteU8(MsgKindPlain); err != nil {
		return err
	}
	if err := w.WriteU32(m.MsSinceEpoch); err != nil {
		return err
	}
	if err := w.WriteU16(m.Number); err != nil {
		return err
	}
	return w.WriteAll([]byte(m.Text))
}

// ReadPlainMessageBody decodes a 0x0C message body (the reader positioned
// past the kind byte). The driver-station side uses this to surface robot
// console output.
func ReadPlainMessageBody(r *wire.Reader) (PlainMessage, error) {
	var m PlainMessage
	ms, err := r.ReadU32()
	if err != nil {
		return m, err
	}
	num, err := r.ReadU16()
	if err != nil {
		return m, err
	}
	text, err := r.ReadStr(r.Remaining())
	if err != nil {
		return m, err
	}
	m.MsSinceEpoch = ms
	m.Number = num
	m.Text = text
	return m, nil
}

// TypedMessage is message kind 0x0B: ms-since-epoch, wrapping message
// number, a constant u16 "1", then a signed i32 code (negative = error,
// non-negative = warning), three reserved bytes, then UTF-8 text.
type TypedMessage struct {
	MsSinceEpoch uint32
	Number       uint16
	Code         int32
	Text         string
}

// IsError reports whether Code signals an error (negative) rather than a
// warning (non-negative).
func (m TypedMessage) IsError() bool { return m.Code < 0 }

// WriteTypedMessage writes a complete 0x0B message frame body.
func WriteTypedMessage(w *wire.Writer, m TypedMessage) error {
	if err := w.WriteU8(MsgKindTyped); err != nil {
		return err
	}
	if err := w.WriteU32(m.MsSinceEpoch); err != nil {
		return err
	}
	if err := w.WriteU16(m.Number); err != nil {
		return err
	}
	if err := w.WriteU16(1); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(m.Code)); err != nil {
		return err
	}
	if err := w.WriteAll([]byte{0, 0, 0}); err != nil {
		return err
	}
	return w.WriteAll([]byte(m.Text))
}

// ReadTypedMessageBody decodes a 0x0B message body.
func ReadTypedMessageBody(r *wire.Reader) (TypedMessage, error) {
	var m TypedMessage
	ms, err := r.ReadU32()
	if err != nil {
		return m, err
	}
	num, err := r.ReadU16()
	if err != nil {
		return m, err
	}
	if _, err := r.ReadU16(); err != nil {
		return m, err
	}
	code, err := r.ReadU32()
	if err != nil {
		return m, err
	}
	if _, err := r.ReadConstAmount(3); err != nil {
		return m, err
	}
	text, err := r.ReadStr(r.Remaining())
	if err != nil {
		return m, err
	}
	m.MsSinceEpoch = ms
	m.Number = num
	m.Code = int32(code)
	m.Text = text
	return m, nil
}

// VersionInfoMessage reports a component version over the TCP auxiliary
// channel, emitted when the driver requests library info.
type VersionInfoMessage struct {
	Kind    VersionInfoKind
	Version string
}

// WriteVersionInfoMessage writes a complete version-info frame body: the
// kind byte, the subtype, then a u8-prefixed version string (omitted
// entirely for VersionInfoEmpty).
func WriteVersionInfoMessage(w *wire.Writer, m VersionInfoMessage) error {
	if err := w.WriteU8(MsgKindVersionInfo); err != nil {
		return err
	}
	if err := w.WriteU8(uint8(m.Kind)); err != nil {
		return err
	}
	if m.Kind == VersionInfoEmpty {
		return nil
	}
	return w.WriteShortStr(m.Version)
}

// ReadVersionInfoBody decodes a version-info message body.
func ReadVersionInfoBody(r *wire.Reader) (VersionInfoMessage, error) {
	var m VersionInfoMessage
	kind, err := r.ReadU8()
	if err != nil {
		return m, err
	}
	if kind > uint8(VersionInfoEmpty) {
		return m, fmt.Errorf("packet: invalid version info kind %d", kind)
	}
	m.Kind = VersionInfoKind(kind)
	if m.Kind == VersionInfoEmpty {
		return m, nil
	}
	version, err := r.ReadShortStr()
	if err != nil {
		return m, err
	}
	m.Version = version
	return m, nil
}
