package packet

import (
	"github.com/frcnet/robotcom/wire"
)

// Rumble is the payload for tag 0x01: left/right rumble motor
// intensity, two u16 values.
type Rumble struct {
	Left  uint16
	Right uint16
}

// WriteRumbleTag writes a complete tag 0x01.
func WriteRumbleTag(w *wire.Writer, r Rumble) error {
	return writeTag(w, TagRumble, func(w *wire.Writer) error {
		if err := w.WriteU16(r.Left); err != nil {
			return err
		}
		return w.WriteU16(r.Right)
	})
}

// ReadRumbleBody decodes a tag 0x01 payload (the reader positioned past
// the tag id byte).
func ReadRumbleBody(r *wire.Reader) (Rumble, error) {
	left, err := r.ReadU16()
	if err != nil {
		return Rumble{}, err
	}
	right, err := r.ReadU16()
	if err != nil {
		return Rumble{}, err
	}
	return Rumble{Left: left, Right: right}, nil
}

// WriteDiskUsageTag writes a complete tag 0x04: disk-free bytes (u64).
func WriteDiskUsageTag(w *wire.Writer, freeBytes uint64) error {
	return writeTag(w, TagDiskUsage, func(w *wire.Writer) error { return w.WriteU64(freeBytes) })
}

// ReadDiskUsageBody decodes a tag 0x04 payload.
func ReadDiskUsageBody(r *wire.Reader) (uint64, error) { return r.ReadU64() }

// CPUUsage is the payload for tag 0x05: per-CPU usage as 4 floats. The
// four slots follow the conventional roboRIO layout: overall
// utilization, user time, system time, and kernel time, each a
// percentage in [0, 100].
type CPUUsage struct {
	Utilization float32
	User        float32
	System      float32
	Kernel      float32
}

// WriteCPUUsageTag writes a complete tag 0x05.
func WriteCPUUsageTag(w *wire.Writer, c CPUUsage) error {
	return writeTag(w, TagCPUUsage, func(w *wire.Writer) error {
		for _, v := range []float32{c.Utilization, c.User, c.System, c.Kernel} {
			if err := w.WriteF32(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadCPUUsageBody decodes a tag 0x05 payload.
func ReadCPUUsageBody(r *wire.Reader) (CPUUsage, error) {
	var c CPUUsage
	vals := make([]float32, 4)
	for i := range vals {
		v, err := r.ReadF32()
		if err != nil {
			return CPUUsage{}, err
		}
		vals[i] = v
	}
	c.Utilization, c.User, c.System, c.Kernel = vals[0], vals[1], vals[2], vals[3]
	return c, nil
}

// WriteRAMUsageTag writes a complete tag 0x06: RAM-free bytes (u64).
func WriteRAMUsageTag(w *wire.Writer, freeBytes uint64) error {
	return writeTag(w, TagRAMUsage, func(w *wire.Writer) error { return w.WriteU64(freeBytes) })
}

// ReadRAMUsageBody decodes a tag 0x06 payload.
func ReadRAMUsageBody(r *wire.Reader) (uint64, error) { return r.ReadU64() }

// PDPPortReportSize is the fixed payload size (excluding tag id) of tag
// 0x08; the full tag body is 26 bytes including the tag id.
const PDPPortReportSize = 25

// PDPPortReport is the fixed-size per-channel current report for tag
// 0x08. The bit-packing of the 25 payload bytes is PDP-hardware-specific
// and outside the protocol, so it is carried as an opaque block set by
// an external collaborator.
type PDPPortReport [PDPPortReportSize]byte

// WritePDPPortReportTag writes a complete tag 0x08.
func WritePDPPortReportTag(w *wire.Writer, r PDPPortReport) error {
	return writeTag(w, TagPDPPortReport, func(w *wire.Writer) error { return w.WriteAll(r[:]) })
}

// ReadPDPPortReportBody decodes a tag 0x08 payload.
func ReadPDPPortReportBody(r *wire.Reader) (PDPPortReport, error) {
	var out PDPPortReport
	b, err := r.ReadConstAmount(PDPPortReportSize)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// PDPPowerReportSize is the fixed payload size (excluding tag id) of
// tag 0x09; the full tag body is 10 bytes including the tag id.
const PDPPowerReportSize = 9

// PDPPowerReport is the opaque fixed-size power-rail report for tag 0x09.
type PDPPowerReport [PDPPowerReportSize]byte

// WritePDPPowerReportTag writes a complete tag 0x09.
func WritePDPPowerReportTag(w *wire.Writer, r PDPPowerReport) error {
	return writeTag(w, TagPDPPowerReport, func(w *wire.Writer) error { return w.WriteAll(r[:]) })
}

// ReadPDPPowerReportBody decodes a tag 0x09 payload.
func ReadPDPPowerReportBody(r *wire.Reader) (PDPPowerReport, error) {
	var out PDPPowerReport
	b, err := r.ReadConstAmount(PDPPowerReportSize)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// CANUsage is the payload for tag 0x0E: f32 + u32 + u32 + u8 + u8, 14
// payload bytes, 15 with the tag id.
type CANUsage struct {
	Utilization        float32
	BusOffCount        uint32
	TransmitFullCount  uint32
	ReceiveErrorCount  uint8
	TransmitErrorCount uint8
}

// ReadCANUsageBody decodes a tag 0x0E payload.
func ReadCANUsageBody(r *wire.Reader) (CANUsage, error) {
	var c CANUsage
	var err error
	if c.Utilization, err = r.ReadF32(); err != nil {
		return CANUsage{}, err
	}
	if c.BusOffCount, err = r.ReadU32(); err != nil {
		return CANUsage{}, err
	}
	if c.TransmitFullCount, err = r.ReadU32(); err != nil {
		return CANUsage{}, err
	}
	if c.ReceiveErrorCount, err = r.ReadU8(); err != nil {
		return CANUsage{}, err
	}
	if c.TransmitErrorCount, err = r.ReadU8(); err != nil {
		return CANUsage{}, err
	}
	return c, nil
}

// OutboundTagAcceptor receives tags parsed out of a robot→driver packet,
// used by the driver-station side to surface robot telemetry. Tags absent
// from a packet produce no call.
type OutboundTagAcceptor interface {
	AcceptRumble(r Rumble)
	AcceptDiskUsage(freeBytes uint64)
	AcceptCPUUsage(c CPUUsage)
	AcceptRAMUsage(freeBytes uint64)
	AcceptPDPPortReport(r PDPPortReport)
	AcceptPDPPowerReport(r PDPPowerReport)
	AcceptCANUsage(c CANUsage)
}

// ReadOutboundTags walks every tag in r (positioned right after the
// 8-byte response header) and dispatches it to acceptor, under the same
// bounded sub-reader discipline as ReadInboundTags.
func ReadOutboundTags(r *wire.Reader, acceptor OutboundTagAcceptor) error {
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
		case TagRumble:
			v, err := ReadRumbleBody(sub)
			if err != nil {
				return err
			}
			acceptor.AcceptRumble(v)
		case TagDiskUsage:
			v, err := ReadDiskUsageBody(sub)
			if err != nil {
				return err
			}
			acceptor.AcceptDiskUsage(v)
		case TagCPUUsage:
			v, err := ReadCPUUsageBody(sub)
			if err != nil {
				return err
			}
			acceptor.AcceptCPUUsage(v)
		case TagRAMUsage:
			v, err := ReadRAMUsageBody(sub)
			if err != nil {
				return err
			}
			acceptor.AcceptRAMUsage(v)
		case TagPDPPortReport:
			v, err := ReadPDPPortReportBody(sub)
			if err != nil {
				return err
			}
			acceptor.AcceptPDPPortReport(v)
		case TagPDPPowerReport:
			v, err := ReadPDPPowerReportBody(sub)
			if err != nil {
				return err
			}
			acceptor.AcceptPDPPowerReport(v)
		case TagCANUsage:
			v, err := ReadCANUsageBody(sub)
			if err != nil {
				return err
			}
			acceptor.AcceptCANUsage(v)
		default:
			return ErrInvalidTag
		}
		if err := sub.AssertEmpty(); err != nil {
			return err
		}
	}
	return nil
}

// WriteCANUsageTag writes a complete tag 0x0E.
func WriteCANUsageTag(w *wire.Writer, c CANUsage) error {
	return writeTag(w, TagCANUsage, func(w *wire.Writer) error {
		if err := w.WriteF32(c.Utilization); err != nil {
			return err
		}
		if err := w.WriteU32(c.BusOffCount); err != nil {
			return err
		}
		if err := w.WriteU32(c.TransmitFullCount); err != nil {
			return err
		}
		if err := w.WriteU8(c.ReceiveErrorCount); err != nil {
			return err
		}
		return w.WriteU8(c.TransmitErrorCount)
	})
}
