// Package packet implements the typed representation of core packets,
// control/request/status bitfields, joysticks, and time data (C2).
package packet

import (
	"fmt"

	"github.com/frcnet/robotcom/wire"
)

// RequestHeader is the decoded 6-byte driver→robot core header.
type RequestHeader struct {
	Sequence uint16
	Control  ControlCode
	Request  RequestCode
	Station  AllianceStation
}

// DecodeRequestHeader reads the fixed 6-byte header from r and validates
// tag_comm_version, control_code, request_code and alliance_station. r's
// cursor is left positioned at the start of the tag stream on success.
func DecodeRequestHeader(r *wire.Reader) (RequestHeader, error) {
	var h RequestHeader

	seq, err := r.ReadU16()
	if err != nil {
		return h, err
	}
	ver, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	if ver != CommVersion {
		return h, fmt.Errorf("%w: %d", ErrInvalidCommVersion, ver)
	}
	controlByte, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	control := ControlCode(controlByte)
	if err := control.Validate(); err != nil {
		return h, err
	}
	requestByte, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	request := RequestCode(requestByte)
	if err := request.Validate(); err != nil {
		return h, err
	}
	stationByte, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	station, err := ParseAllianceStation(stationByte)
	if err != nil {
		return h, err
	}

	h.Sequence = seq
	h.Control = control
	h.Request = request
	h.Station = station
	return h, nil
}

// ResponseHeader is the fixed leading portion of a robot→driver core
// packet, before any tags.
type ResponseHeader struct {
	Sequence             uint16
	Control              ControlCode
	Status               StatusCode
	BatteryInt           uint8
	BatteryFrac          uint8
	DriverstationRequest DriverstationRequestCode
}

// EncodeResponseHeader writes the fixed 8-byte response header. Tags are
// appended by the caller afterward using the WriteXTag helpers.
func EncodeResponseHeader(w *wire.Writer, h ResponseHeader) error {
	if err := w.WriteU16(h.Sequence); err != nil {
		return err
	}
	if err := w.WriteU8(CommVersion); err != nil {
		return err
	}
	if err := w.WriteU8(h.Control.Byte()); err != nil {
		return err
	}
	if err := w.WriteU8(h.Status.Byte()); err != nil {
		return err
	}
	if err := w.WriteU8(h.BatteryInt); err != nil {
		return err
	}
	if err := w.WriteU8(h.BatteryFrac); err != nil {
		return err
	}
	return w.WriteU8(h.DriverstationRequest.Byte())
}

// DecodeResponseHeader decodes the fixed 8-byte robot→driver header, used
// by the driver-station side.
func DecodeResponseHeader(r *wire.Reader) (ResponseHeader, error) {
	var h ResponseHeader
	seq, err := r.ReadU16()
	if err != nil {
		return h, err
	}
	ver, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	if ver != CommVersion {
		return h, fmt.Errorf("%w: %d", ErrInvalidCommVersion, ver)
	}
	controlByte, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	statusByte, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	batteryInt, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	batteryFrac, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	dsReqByte, err := r.ReadU8()
	if err != nil {
		return h, err
	}
	h.Sequence = seq
	h.Control = ControlCode(controlByte)
	h.Status = StatusCode(statusByte)
	h.BatteryInt = batteryInt
	h.BatteryFrac = batteryFrac
	h.DriverstationRequest = DriverstationRequestCode(dsReqByte)
	return h, nil
}

// EncodeRequestHeader writes the fixed 6-byte driver→robot header, used
// by the driver-station side to originate packets.
func EncodeRequestHeader(w *wire.Writer, h RequestHeader) error {
	if err := w.WriteU16(h.Sequence); err != nil {
		return err
	}
	if err := w.WriteU8(CommVersion); err != nil {
		return err
	}
	if err := w.WriteU8(h.Control.Byte()); err != nil {
		return err
	}
	if err := w.WriteU8(h.Request.Byte()); err != nil {
		return err
	}
	return w.WriteU8(uint8(h.Station))
}
