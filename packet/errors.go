package packet

import "errors"

// Sentinel errors for the higher-level packet parse failures. Each is
// wrapped with the offending value
// via fmt.Errorf so callers can both errors.Is against the sentinel and
// read the bad byte out of the message.
var (
	ErrInvalidCommVersion     = errors.New("packet: invalid tag_comm_version")
	ErrInvalidControlCode     = errors.New("packet: invalid control_code (reserved bit set)")
	ErrInvalidRequestCode     = errors.New("packet: invalid request_code (reserved bit set)")
	ErrInvalidStationCode     = errors.New("packet: invalid alliance_station")
	ErrInvalidTag             = errors.New("packet: invalid tag id")
	ErrInvalidTimeData        = errors.New("packet: invalid time tag")
	ErrInvalidTimeZoneData    = errors.New("packet: invalid timezone tag")
	ErrTooManyJoysticks       = errors.New("packet: too many joysticks in packet")
	ErrInvalidJoystickPayload = errors.New("packet: invalid joystick payload")
)

// CommVersion is the only tag_comm_version this implementation speaks.
const CommVersion = 1
