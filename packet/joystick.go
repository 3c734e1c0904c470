package packet

import (
	"fmt"

	"github.com/frcnet/robotcom/wire"
)

// PovNone is the wire sentinel for "no POV pressed".
const PovNone uint16 = 0xFFFF

const (
	maxJoystickAxes = 12
	maxJoystickPovs = 16
)

// Joystick is a single controller's state as carried by tag 0x0C. It
// uses inline fixed-size storage rather than slices so decoding a packet
// never allocates.
type Joystick struct {
	axesLen uint8
	axes    [maxJoystickAxes]int8

	buttonCount uint8
	buttons     uint64

	povLen uint8
	povs   [maxJoystickPovs]uint16
}

// NumAxes, NumButtons and NumPovs report how many of each element are
// present.
func (j *Joystick) NumAxes() int    { return int(j.axesLen) }
func (j *Joystick) NumButtons() int { return int(j.buttonCount) }
func (j *Joystick) NumPovs() int    { return int(j.povLen) }

// Axis returns the i8 value of axis i, or (0, false) if out of range.
func (j *Joystick) Axis(i int) (int8, bool) {
	if i < 0 || i >= int(j.axesLen) {
		return 0, false
	}
	return j.axes[i], true
}

// Button returns whether button i (0-indexed) is pressed.
func (j *Joystick) Button(i int) bool {
	if i < 0 || i >= int(j.buttonCount) {
		return false
	}
	return j.buttons&(1<<uint(i)) != 0
}

// Pov returns the raw POV value for index i and whether a POV is
// present at all at that index. A present POV of PovNone means no
// direction is pressed.
func (j *Joystick) Pov(i int) (uint16, bool) {
	if i < 0 || i >= int(j.povLen) {
		return 0, false
	}
	return j.povs[i], true
}

// SetAxes replaces the axis list, truncating to the maximum inline
// capacity.
func (j *Joystick) SetAxes(axes []int8) {
	n := len(axes)
	if n > maxJoystickAxes {
		n = maxJoystickAxes
	}
	j.axesLen = uint8(n)
	copy(j.axes[:n], axes[:n])
}

// SetButtons replaces the button bitfield with count buttons packed
// little-bit-0-first into data.
func (j *Joystick) SetButtons(count int, data uint64) {
	if count > 64 {
		count = 64
	}
	j.buttonCount = uint8(count)
	mask := uint64(1)<<uint(count) - 1
	if count == 64 {
		mask = ^uint64(0)
	}
	j.buttons = data & mask
}

// SetPovs replaces the POV list, truncating to the maximum inline
// capacity.
func (j *Joystick) SetPovs(povs []uint16) {
	n := len(povs)
	if n > maxJoystickPovs {
		n = maxJoystickPovs
	}
	j.povLen = uint8(n)
	copy(j.povs[:n], povs[:n])
}

// WriteBody writes the joystick payload (the bytes following the tag id)
// for tag 0x0C.
func (j *Joystick) WriteBody(w *wire.Writer) error {
	if err := w.WriteU8(j.axesLen); err != nil {
		return err
	}
	for i := 0; i < int(j.axesLen); i++ {
		if err := w.WriteU8(uint8(j.axes[i])); err != nil {
			return err
		}
	}
	if err := w.WriteU8(j.buttonCount); err != nil {
		return err
	}
	nBytes := (int(j.buttonCount) + 7) / 8
	for p := nBytes - 1; p >= 0; p-- {
		if err := w.WriteU8(uint8(j.buttons >> uint(p*8))); err != nil {
			return err
		}
	}
	if err := w.WriteU8(j.povLen); err != nil {
		return err
	}
	for i := 0; i < int(j.povLen); i++ {
		if err := w.WriteU16(j.povs[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadJoystickBody decodes a joystick payload from a bounded sub-reader
// (the caller has already peeled off the length prefix and tag id and
// must call AssertEmpty afterwards).
func ReadJoystickBody(r *wire.Reader) (*Joystick, error) {
	var j Joystick

	axes, err := r.ReadShortU8Arr()
	if err != nil {
		return nil, err
	}
	if len(axes) > maxJoystickAxes {
		return nil, fmt.Errorf("%w: %d axes", ErrInvalidJoystickPayload, len(axes))
	}
	j.axesLen = uint8(len(axes))
	for i, a := range axes {
		j.axes[i] = int8(a)
	}

	buttonCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	j.buttonCount = buttonCount
	var data uint64
	for i := 0; i < (int(buttonCount)+7)/8; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		data = data<<8 | uint64(b)
	}
	j.buttons = data

	povCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if int(povCount) > maxJoystickPovs {
		return nil, fmt.Errorf("%w: %d povs", ErrInvalidJoystickPayload, povCount)
	}
	j.povLen = povCount
	for i := 0; i < int(povCount); i++ {
		pov, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		j.povs[i] = pov
	}

	return &j, nil
}
