package robotd

import (
	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/state"
)

// stateTagAcceptor implements packet.InboundTagAcceptor by installing
// decoded tags directly into shared state: joystick slots not present
// reset to absent, while absent time data leaves the last known value
// unchanged.
type stateTagAcceptor struct {
	st *state.State
}

func (a stateTagAcceptor) AcceptJoystick(index int, j *packet.Joystick) {
	if index < 0 || index >= 6 {
		return
	}
	a.st.SetJoystick(index, j)
}

func (a stateTagAcceptor) AcceptCountdown(countdown *float32) {
	a.st.SetCountdown(countdown)
}

func (a stateTagAcceptor) AcceptTimeData(t packet.TimeData) {
	a.st.MergeTimeData(t)
}
