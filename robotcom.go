// Package robotcom is the public façade over the robot-side control
// protocol: shared state, hook dispatch, and the UDP/TCP daemon pair
// behind one handle. Callers construct a RobotCom, start the daemon, and
// then use the setter/getter surface from any goroutine.
package robotcom

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/frcnet/robotcom/hooks"
	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/robotd"
	"github.com/frcnet/robotcom/state"
)

// RobotCom owns one robot's shared state, hooks, and daemon threads. The
// daemon samples the handle's liveness at loop boundaries and unwinds
// once Close has been called.
type RobotCom struct {
	st    *state.State
	hooks *hooks.Hooks
	d     *robotd.Daemon
	log   logging.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	closed    atomic.Bool
}

// New builds a RobotCom with a fresh shared state and empty hook set. A
// nil logger gets the development default.
func New(log logging.Logger) *RobotCom {
	if log == nil {
		log = logging.NewDevelopment()
	}
	st := state.New()
	h := hooks.New(log)
	r := &RobotCom{
		st:    st,
		hooks: h,
		d:     robotd.New(st, h, log),
		log:   log,
		done:  make(chan struct{}),
	}
	r.d.Alive = func() bool { return !r.closed.Load() }
	return r
}

// Daemon exposes the underlying daemon for port overrides and TCP message
// sends before StartDaemon is called.
func (r *RobotCom) Daemon() *robotd.Daemon { return r.d }

// State exposes the shared-state store directly, for collaborators like
// the config watcher and telemetry collector.
func (r *RobotCom) State() *state.State { return r.st }

// StartDaemon spawns the UDP and TCP loops. It is idempotent; only the
// first call starts anything.
func (r *RobotCom) StartDaemon() {
	r.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		go func() {
			defer close(r.done)
			if err := r.d.Run(ctx); err != nil {
				r.log.Errorw("daemon exited with error", "error", err)
			}
		}()
	})
}

// Close marks the handle dead and waits for the daemon loops to unwind.
// Safe to call without StartDaemon and safe to call more than once.
func (r *RobotCom) Close() {
	if r.closed.Swap(true) {
		return
	}
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// --- control mutators ---

// Reconnect requests a hard reset: the daemon drops the current peer and
// treats the next packet as a new connection.
func (r *RobotCom) Reconnect() { r.st.RequestHardReset() }

// ResetAllValues clears all state including the sticky estop and brownout
// bits, then hard-resets the connection.
func (r *RobotCom) ResetAllValues() {
	r.st.ResetAllValues()
	r.st.RequestHardReset()
}

// CrashDriverstation forces an invalid protocol version into every
// response. This is peer-destructive: a conforming driver station treats
// the malformed version as a hard parse error and typically terminates.
func (r *RobotCom) CrashDriverstation() { r.st.SetCrashDriverstation(true) }

// --- observed setters ---

// ObserveRobotCode sets the has_robot_code status bit.
func (r *RobotCom) ObserveRobotCode(hasCode bool) { r.st.ObserveRobotCode(hasCode) }

// ObserveRobotBrownout latches the observed brownout_protection bit.
func (r *RobotCom) ObserveRobotBrownout(active bool) { r.st.ObserveRobotBrownout(active) }

// ObserveRobotVoltage sets the battery voltage in the response header.
func (r *RobotCom) ObserveRobotVoltage(volts float32) { r.st.ObserveRobotVoltage(volts) }

// ObserveRobotTeleop, ObserveRobotAutonomus and ObserveRobotTest report
// the mode the robot code is actually running in.
func (r *RobotCom) ObserveRobotTeleop()    { r.st.ObserveRobotMode(packet.ModeTeleop) }
func (r *RobotCom) ObserveRobotAutonomus() { r.st.ObserveRobotMode(packet.ModeAuton) }
func (r *RobotCom) ObserveRobotTest()      { r.st.ObserveRobotMode(packet.ModeTest) }

// ObserveRobotDisabled reports the robot code is disabled.
func (r *RobotCom) ObserveRobotDisabled() { r.st.ObserveRobotDisabled() }

// SetEstopped latches the observed estop bit. Once set it survives
// reconnects; only ResetAllValues releases it.
func (r *RobotCom) SetEstopped(v bool) { r.st.SetEstopped(v) }

// RequestTime and RequestDisable raise the corresponding bits on the
// outbound driverstation_request_code.
func (r *RobotCom) RequestTime(v bool)    { r.st.RequestTime(v) }
func (r *RobotCom) RequestDisable(v bool) { r.st.RequestDisable(v) }

// RequestEstop stops the robot immediately: it latches the observed
// estop bit and fires the estop hook. Unlike SetEstopped, which only
// latches the bit, this is the one-shot "estop now" action; nothing is
// transmitted on the wire beyond the latched bit in later responses.
func (r *RobotCom) RequestEstop() {
	r.st.SetEstopped(true)
	r.hooks.FireEstop()
}

// --- received getters ---

// GetControlCode returns the last received control code.
func (r *RobotCom) GetControlCode() packet.ControlCode { return r.st.Received().Control }

// GetAllianceStation returns the last received alliance station.
func (r *RobotCom) GetAllianceStation() packet.AllianceStation { return r.st.Received().Station }

// GetRequestCode returns the last received request code.
func (r *RobotCom) GetRequestCode() packet.RequestCode { return r.st.Received().Request }

// GetCountdown returns the countdown from the most recent packet, or nil
// if the last packet carried none (or a reset intervened).
func (r *RobotCom) GetCountdown() *float32 { return r.st.Countdown() }

// GetTime returns the merged time data received so far.
func (r *RobotCom) GetTime() packet.TimeData { return r.st.TimeData() }

// GetJoystick returns controller i's state, or nil if absent.
func (r *RobotCom) GetJoystick(i int) *packet.Joystick {
	if i < 0 || i >= 6 {
		return nil
	}
	return r.st.Joystick(i)
}

// GetAxis returns axis index of controller, or (0, false) if the
// controller or axis is absent.
func (r *RobotCom) GetAxis(controller, index int) (int8, bool) {
	j := r.GetJoystick(controller)
	if j == nil {
		return 0, false
	}
	return j.Axis(index)
}

// GetPov returns POV index of controller. The bool is false when the
// controller or POV slot is absent or the slot holds the "none" sentinel.
func (r *RobotCom) GetPov(controller, index int) (uint16, bool) {
	j := r.GetJoystick(controller)
	if j == nil {
		return 0, false
	}
	v, ok := j.Pov(index)
	if !ok || v == packet.PovNone {
		return 0, false
	}
	return v, true
}

// GetButton returns whether button index of controller is pressed.
func (r *RobotCom) GetButton(controller, index int) bool {
	j := r.GetJoystick(controller)
	if j == nil {
		return false
	}
	return j.Button(index)
}

// --- counters / connection state ---

// IsConnected reports whether the daemon currently has a live peer.
func (r *RobotCom) IsConnected() bool { return r.st.IsConnected() }

// IsEstopped reports the observed estop bit.
func (r *RobotCom) IsEstopped() bool { return r.st.IsEstopped() }

// IsBrownoutProtection reports the observed brownout_protection bit.
func (r *RobotCom) IsBrownoutProtection() bool { return r.st.IsBrownoutProtection() }

// GetUDPPacketsSent, GetUDPPacketsReceived, GetUDPPacketsDropped,
// GetUDPBytesSent and GetUDPBytesReceived return the daemon counters.
func (r *RobotCom) GetUDPPacketsSent() uint64     { return r.st.PacketsSent() }
func (r *RobotCom) GetUDPPacketsReceived() uint64 { return r.st.PacketsReceived() }
func (r *RobotCom) GetUDPPacketsDropped() uint64  { return r.st.PacketsDropped() }
func (r *RobotCom) GetUDPBytesSent() uint64       { return r.st.BytesSent() }
func (r *RobotCom) GetUDPBytesReceived() uint64   { return r.st.BytesReceived() }

// --- configuration ---

// SetUDPConnectionTimeoutMs and SetUDPReadBlockingTimeoutMs tune the
// daemon's timeouts. A read-timeout change takes effect at the next
// receive; a soft reset applies it to the socket itself.
func (r *RobotCom) SetUDPConnectionTimeoutMs(ms uint32) { r.st.SetConnectionTimeoutMs(ms) }
func (r *RobotCom) SetUDPReadBlockingTimeoutMs(ms uint32) {
	r.st.SetReadBlockTimeoutMs(ms)
	r.st.RequestSoftReset()
}

// Per-tag frequency setters: 0 suppresses the tag, n emits it every nth
// response (offset per tag to desynchronize emissions).
func (r *RobotCom) SetRumbleFrequency(n uint8)         { r.st.SetRumbleFrequency(n) }
func (r *RobotCom) SetDiskUsageFrequency(n uint8)      { r.st.SetDiskUsageFrequency(n) }
func (r *RobotCom) SetCPUUsageFrequency(n uint8)       { r.st.SetCPUUsageFrequency(n) }
func (r *RobotCom) SetRAMUsageFrequency(n uint8)       { r.st.SetRAMUsageFrequency(n) }
func (r *RobotCom) SetPDPPortReportFrequency(n uint8)  { r.st.SetPDPPortReportFrequency(n) }
func (r *RobotCom) SetPDPPowerReportFrequency(n uint8) { r.st.SetPDPPowerReportFrequency(n) }
func (r *RobotCom) SetCANUsageFrequency(n uint8)       { r.st.SetCANUsageFrequency(n) }

// Tag-data setters; nil suppresses emission regardless of frequency.
func (r *RobotCom) SetRumble(v *packet.Rumble)                 { r.st.SetRumble(v) }
func (r *RobotCom) SetDiskUsage(v *uint64)                     { r.st.SetDiskUsage(v) }
func (r *RobotCom) SetCPUUsage(v *packet.CPUUsage)             { r.st.SetCPUUsage(v) }
func (r *RobotCom) SetRAMUsage(v *uint64)                      { r.st.SetRAMUsage(v) }
func (r *RobotCom) SetPDPPortReport(v *packet.PDPPortReport)   { r.st.SetPDPPortReport(v) }
func (r *RobotCom) SetPDPPowerReport(v *packet.PDPPowerReport) { r.st.SetPDPPowerReport(v) }
func (r *RobotCom) SetCANUsage(v *packet.CANUsage)             { r.st.SetCANUsage(v) }

// --- hook registration ---

// SetDisableHook and friends install the named hook; the Take variants
// remove it and return the prior value.
func (r *RobotCom) SetDisableHook(fn hooks.Hook)     { r.hooks.SetDisableHook(fn) }
func (r *RobotCom) SetTeleopHook(fn hooks.Hook)      { r.hooks.SetTeleopHook(fn) }
func (r *RobotCom) SetAutonHook(fn hooks.Hook)       { r.hooks.SetAutonHook(fn) }
func (r *RobotCom) SetTestHook(fn hooks.Hook)        { r.hooks.SetTestHook(fn) }
func (r *RobotCom) SetEstopHook(fn hooks.Hook)       { r.hooks.SetEstopHook(fn) }
func (r *RobotCom) SetRestartCodeHook(fn hooks.Hook) { r.hooks.SetRestartCodeHook(fn) }
func (r *RobotCom) SetRestartRioHook(fn hooks.Hook)  { r.hooks.SetRestartRioHook(fn) }

func (r *RobotCom) TakeDisableHook() hooks.Hook     { return r.hooks.TakeDisableHook() }
func (r *RobotCom) TakeTeleopHook() hooks.Hook      { return r.hooks.TakeTeleopHook() }
func (r *RobotCom) TakeAutonHook() hooks.Hook       { return r.hooks.TakeAutonHook() }
func (r *RobotCom) TakeTestHook() hooks.Hook        { return r.hooks.TakeTestHook() }
func (r *RobotCom) TakeEstopHook() hooks.Hook       { return r.hooks.TakeEstopHook() }
func (r *RobotCom) TakeRestartCodeHook() hooks.Hook { return r.hooks.TakeRestartCodeHook() }
func (r *RobotCom) TakeRestartRioHook() hooks.Hook  { return r.hooks.TakeRestartRioHook() }
