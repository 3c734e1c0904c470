// Package state implements the Shared State façade (C3): a single
// mutable store read and written from the UDP daemon thread and from any
// number of external setter/getter threads. Every externally visible
// operation is either an atomic scalar load/store or a short lock over
// one of several independent mutexes, so unrelated writers never
// contend with each other.
package state

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/frcnet/robotcom/packet"
)

// ResetLevel is the tri-state value of the reset_con coordination point
// between external reset requests and the UDP loop.
type ResetLevel uint32

// ResetLevel values.
const (
	ResetNone ResetLevel = 0
	ResetSoft ResetLevel = 1
	ResetHard ResetLevel = 2
)

// State is the shared façade. It is created once at daemon start and
// lives for the process.
type State struct {
	resetCon                  atomic.Uint32
	connected                 atomic.Bool
	bytesSent                 atomic.Uint64
	bytesReceived             atomic.Uint64
	packetsSent               atomic.Uint64
	packetsReceived           atomic.Uint64
	packetsDropped            atomic.Uint64
	connectionTimeoutMs       atomic.Uint32
	readBlockTimeoutMs        atomic.Uint32
	clearObservedStatusOnSend atomic.Bool
	requestInfo               atomic.Bool
	crashDriverstation        atomic.Bool

	rumbleM   atomic.Uint32
	diskM     atomic.Uint32
	cpuM      atomic.Uint32
	ramM      atomic.Uint32
	pdpPortM  atomic.Uint32
	pdpPowerM atomic.Uint32
	canM      atomic.Uint32

	receivedMu sync.Mutex
	received   packet.RequestHeader

	controlMu sync.Mutex
	control   packet.ControlCode
	obsSeq    uint16

	statusMu     sync.Mutex
	status       packet.StatusCode
	batteryVolts float32
	dsRequest    packet.DriverstationRequestCode

	joystickMu sync.Mutex
	joysticks  [6]*packet.Joystick

	countdownMu sync.Mutex
	countdown   *float32

	timeMu sync.Mutex
	time   packet.TimeData

	tagMu   sync.Mutex
	tagData TagData
}

// TagData is the set of optional outbound telemetry payloads installed by
// setters and read by the UDP thread under tagMu.
type TagData struct {
	Rumble   *packet.Rumble
	Disk     *uint64
	CPU      *packet.CPUUsage
	RAM      *uint64
	PDPPort  *packet.PDPPortReport
	PDPPower *packet.PDPPowerReport
	CAN      *packet.CANUsage
}

// New returns a freshly initialized shared state with a 120ms
// read-block timeout and a generous default connection timeout.
func New() *State {
	s := &State{}
	s.readBlockTimeoutMs.Store(120)
	s.connectionTimeoutMs.Store(1000)
	return s
}

// --- reset coordination ---

// RequestSoftReset moves reset_con from none to soft via compare-and-swap,
// so it never downgrades an already-pending hard reset.
func (s *State) RequestSoftReset() {
	s.resetCon.CAS(uint32(ResetNone), uint32(ResetSoft))
}

// RequestHardReset sets reset_con to hard. Hard is the maximum level, so
// an unconditional store can never downgrade a pending request.
func (s *State) RequestHardReset() {
	s.resetCon.Store(uint32(ResetHard))
}

// TakeResetRequest atomically reads and clears reset_con, returning the
// level that was pending. The daemon calls this at well-defined iteration
// boundaries.
func (s *State) TakeResetRequest() ResetLevel {
	return ResetLevel(s.resetCon.Swap(uint32(ResetNone)))
}

// PeekResetRequest reads reset_con without clearing it.
func (s *State) PeekResetRequest() ResetLevel {
	return ResetLevel(s.resetCon.Load())
}

// --- connection / counters ---

// SetConnected updates the connected flag.
func (s *State) SetConnected(v bool) { s.connected.Store(v) }

// IsConnected reports the connected flag.
func (s *State) IsConnected() bool { return s.connected.Load() }

// AddBytesReceived/AddBytesSent/AddPacketsReceived/AddPacketsSent/
// AddPacketsDropped increment the named counter.
func (s *State) AddBytesReceived(n uint64)   { s.bytesReceived.Add(n) }
func (s *State) AddBytesSent(n uint64)       { s.bytesSent.Add(n) }
func (s *State) AddPacketsReceived(n uint64) { s.packetsReceived.Add(n) }
func (s *State) AddPacketsSent(n uint64)     { s.packetsSent.Add(n) }
func (s *State) AddPacketsDropped(n uint64)  { s.packetsDropped.Add(n) }

// BytesReceived/BytesSent/PacketsReceived/PacketsSent/PacketsDropped
// return the current counter values for the getter façade.
func (s *State) BytesReceived() uint64   { return s.bytesReceived.Load() }
func (s *State) BytesSent() uint64       { return s.bytesSent.Load() }
func (s *State) PacketsReceived() uint64 { return s.packetsReceived.Load() }
func (s *State) PacketsSent() uint64     { return s.packetsSent.Load() }
func (s *State) PacketsDropped() uint64  { return s.packetsDropped.Load() }

// --- configuration ---

// SetConnectionTimeoutMs/SetReadBlockTimeoutMs implement
// set_udp_connection_timeout_ms / set_udp_read_blocking_timeout_ms.
func (s *State) SetConnectionTimeoutMs(ms uint32) { s.connectionTimeoutMs.Store(ms) }
func (s *State) SetReadBlockTimeoutMs(ms uint32)  { s.readBlockTimeoutMs.Store(ms) }
func (s *State) ConnectionTimeoutMs() uint32      { return s.connectionTimeoutMs.Load() }
func (s *State) ReadBlockTimeoutMs() uint32       { return s.readBlockTimeoutMs.Load() }

// SetClearObservedStatusOnSend toggles whether observed status resets to
// zero immediately after each response snapshot.
func (s *State) SetClearObservedStatusOnSend(v bool) { s.clearObservedStatusOnSend.Store(v) }
func (s *State) ClearObservedStatusOnSend() bool     { return s.clearObservedStatusOnSend.Load() }

// SetRequestInfo/RequestInfo/TakeRequestInfo implement the request_info
// cue the UDP thread raises for the TCP side.
func (s *State) SetRequestInfo(v bool) { s.requestInfo.Store(v) }
func (s *State) RequestInfo() bool     { return s.requestInfo.Load() }

// TakeRequestInfo atomically reads and clears the request_info cue; the
// TCP thread calls this once per emit cycle.
func (s *State) TakeRequestInfo() bool { return s.requestInfo.Swap(false) }

// SetCrashDriverstation toggles the peer-destructive mode where every
// response carries an invalid protocol version.
func (s *State) SetCrashDriverstation(v bool) { s.crashDriverstation.Store(v) }

// CrashDriverstation reports whether responses should carry an invalid
// protocol version.
func (s *State) CrashDriverstation() bool { return s.crashDriverstation.Load() }

// Tag period setters/getters, one per outbound tag.
// A period of 0 suppresses the tag; n>0 emits it when
// (packets_sent+offset)%n == 0.
func (s *State) SetRumbleFrequency(n uint8)         { s.rumbleM.Store(uint32(n)) }
func (s *State) SetDiskUsageFrequency(n uint8)      { s.diskM.Store(uint32(n)) }
func (s *State) SetCPUUsageFrequency(n uint8)       { s.cpuM.Store(uint32(n)) }
func (s *State) SetRAMUsageFrequency(n uint8)       { s.ramM.Store(uint32(n)) }
func (s *State) SetPDPPortReportFrequency(n uint8)  { s.pdpPortM.Store(uint32(n)) }
func (s *State) SetPDPPowerReportFrequency(n uint8) { s.pdpPowerM.Store(uint32(n)) }
func (s *State) SetCANUsageFrequency(n uint8)       { s.canM.Store(uint32(n)) }

func (s *State) RumbleFrequency() uint8         { return uint8(s.rumbleM.Load()) }
func (s *State) DiskUsageFrequency() uint8      { return uint8(s.diskM.Load()) }
func (s *State) CPUUsageFrequency() uint8       { return uint8(s.cpuM.Load()) }
func (s *State) RAMUsageFrequency() uint8       { return uint8(s.ramM.Load()) }
func (s *State) PDPPortReportFrequency() uint8  { return uint8(s.pdpPortM.Load()) }
func (s *State) PDPPowerReportFrequency() uint8 { return uint8(s.pdpPowerM.Load()) }
func (s *State) CANUsageFrequency() uint8       { return uint8(s.canM.Load()) }

// --- received packet ---

// UpdateReceived replaces the last decoded driver→robot header.
func (s *State) UpdateReceived(h packet.RequestHeader) {
	s.receivedMu.Lock()
	s.received = h
	s.receivedMu.Unlock()
}

// Received returns the last decoded driver→robot header.
func (s *State) Received() packet.RequestHeader {
	s.receivedMu.Lock()
	defer s.receivedMu.Unlock()
	return s.received
}

func (s *State) clearReceived() {
	s.receivedMu.Lock()
	s.received = packet.RequestHeader{}
	s.receivedMu.Unlock()
}

// --- observed control (mutated by the UDP loop and by external setters
// like SetEstopped) ---

// ObservedControl returns the current observed control code and its
// tracked sequence number.
func (s *State) ObservedControl() (packet.ControlCode, uint16) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	return s.control, s.obsSeq
}

// UpdateObservedControl applies fn to the observed control code under
// lock and returns the new value, e.g. merging a newly-received control
// code while ORing in the sticky estop and brownout bits.
func (s *State) UpdateObservedControl(fn func(packet.ControlCode) packet.ControlCode) packet.ControlCode {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.control = fn(s.control)
	return s.control
}

// SetObservedSeq sets the tracked sequence number used for drop
// accounting.
func (s *State) SetObservedSeq(seq uint16) {
	s.controlMu.Lock()
	s.obsSeq = seq
	s.controlMu.Unlock()
}

// SetEstopped latches the observed estop bit when v is true, independent
// of the driver-commanded control code; v=false leaves a latched bit set.
func (s *State) SetEstopped(v bool) {
	s.UpdateObservedControl(func(c packet.ControlCode) packet.ControlCode {
		return c.WithEstop(c.Estop() || v)
	})
}

// IsEstopped reports the observed estop bit.
func (s *State) IsEstopped() bool {
	c, _ := s.ObservedControl()
	return c.Estop()
}

// IsBrownoutProtection reports the observed brownout_protection bit.
func (s *State) IsBrownoutProtection() bool {
	c, _ := s.ObservedControl()
	return c.BrownoutProtection()
}

// ForceDisable applies the force-disable safety transition: the
// observed control becomes {disabled, teleop} while estop and brownout
// are preserved.
func (s *State) ForceDisable() packet.ControlCode {
	return s.UpdateObservedControl(func(c packet.ControlCode) packet.ControlCode {
		return c.ForceDisabled()
	})
}

// --- robot-reported status (observe_robot_* setters) ---

// ObserveRobotCode sets the has_robot_code status bit.
func (s *State) ObserveRobotCode(hasCode bool) {
	s.statusMu.Lock()
	s.status = s.status.WithHasRobotCode(hasCode)
	s.statusMu.Unlock()
}

// ObserveRobotMode sets the status mode flags to m (teleop/auton/test),
// backing observe_robot_{teleop,autonomus,test}.
func (s *State) ObserveRobotMode(m packet.Mode) {
	s.statusMu.Lock()
	s.status = s.status.WithMode(m)
	s.statusMu.Unlock()
}

// ObserveRobotDisabled clears the status mode flags, backing
// observe_robot_disabled.
func (s *State) ObserveRobotDisabled() {
	s.statusMu.Lock()
	s.status = s.status.WithMode(packet.ModeTeleop)
	s.statusMu.Unlock()
}

// ObserveRobotVoltage sets the battery voltage reported in the response
// header.
func (s *State) ObserveRobotVoltage(volts float32) {
	s.statusMu.Lock()
	s.batteryVolts = volts
	s.statusMu.Unlock()
}

// ObserveRobotBrownout latches the observed brownout_protection bit: like
// SetEstopped it ORs active into the bit, so false never clears it; only
// ResetAllValues does.
func (s *State) ObserveRobotBrownout(active bool) {
	s.UpdateObservedControl(func(c packet.ControlCode) packet.ControlCode {
		return c.WithBrownoutProtection(c.BrownoutProtection() || active)
	})
}

// RequestTime and RequestDisable raise the request_time and
// request_disable bits on the outbound driverstation_request_code.
func (s *State) RequestTime(v bool) {
	s.statusMu.Lock()
	s.dsRequest = s.dsRequest.WithRequestTime(v)
	s.statusMu.Unlock()
}

func (s *State) RequestDisable(v bool) {
	s.statusMu.Lock()
	s.dsRequest = s.dsRequest.WithRequestDisable(v)
	s.statusMu.Unlock()
}

// StatusSnapshot returns the current status, battery and
// driverstation-request fields as a single consistent snapshot for
// building a response packet.
func (s *State) StatusSnapshot() (packet.StatusCode, float32, packet.DriverstationRequestCode) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status, s.batteryVolts, s.dsRequest
}

// ClearDSRequestDisable clears the request_disable bit, used when the
// driver packet reports disabled.
func (s *State) ClearDSRequestDisable() {
	s.statusMu.Lock()
	s.dsRequest = s.dsRequest.WithRequestDisable(false)
	s.statusMu.Unlock()
}

// ClearObservedStatus zeroes the status field, used when
// clear_observed_status_on_send is enabled.
func (s *State) ClearObservedStatus() {
	s.statusMu.Lock()
	s.status = 0
	s.statusMu.Unlock()
}

// --- joysticks ---

// SetJoystick installs or clears joystick index i (0..5).
func (s *State) SetJoystick(i int, j *packet.Joystick) {
	s.joystickMu.Lock()
	s.joysticks[i] = j
	s.joystickMu.Unlock()
}

// Joystick returns joystick index i, or nil if absent.
func (s *State) Joystick(i int) *packet.Joystick {
	s.joystickMu.Lock()
	defer s.joystickMu.Unlock()
	return s.joysticks[i]
}

func (s *State) clearJoysticks() {
	s.joystickMu.Lock()
	s.joysticks = [6]*packet.Joystick{}
	s.joystickMu.Unlock()
}

// --- countdown ---

// SetCountdown replaces the countdown value (nil clears it). Unlike
// TimeData, countdown has no merge-on-absence behavior: every packet's
// presence/absence of tag 0x07 fully determines the stored value.
func (s *State) SetCountdown(v *float32) {
	s.countdownMu.Lock()
	s.countdown = v
	s.countdownMu.Unlock()
}

// Countdown returns the most recently stored countdown value.
func (s *State) Countdown() *float32 {
	s.countdownMu.Lock()
	defer s.countdownMu.Unlock()
	return s.countdown
}

func (s *State) clearCountdown() {
	s.SetCountdown(nil)
}

// --- time data ---

// MergeTimeData applies only the present fields of incoming onto the
// stored TimeData; absent fields leave the stored values untouched.
func (s *State) MergeTimeData(incoming packet.TimeData) {
	s.timeMu.Lock()
	defer s.timeMu.Unlock()
	if incoming.HasWhen {
		s.time.UpdateTime(incoming.When)
	}
	if incoming.HasZone {
		s.time.UpdateZone(incoming.Zone)
	}
}

// TimeData returns the current merged time data.
func (s *State) TimeData() packet.TimeData {
	s.timeMu.Lock()
	defer s.timeMu.Unlock()
	return s.time
}

func (s *State) clearTimeData() {
	s.timeMu.Lock()
	s.time = packet.TimeData{}
	s.timeMu.Unlock()
}

// --- tag data ---

// SetRumble, SetDiskUsage, SetCPUUsage, SetRAMUsage, SetPDPPortReport,
// SetPDPPowerReport and SetCANUsage install the optional outbound tag
// payloads. A nil value suppresses emission regardless of the
// configured frequency.
func (s *State) SetRumble(v *packet.Rumble) {
	s.tagMu.Lock()
	s.tagData.Rumble = v
	s.tagMu.Unlock()
}

func (s *State) SetDiskUsage(v *uint64) {
	s.tagMu.Lock()
	s.tagData.Disk = v
	s.tagMu.Unlock()
}

func (s *State) SetCPUUsage(v *packet.CPUUsage) {
	s.tagMu.Lock()
	s.tagData.CPU = v
	s.tagMu.Unlock()
}

func (s *State) SetRAMUsage(v *uint64) {
	s.tagMu.Lock()
	s.tagData.RAM = v
	s.tagMu.Unlock()
}

func (s *State) SetPDPPortReport(v *packet.PDPPortReport) {
	s.tagMu.Lock()
	s.tagData.PDPPort = v
	s.tagMu.Unlock()
}

func (s *State) SetPDPPowerReport(v *packet.PDPPowerReport) {
	s.tagMu.Lock()
	s.tagData.PDPPower = v
	s.tagMu.Unlock()
}

func (s *State) SetCANUsage(v *packet.CANUsage) {
	s.tagMu.Lock()
	s.tagData.CAN = v
	s.tagMu.Unlock()
}

// TagDataSnapshot returns a copy of the tag data struct for the UDP
// thread's per-response scheduling decision.
func (s *State) TagDataSnapshot() TagData {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()
	return s.tagData
}

// --- reset ---

// HardReset clears counters, received packet, joystick array, countdown
// and time, preserving only the sticky observed bits (estop,
// brownout).
func (s *State) HardReset() {
	s.bytesSent.Store(0)
	s.bytesReceived.Store(0)
	s.packetsSent.Store(0)
	s.packetsReceived.Store(0)
	s.packetsDropped.Store(0)
	s.clearReceived()
	s.clearJoysticks()
	s.clearCountdown()
	s.clearTimeData()
	s.connected.Store(false)
	s.requestInfo.Store(false)

	s.UpdateObservedControl(func(c packet.ControlCode) packet.ControlCode {
		return packet.ControlCode(0).
			WithEstop(c.Estop()).
			WithBrownoutProtection(c.BrownoutProtection())
	})
	s.SetObservedSeq(0)
}

// ResetAllValues performs a hard reset and additionally clears the sticky
// observed bits, the robot-reported status and the tag data. This is the
// one explicit reset that releases a latched estop.
func (s *State) ResetAllValues() {
	s.HardReset()

	s.UpdateObservedControl(func(packet.ControlCode) packet.ControlCode {
		return packet.ControlCode(0)
	})

	s.statusMu.Lock()
	s.status = 0
	s.batteryVolts = 0
	s.dsRequest = 0
	s.statusMu.Unlock()

	s.tagMu.Lock()
	s.tagData = TagData{}
	s.tagMu.Unlock()
}
