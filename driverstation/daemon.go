// Package driverstation implements the driver-station side of the
// control protocol: the mirror image of the robot daemon. It originates
// the driver→robot core packet on a fixed cadence, decodes the robot's
// responses, and runs the framed TCP client against the robot's
// auxiliary port.
package driverstation

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/packet"
)

const (
	// RobotUDPPort is the robot's receive port we send core packets to.
	RobotUDPPort = 1110
	// LocalUDPPort is the local bind port the robot replies to.
	LocalUDPPort = 1150
	// RobotTCPPort is the robot's auxiliary channel port.
	RobotTCPPort = 1740

	// DefaultTick is the steady-state send cadence.
	DefaultTick = 20 * time.Millisecond
)

const dsOutboxDepth = 64

// Daemon is one driver station's connection to one robot.
type Daemon struct {
	ID uuid.UUID

	// RobotIP is the resolved robot address. Team-number fallback tables
	// are the caller's concern.
	RobotIP net.IP

	// SendPort, BindPort and TCPPort default to the protocol's fixed
	// ports; tests override them.
	SendPort int
	BindPort int
	TCPPort  int

	// Tick is the send cadence; zero means DefaultTick.
	Tick time.Duration

	// Timezone is the IANA name sent alongside the time tag when the
	// robot requests a time sync. Empty suppresses the timezone tag.
	Timezone string

	// Alive is sampled at loop boundaries, as on the robot side.
	Alive func() bool

	// OnZeroCode, OnPlainMessage, OnTypedMessage and OnVersionInfo are
	// invoked from the TCP goroutine as robot messages arrive. Any may be
	// nil.
	OnZeroCode     func(text string)
	OnPlainMessage func(packet.PlainMessage)
	OnTypedMessage func(packet.TypedMessage)
	OnVersionInfo  func(packet.VersionInfoMessage)

	log     logging.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	control   packet.ControlCode
	request   packet.RequestCode
	station   packet.AllianceStation
	joysticks [6]*packet.Joystick
	seq       uint16
	sendTime  bool

	obsMu       sync.Mutex
	observed    packet.ResponseHeader
	hasObserved bool

	telMu sync.Mutex
	tel   Telemetry

	connected atomic.Bool
	reconnect atomic.Bool

	tcpOutbox chan []byte
}

// Telemetry is the robot-reported tag data accumulated from responses.
type Telemetry struct {
	Rumble   *packet.Rumble
	Disk     *uint64
	CPU      *packet.CPUUsage
	RAM      *uint64
	PDPPort  *packet.PDPPortReport
	PDPPower *packet.PDPPowerReport
	CAN      *packet.CANUsage
}

// New builds a Daemon targeting robotIP. A nil logger gets the
// development default.
func New(robotIP net.IP, log logging.Logger) *Daemon {
	if log == nil {
		log = logging.NewDevelopment()
	}
	id := uuid.New()
	d := &Daemon{
		ID:        id,
		RobotIP:   robotIP,
		SendPort:  RobotUDPPort,
		BindPort:  LocalUDPPort,
		TCPPort:   RobotTCPPort,
		Tick:      DefaultTick,
		log:       log.Named("dscomm").Named(id.String()[:8]),
		limiter:   rate.NewLimiter(rate.Limit(20), 40),
		tcpOutbox: make(chan []byte, dsOutboxDepth),
		Alive:     func() bool { return true },
	}
	d.request = d.request.WithNormal(true)
	d.Timezone = time.Local.String()
	return d
}

// Run starts the UDP send/receive loop and the TCP client under one
// errgroup and blocks until both unwind.
func (d *Daemon) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return d.runUDP(ctx) })
	eg.Go(func() error { return d.runTCP(ctx) })
	return eg.Wait()
}

func (d *Daemon) alive(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	return d.Alive == nil || d.Alive()
}

func (d *Daemon) report(msg string, fields ...interface{}) {
	if !d.limiter.Allow() {
		return
	}
	d.log.Warnw(msg, fields...)
}

// --- packet data setters ---

// SetEnabled toggles the enabled bit of the outgoing control code.
func (d *Daemon) SetEnabled(v bool) {
	d.mu.Lock()
	d.control = d.control.WithEnabled(v)
	d.mu.Unlock()
}

// SetMode selects the outgoing operating mode.
func (d *Daemon) SetMode(m packet.Mode) {
	d.mu.Lock()
	d.control = d.control.WithMode(m)
	d.mu.Unlock()
}

// SetEstop raises or lowers the commanded estop bit.
func (d *Daemon) SetEstop(v bool) {
	d.mu.Lock()
	d.control = d.control.WithEstop(v)
	d.mu.Unlock()
}

// SetAllianceStation selects the station identity sent with each packet.
func (d *Daemon) SetAllianceStation(s packet.AllianceStation) {
	d.mu.Lock()
	d.station = s
	d.mu.Unlock()
}

// SetJoystick installs or clears joystick slot i (0..5). Slots are sent
// in index order; a nil slot and everything after it is omitted.
func (d *Daemon) SetJoystick(i int, j *packet.Joystick) {
	if i < 0 || i >= 6 {
		return
	}
	d.mu.Lock()
	d.joysticks[i] = j
	d.mu.Unlock()
}

// RequestRestartCode asks the robot to restart its user code with the
// next packet. One-shot: the bit clears after one send.
func (d *Daemon) RequestRestartCode() {
	d.mu.Lock()
	d.request = d.request.WithRestartCode(true)
	d.mu.Unlock()
}

// RequestRestartRio asks the robot to reboot with the next packet.
// One-shot, like RequestRestartCode.
func (d *Daemon) RequestRestartRio() {
	d.mu.Lock()
	d.request = d.request.WithRestartRobot(true)
	d.mu.Unlock()
}

// Reconnect tears down and recreates the UDP socket at the next tick.
func (d *Daemon) Reconnect() {
	d.connected.Store(false)
	d.reconnect.Store(true)
}

// --- observed getters ---

// IsConnected reports whether a response arrived within the last tick.
func (d *Daemon) IsConnected() bool { return d.connected.Load() }

// Observed returns the last decoded robot response header and whether one
// has arrived since the last reconnect.
func (d *Daemon) Observed() (packet.ResponseHeader, bool) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	return d.observed, d.hasObserved
}

// ObservedVoltage returns the robot's reported battery voltage.
func (d *Daemon) ObservedVoltage() float32 {
	h, ok := d.Observed()
	if !ok {
		return 0
	}
	return float32(h.BatteryInt) + float32(h.BatteryFrac)/255
}

// TelemetrySnapshot returns a copy of the accumulated robot telemetry.
func (d *Daemon) TelemetrySnapshot() Telemetry {
	d.telMu.Lock()
	defer d.telMu.Unlock()
	return d.tel
}
