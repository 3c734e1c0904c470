package driverstation

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frcnet/robotcom/hooks"
	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/robotd"
	"github.com/frcnet/robotcom/state"
	"github.com/frcnet/robotcom/wire"
)

func TestBuildPacket(t *testing.T) {
	d := New(net.IPv4(127, 0, 0, 1), logging.NewTestLogger(t))
	d.SetMode(packet.ModeAuton)
	d.SetEnabled(true)
	d.SetAllianceStation(packet.Blue2)
	d.RequestRestartCode()

	var j packet.Joystick
	j.SetAxes([]int8{5, -5})
	d.SetJoystick(0, &j)

	buf := make([]byte, 256)
	n, err := d.buildPacket(buf)
	require.NoError(t, err)

	r := wire.NewReader(buf[:n])
	hdr, err := packet.DecodeRequestHeader(r)
	require.NoError(t, err)
	require.Equal(t, uint16(0), hdr.Sequence)
	require.True(t, hdr.Control.Enabled())
	require.True(t, hdr.Control.IsAuton())
	require.True(t, hdr.Request.RestartCode())
	require.Equal(t, packet.Blue2, hdr.Station)
	require.True(t, r.HasMore())

	// second packet: sequence advanced, one-shot restart bit cleared
	n, err = d.buildPacket(buf)
	require.NoError(t, err)
	hdr, err = packet.DecodeRequestHeader(wire.NewReader(buf[:n]))
	require.NoError(t, err)
	require.Equal(t, uint16(1), hdr.Sequence)
	require.False(t, hdr.Request.RestartCode())
	require.True(t, hdr.Request.Normal())
}

func TestBuildPacketTimeSync(t *testing.T) {
	d := New(net.IPv4(127, 0, 0, 1), logging.NewTestLogger(t))
	d.Timezone = "America/Detroit"
	d.mu.Lock()
	d.sendTime = true
	d.mu.Unlock()

	buf := make([]byte, 256)
	n, err := d.buildPacket(buf)
	require.NoError(t, err)

	r := wire.NewReader(buf[:n])
	_, err = packet.DecodeRequestHeader(r)
	require.NoError(t, err)

	var acc timeAcceptor
	require.NoError(t, packet.ReadInboundTags(r, &acc))
	require.True(t, acc.td.HasWhen)
	require.Equal(t, "America/Detroit", acc.td.Zone)

	// the time request is one-shot
	n, err = d.buildPacket(buf)
	require.NoError(t, err)
	require.Equal(t, 6, n)
}

type timeAcceptor struct {
	td packet.TimeData
}

func (a *timeAcceptor) AcceptJoystick(int, *packet.Joystick) {}
func (a *timeAcceptor) AcceptCountdown(*float32)            {}
func (a *timeAcceptor) AcceptTimeData(td packet.TimeData)   { a.td = td }

func TestObservedVoltage(t *testing.T) {
	d := New(net.IPv4(127, 0, 0, 1), logging.NewTestLogger(t))
	require.Zero(t, d.ObservedVoltage())

	d.obsMu.Lock()
	d.observed = packet.ResponseHeader{BatteryInt: 12, BatteryFrac: 127}
	d.hasObserved = true
	d.obsMu.Unlock()

	require.InDelta(t, 12.498, d.ObservedVoltage(), 0.01)
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// TestEndToEnd runs a robot daemon and a driver-station daemon against
// each other over loopback.
func TestEndToEnd(t *testing.T) {
	log := logging.NewTestLogger(t)

	st := state.New()
	st.SetConnectionTimeoutMs(1000)
	st.SetReadBlockTimeoutMs(50)
	h := hooks.New(log)

	robot := robotd.New(st, h, log)
	robot.RecvPort = freeUDPPort(t)
	robot.SendPort = freeUDPPort(t)
	robot.ListenPort = freeTCPPort(t)

	ds := New(net.IPv4(127, 0, 0, 1), log)
	ds.SendPort = robot.RecvPort
	ds.BindPort = robot.SendPort
	ds.TCPPort = robot.ListenPort
	ds.SetMode(packet.ModeTeleop)
	ds.SetEnabled(true)

	ctx, cancel := context.WithCancel(context.Background())
	robotDone := make(chan struct{})
	dsDone := make(chan struct{})
	go func() {
		defer close(robotDone)
		_ = robot.Run(ctx)
	}()
	go func() {
		defer close(dsDone)
		_ = ds.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-robotDone
		<-dsDone
	})

	st.ObserveRobotVoltage(11.5)
	st.ObserveRobotCode(true)

	require.Eventually(t, ds.IsConnected, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, st.IsConnected, 5*time.Second, 20*time.Millisecond)

	// the robot observed our commanded enabled teleop
	require.Eventually(t, func() bool {
		c, _ := st.ObservedControl()
		return c.Enabled() && c.IsTeleop()
	}, 5*time.Second, 20*time.Millisecond)

	// and we observed the robot's status back
	require.Eventually(t, func() bool {
		hdr, ok := ds.Observed()
		return ok && hdr.Status.HasRobotCode()
	}, 5*time.Second, 20*time.Millisecond)
	require.InDelta(t, 11.5, ds.ObservedVoltage(), 0.05)

	// robot-side telemetry tags flow back to the driver station
	disk := uint64(1 << 30)
	st.SetDiskUsage(&disk)
	st.SetDiskUsageFrequency(1)
	require.Eventually(t, func() bool {
		tel := ds.TelemetrySnapshot()
		return tel.Disk != nil && *tel.Disk == disk
	}, 5*time.Second, 20*time.Millisecond)

	// estop commanded from the driver station latches on the robot
	ds.SetEstop(true)
	require.Eventually(t, st.IsEstopped, 5*time.Second, 20*time.Millisecond)
	ds.SetEstop(false)
	time.Sleep(100 * time.Millisecond)
	require.True(t, st.IsEstopped())
}
