package robotd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frcnet/robotcom/hooks"
	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/state"
	"github.com/frcnet/robotcom/wire"
)

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

// waitForUDPBind blocks until port is bound by the daemon's goroutine,
// avoiding a race where a test sends its first packet before the
// daemon's UDP listener exists.
func waitForUDPBind(t *testing.T, port int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		probe, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
		if err != nil {
			return
		}
		probe.Close()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for daemon to bind udp port %d", port)
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// testHarness wires a daemon to an ephemeral port pair and a fake
// driver-station socket.
type testHarness struct {
	st     *state.State
	hooks  *hooks.Hooks
	daemon *Daemon
	client *net.UDPConn
	robot  *net.UDPAddr
}

func newHarness(t *testing.T) *testHarness {
	return newHarnessWith(t, nil)
}

// newHarnessWith lets a test configure the daemon (callbacks, versions)
// before its loops start.
func newHarnessWith(t *testing.T, configure func(*Daemon)) *testHarness {
	t.Helper()

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	log := logging.NewTestLogger(t)
	st := state.New()
	st.SetConnectionTimeoutMs(500)
	st.SetReadBlockTimeoutMs(50)
	h := hooks.New(log)

	d := New(st, h, log)
	d.RecvPort = freeUDPPort(t)
	d.SendPort = client.LocalAddr().(*net.UDPAddr).Port
	d.ListenPort = freeTCPPort(t)
	if configure != nil {
		configure(d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitForUDPBind(t, d.RecvPort)

	return &testHarness{
		st:     st,
		hooks:  h,
		daemon: d,
		client: client,
		robot:  &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: d.RecvPort},
	}
}

func (h *testHarness) send(t *testing.T, pkt []byte) {
	t.Helper()
	_, err := h.client.WriteToUDP(pkt, h.robot)
	require.NoError(t, err)
}

func (h *testHarness) recv(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, h.client.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := h.client.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n]
}

func corePacket(seq uint16, control, request, station uint8) []byte {
	return []byte{byte(seq >> 8), byte(seq), 0x01, control, request, station}
}

func TestMinimalHandshake(t *testing.T) {
	h := newHarness(t)

	// seq=1, enabled+teleop, normal, Red2
	h.send(t, corePacket(1, 0x04, 0x01, 0x01))
	resp := h.recv(t)

	require.GreaterOrEqual(t, len(resp), 8)
	require.Equal(t, []byte{0x00, 0x01, 0x01}, resp[:3])

	control := packet.ControlCode(resp[3])
	require.True(t, control.Enabled())
	require.True(t, control.IsTeleop())

	require.Eventually(t, h.st.IsConnected, time.Second, 10*time.Millisecond)
	require.Equal(t, uint64(1), h.st.PacketsReceived())
}

func TestEstopIsSticky(t *testing.T) {
	h := newHarness(t)

	h.send(t, corePacket(1, 0x80|0x04, 0x01, 0x00))
	resp := h.recv(t)
	require.True(t, packet.ControlCode(resp[3]).Estop())

	h.send(t, corePacket(2, 0x04, 0x01, 0x00))
	resp = h.recv(t)
	require.True(t, packet.ControlCode(resp[3]).Estop())
	require.True(t, h.st.IsEstopped())
}

func TestDroppedPacketAccounting(t *testing.T) {
	h := newHarness(t)

	h.send(t, corePacket(1, 0x04, 0x01, 0x00))
	h.recv(t)
	require.Eventually(t, h.st.IsConnected, time.Second, 10*time.Millisecond)

	h.send(t, corePacket(2, 0x04, 0x01, 0x00))
	h.recv(t)
	require.Zero(t, h.st.PacketsDropped())

	// jump from 2 to 6: three packets went missing
	h.send(t, corePacket(6, 0x04, 0x01, 0x00))
	h.recv(t)
	require.Eventually(t, func() bool { return h.st.PacketsDropped() == 3 }, time.Second, 10*time.Millisecond)
}

func TestParseErrorMarksDisconnected(t *testing.T) {
	h := newHarness(t)

	h.send(t, corePacket(1, 0x04, 0x01, 0x00))
	h.recv(t)
	require.Eventually(t, h.st.IsConnected, time.Second, 10*time.Millisecond)

	// invalid comm version: no response, connection marked down
	h.send(t, []byte{0x00, 0x02, 0x09, 0x04, 0x01, 0x00})
	require.Eventually(t, func() bool { return !h.st.IsConnected() }, time.Second, 10*time.Millisecond)
}

func TestConnectionTimeoutFlipsConnected(t *testing.T) {
	h := newHarness(t)

	h.send(t, corePacket(1, 0x04, 0x01, 0x00))
	h.recv(t)
	require.Eventually(t, h.st.IsConnected, time.Second, 10*time.Millisecond)

	// stop sending; within connection_timeout_ms the daemon must force
	// disable and drop the connection
	require.Eventually(t, func() bool { return !h.st.IsConnected() }, 2*time.Second, 20*time.Millisecond)

	c, _ := h.st.ObservedControl()
	require.False(t, c.Enabled())
}

func TestTagCadence(t *testing.T) {
	h := newHarness(t)

	disk := uint64(1 << 30)
	h.st.SetDiskUsage(&disk)
	h.st.SetDiskUsageFrequency(3)

	withDisk := 0
	for i := 0; i < 30; i++ {
		h.send(t, corePacket(uint16(i+1), 0x04, 0x01, 0x00))
		resp := h.recv(t)

		r := wire.NewReader(resp)
		_, err := packet.DecodeResponseHeader(r)
		require.NoError(t, err)

		var acc countingAcceptor
		require.NoError(t, packet.ReadOutboundTags(r, &acc))
		if acc.disk {
			withDisk++
		}
	}
	require.Equal(t, 10, withDisk)
}

type countingAcceptor struct {
	disk bool
}

func (a *countingAcceptor) AcceptRumble(packet.Rumble)                 {}
func (a *countingAcceptor) AcceptDiskUsage(uint64)                     { a.disk = true }
func (a *countingAcceptor) AcceptCPUUsage(packet.CPUUsage)             {}
func (a *countingAcceptor) AcceptRAMUsage(uint64)                      {}
func (a *countingAcceptor) AcceptPDPPortReport(packet.PDPPortReport)   {}
func (a *countingAcceptor) AcceptPDPPowerReport(packet.PDPPowerReport) {}
func (a *countingAcceptor) AcceptCANUsage(packet.CANUsage)             {}

func TestJoysticksInstalledAndReset(t *testing.T) {
	h := newHarness(t)

	var j packet.Joystick
	j.SetAxes([]int8{-1, 1})
	j.SetButtons(2, 0b11)

	buf := make([]byte, 128)
	w := wire.NewWriter(buf)
	require.NoError(t, packet.EncodeRequestHeader(w, packet.RequestHeader{
		Sequence: 1,
		Control:  packet.ControlCode(0).WithEnabled(true),
		Request:  packet.RequestCode(0).WithNormal(true),
		Station:  packet.Red1,
	}))
	require.NoError(t, packet.WriteJoystickTag(w, &j))

	h.send(t, w.Bytes())
	h.recv(t)

	require.Eventually(t, func() bool { return h.st.Joystick(0) != nil }, time.Second, 10*time.Millisecond)
	got := h.st.Joystick(0)
	require.Equal(t, 2, got.NumAxes())
	require.True(t, got.Button(0))

	// the next packet carries no joysticks, so slot 0 resets to absent
	h.send(t, corePacket(2, 0x04, 0x01, 0x00))
	h.recv(t)
	require.Eventually(t, func() bool { return h.st.Joystick(0) == nil }, time.Second, 10*time.Millisecond)
}

func TestCrashDriverstationBreaksVersion(t *testing.T) {
	h := newHarness(t)

	h.st.SetCrashDriverstation(true)
	h.send(t, corePacket(1, 0x04, 0x01, 0x00))
	resp := h.recv(t)
	require.NotEqual(t, uint8(packet.CommVersion), resp[2])
}

func TestBatterySplit(t *testing.T) {
	vi, vf := splitBattery(12.5)
	require.Equal(t, uint8(12), vi)
	require.Equal(t, uint8(127), vf)

	vi, vf = splitBattery(-1)
	require.Zero(t, vi)
	require.Zero(t, vf)
}

func TestModeHookFiresFromPackets(t *testing.T) {
	h := newHarness(t)

	teleop := make(chan struct{}, 1)
	h.hooks.SetTeleopHook(func() {
		select {
		case teleop <- struct{}{}:
		default:
		}
	})

	h.send(t, corePacket(1, 0x04, 0x01, 0x00))
	h.recv(t)

	select {
	case <-teleop:
	case <-time.After(time.Second):
		t.Fatal("teleop hook never fired")
	}
}
