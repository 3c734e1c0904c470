package driverstation

import (
	"context"
	"net"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/wire"
)

func (d *Daemon) runUDP(ctx context.Context) error {
	for d.alive(ctx) {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: d.BindPort})
		if err != nil {
			d.report("udp bind failed", "error", pkgerrors.Wrapf(err, "bind :%d", d.BindPort))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		d.tickLoop(ctx, conn)
		conn.Close()
	}
	return nil
}

// tickLoop sends one core packet per tick and reads the robot's response
// before sleeping out the remainder of the cadence.
func (d *Daemon) tickLoop(ctx context.Context, conn *net.UDPConn) {
	tick := d.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	sendBuf := make([]byte, 2048)
	recvBuf := make([]byte, 2048)
	robotAddr := &net.UDPAddr{IP: d.RobotIP, Port: d.SendPort}

	for d.alive(ctx) {
		if d.reconnect.Swap(false) {
			return
		}
		start := time.Now()

		n, err := d.buildPacket(sendBuf)
		if err != nil {
			d.report("packet encode failed", "error", err)
		} else if _, err := conn.WriteToUDP(sendBuf[:n], robotAddr); err != nil {
			d.connected.Store(false)
			d.report("udp send failed", "error", err)
			d.Reconnect()
		} else {
			d.receiveResponse(conn, recvBuf, tick)
		}

		remaining := tick - time.Since(start)
		if remaining > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(remaining):
			}
		}
	}
}

// buildPacket encodes the next driver→robot packet into buf under the
// packet-data lock, advancing the sequence counter and clearing one-shot
// request bits.
func (d *Daemon) buildPacket(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := wire.NewWriter(buf)
	hdr := packet.RequestHeader{
		Sequence: d.seq,
		Control:  d.control,
		Request:  d.request,
		Station:  d.station,
	}
	if err := packet.EncodeRequestHeader(w, hdr); err != nil {
		return 0, err
	}

	for _, j := range d.joysticks {
		if j == nil {
			break
		}
		if err := packet.WriteJoystickTag(w, j); err != nil {
			return 0, err
		}
	}

	if d.sendTime {
		if err := packet.WriteTimeTag(w, time.Now()); err != nil {
			return 0, err
		}
		if d.Timezone != "" {
			if err := packet.WriteTimezoneTag(w, d.Timezone); err != nil {
				return 0, err
			}
		}
		d.sendTime = false
	}

	d.seq++
	d.request = packet.RequestCode(0).WithNormal(true)
	return w.Len(), nil
}

func (d *Daemon) receiveResponse(conn *net.UDPConn, buf []byte, tick time.Duration) {
	_ = conn.SetReadDeadline(time.Now().Add(tick))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		d.connected.Store(false)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return
		}
		d.report("udp receive error", "error", err)
		d.Reconnect()
		return
	}

	r := wire.NewReader(buf[:n])
	hdr, err := packet.DecodeResponseHeader(r)
	if err != nil {
		d.connected.Store(false)
		d.report("response parse error", "error", err)
		return
	}

	d.obsMu.Lock()
	d.observed = hdr
	d.hasObserved = true
	d.obsMu.Unlock()

	if hdr.DriverstationRequest.RequestTime() {
		d.mu.Lock()
		d.sendTime = true
		d.mu.Unlock()
	}
	if hdr.DriverstationRequest.RequestDisable() {
		d.SetEnabled(false)
	}

	if err := packet.ReadOutboundTags(r, telemetryAcceptor{d}); err != nil {
		d.report("response tag parse error", "error", err)
	}

	d.connected.Store(true)
}

// telemetryAcceptor installs decoded robot tags into the daemon's
// telemetry store.
type telemetryAcceptor struct{ d *Daemon }

func (a telemetryAcceptor) AcceptRumble(v packet.Rumble) {
	a.d.telMu.Lock()
	a.d.tel.Rumble = &v
	a.d.telMu.Unlock()
}

func (a telemetryAcceptor) AcceptDiskUsage(v uint64) {
	a.d.telMu.Lock()
	a.d.tel.Disk = &v
	a.d.telMu.Unlock()
}

func (a telemetryAcceptor) AcceptCPUUsage(v packet.CPUUsage) {
	a.d.telMu.Lock()
	a.d.tel.CPU = &v
	a.d.telMu.Unlock()
}

func (a telemetryAcceptor) AcceptRAMUsage(v uint64) {
	a.d.telMu.Lock()
	a.d.tel.RAM = &v
	a.d.telMu.Unlock()
}

func (a telemetryAcceptor) AcceptPDPPortReport(v packet.PDPPortReport) {
	a.d.telMu.Lock()
	a.d.tel.PDPPort = &v
	a.d.telMu.Unlock()
}

func (a telemetryAcceptor) AcceptPDPPowerReport(v packet.PDPPowerReport) {
	a.d.telMu.Lock()
	a.d.tel.PDPPower = &v
	a.d.telMu.Unlock()
}

func (a telemetryAcceptor) AcceptCANUsage(v packet.CANUsage) {
	a.d.telMu.Lock()
	a.d.tel.CAN = &v
	a.d.telMu.Unlock()
}
