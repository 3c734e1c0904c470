package robotd

import (
	"context"
	"math"
	"net"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/state"
	"github.com/frcnet/robotcom/wire"
)

// peerAddr, lastSuccess and the read buffers are confined to the UDP
// goroutine; nothing else touches them, so they need no lock.
type udpLoop struct {
	peerAddr    *net.UDPAddr
	lastSuccess time.Time
}

func (d *Daemon) runUDP(ctx context.Context) error {
	loop := &udpLoop{}
	for d.alive(ctx) {
		if d.st.TakeResetRequest() == state.ResetHard {
			d.hardReset(loop)
		}

		conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: d.RecvPort})
		if err != nil {
			d.reporter.Report("udp bind failed", "error", pkgerrors.Wrapf(err, "bind :%d", d.RecvPort))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		d.innerLoopUDP(ctx, conn, loop)
		conn.Close()
	}
	return nil
}

func (d *Daemon) hardReset(loop *udpLoop) {
	d.st.HardReset()
	loop.peerAddr = nil
	d.forceDisable()
}

// forceDisable applies the safety transition: observed and received
// control both become {disabled, teleop} while estop and brownout are
// preserved, then hook dispatch fires with an empty request.
func (d *Daemon) forceDisable() {
	old, _ := d.st.ObservedControl()
	newControl := d.st.ForceDisable()

	recv := d.st.Received()
	recv.Control = recv.Control.ForceDisabled()
	d.st.UpdateReceived(recv)

	d.hooks.Dispatch(old, newControl, packet.RequestCode(0))
}

func (d *Daemon) innerLoopUDP(ctx context.Context, conn *net.UDPConn, loop *udpLoop) {
	loop.lastSuccess = time.Now()
	recvBuf := make([]byte, 2048)
	sendBuf := make([]byte, 2048)

	for {
		if !d.alive(ctx) {
			return
		}
		if d.st.PeekResetRequest() != state.ResetNone {
			return
		}

		connTimeout := time.Duration(d.st.ConnectionTimeoutMs()) * time.Millisecond
		readTimeout := time.Duration(d.st.ReadBlockTimeoutMs()) * time.Millisecond
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		n, addr, err := conn.ReadFromUDP(recvBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if time.Since(loop.lastSuccess) > connTimeout {
					d.forceDisable()
					d.st.RequestHardReset()
					d.st.SetConnected(false)
					d.reporter.Report("udp connection timed out")
					return
				}
				d.forceDisable()
				continue
			}
			d.forceDisable()
			d.st.RequestHardReset()
			d.st.SetConnected(false)
			d.reporter.Report("udp receive error", "error", err)
			return
		}

		d.st.AddBytesReceived(uint64(n))

		if loop.peerAddr != nil && !loop.peerAddr.IP.Equal(addr.IP) && d.st.IsConnected() {
			if time.Since(loop.lastSuccess) > connTimeout {
				d.st.RequestHardReset()
				return
			}
			continue
		}
		if loop.peerAddr == nil || !loop.peerAddr.IP.Equal(addr.IP) {
			loop.peerAddr = addr
		}

		connectedBefore := d.st.IsConnected()

		r := wire.NewReader(recvBuf[:n])
		hdr, err := packet.DecodeRequestHeader(r)
		if err != nil {
			d.st.SetConnected(false)
			d.reporter.Report("udp parse error", "error", err)
			continue
		}

		d.st.AddPacketsReceived(1)
		d.st.UpdateReceived(hdr)

		oldControl, oldSeq := d.st.ObservedControl()
		newControl := d.st.UpdateObservedControl(func(old packet.ControlCode) packet.ControlCode {
			nc := old.
				WithMode(hdr.Control.Mode()).
				WithEnabled(hdr.Control.Enabled()).
				WithFMSAttached(hdr.Control.FMSAttached()).
				WithDSAttached(hdr.Control.DSAttached())
			nc = nc.WithEstop(old.Estop() || hdr.Control.Estop())
			nc = nc.WithBrownoutProtection(old.BrownoutProtection() || hdr.Control.BrownoutProtection())
			return nc
		})

		if connectedBefore && hdr.Sequence != oldSeq+1 {
			d.st.AddPacketsDropped(uint64(hdr.Sequence - oldSeq - 1))
		}
		d.st.SetObservedSeq(hdr.Sequence)

		status, battery, dsReq := d.st.StatusSnapshot()
		battInt, battFrac := splitBattery(battery)

		w := wire.NewWriter(sendBuf)
		resp := packet.ResponseHeader{
			Sequence:             hdr.Sequence,
			Control:              newControl,
			Status:               status,
			BatteryInt:           battInt,
			BatteryFrac:          battFrac,
			DriverstationRequest: dsReq,
		}
		if err := packet.EncodeResponseHeader(w, resp); err != nil {
			d.reporter.Report("encode response header failed", "error", err)
			continue
		}
		d.writeOutboundTags(w)

		out := w.Bytes()
		if d.st.CrashDriverstation() {
			// crash_driverstation: deliberately invalid protocol version.
			out[2] = 0
		}

		if loop.peerAddr != nil {
			sendAddr := &net.UDPAddr{IP: loop.peerAddr.IP, Port: d.SendPort}
			if _, err := conn.WriteToUDP(out, sendAddr); err != nil {
				d.st.SetConnected(false)
				d.reporter.Report("udp send failed", "error", err)
			} else {
				d.st.AddBytesSent(uint64(w.Len()))
				d.st.AddPacketsSent(1)
				d.st.SetConnected(true)
			}
		}

		if !hdr.Control.Enabled() {
			d.st.ClearDSRequestDisable()
		}
		if d.st.ClearObservedStatusOnSend() {
			d.st.ClearObservedStatus()
		}

		if err := packet.ReadInboundTags(r, stateTagAcceptor{d.st}); err != nil {
			d.reporter.Report("udp tag parse error", "error", err)
		}

		if hdr.Request.IsRequestingLibInfo() {
			d.st.SetRequestInfo(true)
		}

		loop.lastSuccess = time.Now()
		d.hooks.Dispatch(oldControl, newControl, hdr.Request)
	}
}

// writeOutboundTags appends every currently-due tag to w. The fixed
// per-tag offsets desynchronize emissions: rumble=0, disk=1, cpu=2,
// ram=3, pdp_port=4, pdp_power=5, can=6.
func (d *Daemon) writeOutboundTags(w *wire.Writer) {
	data := d.st.TagDataSnapshot()
	sent := d.st.PacketsSent()

	due := func(freq uint8, offset uint64) bool {
		return freq > 0 && (sent+offset)%uint64(freq) == 0
	}
	report := func(err error) {
		if err != nil {
			d.reporter.Report("tag encode failed", "error", err)
		}
	}

	if data.Rumble != nil && due(d.st.RumbleFrequency(), 0) {
		report(packet.WriteRumbleTag(w, *data.Rumble))
	}
	if data.Disk != nil && due(d.st.DiskUsageFrequency(), 1) {
		report(packet.WriteDiskUsageTag(w, *data.Disk))
	}
	if data.CPU != nil && due(d.st.CPUUsageFrequency(), 2) {
		report(packet.WriteCPUUsageTag(w, *data.CPU))
	}
	if data.RAM != nil && due(d.st.RAMUsageFrequency(), 3) {
		report(packet.WriteRAMUsageTag(w, *data.RAM))
	}
	if data.PDPPort != nil && due(d.st.PDPPortReportFrequency(), 4) {
		report(packet.WritePDPPortReportTag(w, *data.PDPPort))
	}
	if data.PDPPower != nil && due(d.st.PDPPowerReportFrequency(), 5) {
		report(packet.WritePDPPowerReportTag(w, *data.PDPPower))
	}
	if data.CAN != nil && due(d.st.CANUsageFrequency(), 6) {
		report(packet.WriteCANUsageTag(w, *data.CAN))
	}
}

func splitBattery(volts float32) (uint8, uint8) {
	if volts < 0 {
		volts = 0
	}
	whole := math.Floor(float64(volts))
	if whole > 255 {
		whole = 255
	}
	frac := (float64(volts) - whole) * 255
	return uint8(whole), uint8(frac)
}
