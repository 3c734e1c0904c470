package driverstation

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/wire"
)

const tcpFrameMaxPayload = 4096

func (d *Daemon) runTCP(ctx context.Context) error {
	addr := net.JoinHostPort(d.RobotIP.String(), strconv.Itoa(d.TCPPort))
	for d.alive(ctx) {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			d.report("tcp dial failed", "error", pkgerrors.Wrapf(err, "dial %s", addr))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		d.serveConn(ctx, conn)
		conn.Close()
	}
	return nil
}

// serveConn drains robot messages and pushes queued outbound frames over
// one auxiliary connection, with the same peek-then-read framing
// discipline the robot side uses.
func (d *Daemon) serveConn(ctx context.Context, conn net.Conn) {
	br := bufio.NewReaderSize(conn, tcpFrameMaxPayload+2)

	for d.alive(ctx) {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Millisecond))
		peek, err := br.Peek(2)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				d.drainOutbox(conn)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if err == io.EOF {
				return
			}
			d.report("tcp read error", "error", err)
			return
		}

		length := int(binary.BigEndian.Uint16(peek))
		if length+2 > br.Size() {
			d.report("tcp frame exceeds buffer", "length", length)
			return
		}

		// Peek the whole frame rather than checking Buffered: Peek is
		// what refills the buffer, so a frame split across segments
		// accumulates here instead of stalling.
		frame, err := br.Peek(length + 2)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				d.drainOutbox(conn)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if err == io.EOF {
				return
			}
			d.report("tcp frame read error", "error", err)
			return
		}
		d.dispatchMessage(frame[2 : length+2])
		if _, err := br.Discard(length + 2); err != nil {
			return
		}
		d.drainOutbox(conn)
		time.Sleep(10 * time.Millisecond)
	}
}

// dispatchMessage routes one robot→driver message payload by its kind
// byte. A zero-length payload is a keepalive.
func (d *Daemon) dispatchMessage(payload []byte) {
	if len(payload) == 0 {
		return
	}
	kind := payload[0]
	r := wire.NewReader(payload[1:])
	switch kind {
	case packet.MsgKindZeroCode:
		text, err := r.ReadStr(r.Remaining())
		if err != nil {
			d.report("zero-code message parse error", "error", err)
			return
		}
		if d.OnZeroCode != nil {
			d.OnZeroCode(text)
		}
	case packet.MsgKindPlain:
		m, err := packet.ReadPlainMessageBody(r)
		if err != nil {
			d.report("plain message parse error", "error", err)
			return
		}
		if d.OnPlainMessage != nil {
			d.OnPlainMessage(m)
		}
	case packet.MsgKindTyped:
		m, err := packet.ReadTypedMessageBody(r)
		if err != nil {
			d.report("typed message parse error", "error", err)
			return
		}
		if d.OnTypedMessage != nil {
			d.OnTypedMessage(m)
		}
	case packet.MsgKindVersionInfo:
		m, err := packet.ReadVersionInfoBody(r)
		if err != nil {
			d.report("version info parse error", "error", err)
			return
		}
		if d.OnVersionInfo != nil {
			d.OnVersionInfo(m)
		}
	default:
		d.report("unknown message kind", "kind", kind)
	}
}

func (d *Daemon) drainOutbox(conn net.Conn) {
	for {
		select {
		case frame := <-d.tcpOutbox:
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			if _, err := conn.Write(frame); err != nil {
				d.report("tcp write failed", "error", err)
				return
			}
		default:
			return
		}
	}
}

func (d *Daemon) enqueue(frame []byte) {
	select {
	case d.tcpOutbox <- frame:
	default:
		d.report("tcp outbox full, dropping frame")
	}
}

// SendControllerInfo queues a controller-info frame for the robot.
func (d *Daemon) SendControllerInfo(c packet.ControllerInfo) error {
	return d.sendFramed(func(w *wire.Writer) error { return packet.WriteControllerInfo(w, c) })
}

// SendMatchInfo queues a match-info frame.
func (d *Daemon) SendMatchInfo(m packet.MatchInfo) error {
	return d.sendFramed(func(w *wire.Writer) error { return packet.WriteMatchInfo(w, m) })
}

// SendGameData queues a game-data frame.
func (d *Daemon) SendGameData(data string) error {
	return d.sendFramed(func(w *wire.Writer) error { return packet.WriteGameData(w, data) })
}

// SendKeepalive queues a zero-length frame, which the robot treats as a
// request-to-emit.
func (d *Daemon) SendKeepalive() error {
	return d.sendFramed(func(*wire.Writer) error { return nil })
}

func (d *Daemon) sendFramed(write func(w *wire.Writer) error) error {
	buf := make([]byte, tcpFrameMaxPayload)
	w := wire.NewWriter(buf)
	finish, err := w.SizeGuard16()
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		return err
	}
	if err := finish(); err != nil {
		return err
	}
	frame := append([]byte(nil), w.Bytes()...)
	d.enqueue(frame)
	return nil
}
