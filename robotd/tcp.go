package robotd

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

// tcpOutboxDepth bounds how many queued outbound messages the daemon
// holds before a slow driver station starts losing the newest ones.
const tcpOutboxDepth = 64

func (d *Daemon) runTCP(ctx context.Context) error {
	for d.alive(ctx) {
		ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(d.ListenPort)))
		if err != nil {
			d.reporter.Report("tcp bind failed", "error", pkgerrors.Wrapf(err, "bind :%d", d.ListenPort))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		d.acceptLoop(ctx, ln)
		ln.Close()
	}
	return nil
}

func (d *Daemon) acceptLoop(ctx context.Context, ln net.Listener) {
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	for d.alive(ctx) {
		results := make(chan acceptResult, 1)
		go func() {
			conn, err := ln.Accept()
			results <- acceptResult{conn, err}
		}()

		select {
		case <-ctx.Done():
			return
		case r := <-results:
			if r.err != nil {
				d.reporter.Report("tcp accept error", "error", r.err)
				return
			}
			d.serveConn(ctx, r.conn)
		}
	}
}

// serveConn handles exactly one driver-station session at a time; the
// protocol expects at most one concurrent driver-station peer.
func (d *Daemon) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReaderSize(conn, tcpFrameMaxPayload+2)

	for d.alive(ctx) {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Millisecond))
		peek, err := br.Peek(2)
		if err != nil {
			if isTimeout(err) {
				d.drainOutbox(conn)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if err == io.EOF {
				return
			}
			d.reporter.Report("tcp read error", "error", err)
			return
		}

		length := int(binary.BigEndian.Uint16(peek))
		if length+2 > br.Size() {
			d.reporter.Report("tcp frame exceeds buffer", "length", length)
			return
		}

		// Peek the whole frame rather than checking Buffered: Peek is
		// what refills the buffer, so a frame split across segments
		// accumulates here instead of stalling.
		frame, err := br.Peek(length + 2)
		if err != nil {
			if isTimeout(err) {
				d.drainOutbox(conn)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if err == io.EOF {
				return
			}
			d.reporter.Report("tcp frame read error", "error", err)
			return
		}
		d.dispatchInboundFrame(frame[2 : length+2])
		if _, err := br.Discard(length + 2); err != nil {
			return
		}
		d.drainOutbox(conn)
		time.Sleep(10 * time.Millisecond)
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// dispatchInboundFrame decodes one payload (the bytes after the u16
// length prefix) and routes it by its leading tag byte. A zero-length
// payload is a keepalive and needs no dispatch.
func (d *Daemon) dispatchInboundFrame(payload []byte) {
	if len(payload) == 0 {
		return
	}
	tag := payload[0]
	r := wire.NewReader(payload[1:])
	switch tag {
	case packet.TCPTagControllerInfo:
		info, err := packet.ReadControllerInfo(r)
		if err != nil {
			d.reporter.Report("controller info parse error", "error", err)
			return
		}
		if d.OnControllerInfo != nil {
			d.OnControllerInfo(info)
		}
	case packet.TCPTagMatchInfo:
		info, err := packet.ReadMatchInfo(r)
		if err != nil {
			d.reporter.Report("match info parse error", "error", err)
			return
		}
		if d.OnMatchInfo != nil {
			d.OnMatchInfo(info)
		}
	case packet.TCPTagGameData:
		gd, err := packet.ReadGameData(r)
		if err != nil {
			d.reporter.Report("game data parse error", "error", err)
			return
		}
		if d.OnGameData != nil {
			d.OnGameData(gd)
		}
	default:
		d.reporter.Report("unknown tcp tag", "tag", tag)
	}
}

func (d *Daemon) drainOutbox(conn net.Conn) {
	if d.st.TakeRequestInfo() {
		d.queueVersionInfo()
	}
	for {
		select {
		case msg := <-d.tcpOutbox:
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			if _, err := conn.Write(msg); err != nil {
				d.reporter.Report("tcp write failed", "error", err)
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
		d.reporter.Report("tcp outbox full, dropping message")
	}
}

// queueVersionInfo answers a pending library-info request with the image
// and libc version messages, ending with the empty subtype as the
// terminator.
func (d *Daemon) queueVersionInfo() {
	msgs := []packet.VersionInfoMessage{
		{Kind: packet.VersionInfoImage, Version: d.ImageVersion},
		{Kind: packet.VersionInfoLibC, Version: d.LibCVersion},
		{Kind: packet.VersionInfoEmpty},
	}
	for _, m := range msgs {
		m := m
		if err := d.sendFramed(func(w *wire.Writer) error {
			return packet.WriteVersionInfoMessage(w, m)
		}); err != nil {
			d.reporter.Report("version info encode failed", "error", err)
		}
	}
}

// SendZeroCode queues a raw 0x00 message with no ms/sequence envelope.
func (d *Daemon) SendZeroCode(text string) error {
	return d.sendFramed(func(w *wire.Writer) error {
		return packet.WriteZeroCodeMessage(w, packet.ZeroCodeMessage{Text: text})
	})
}

// SendPlain queues a 0x0C message.
func (d *Daemon) SendPlain(msg packet.PlainMessage) error {
	return d.sendFramed(func(w *wire.Writer) error { return packet.WritePlainMessage(w, msg) })
}

// SendTyped queues a 0x0B message.
func (d *Daemon) SendTyped(msg packet.TypedMessage) error {
	return d.sendFramed(func(w *wire.Writer) error { return packet.WriteTypedMessage(w, msg) })
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
