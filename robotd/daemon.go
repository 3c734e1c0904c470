// Package robotd implements the robot-side UDP control-loop daemon (C4)
// and its companion TCP auxiliary channel (C5).
package robotd

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/frcnet/robotcom/hooks"
	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/state"
)

const (
	// UDPRecvPort is the fixed bind port for inbound driver→robot packets.
	UDPRecvPort = 1110
	// UDPSendPort is the fixed destination port for outbound responses.
	UDPSendPort = 1150
	// TCPPort is the auxiliary channel's listen port.
	TCPPort = 1740
)

// Daemon owns the UDP and TCP loops for one robot instance. It exits
// the loops once Alive reports false rather than being cancelled
// mid-syscall.
type Daemon struct {
	ID uuid.UUID

	// RecvPort, SendPort and ListenPort default to the protocol's fixed
	// ports; tests override them with ephemeral ones.
	RecvPort   int
	SendPort   int
	ListenPort int

	// ImageVersion and LibCVersion are reported over the TCP auxiliary
	// channel when the driver requests library info.
	ImageVersion string
	LibCVersion  string

	st       *state.State
	hooks    *hooks.Hooks
	log      logging.Logger
	reporter *Reporter

	tcpOutbox chan []byte

	// OnControllerInfo, OnMatchInfo and OnGameData are invoked from the TCP
	// goroutine as each respective inbound frame is decoded. Any may be left nil.
	OnControllerInfo func(packet.ControllerInfo)
	OnMatchInfo      func(packet.MatchInfo)
	OnGameData       func(string)

	// Alive is sampled at loop iteration boundaries; the daemon unwinds
	// cleanly once it returns false. Defaults to "always alive" if unset.
	Alive func() bool
}

// New builds a Daemon. log may be nil to get the development logger.
func New(st *state.State, h *hooks.Hooks, log logging.Logger) *Daemon {
	if log == nil {
		log = logging.NewDevelopment()
	}
	id := uuid.New()
	named := log.Named("robotd").Named(id.String()[:8])
	return &Daemon{
		ID:         id,
		RecvPort:   UDPRecvPort,
		SendPort:   UDPSendPort,
		ListenPort: TCPPort,
		st:         st,
		hooks:      h,
		log:        named,
		reporter:   NewReporter(named, 20, 40),
		tcpOutbox:  make(chan []byte, tcpOutboxDepth),
		Alive:      func() bool { return true },
	}
}

// Reporter returns the daemon's error-reporting sink so callers can
// install an alternate destination.
func (d *Daemon) Reporter() *Reporter { return d.reporter }

// Run starts the UDP and TCP loops under an errgroup.Group and blocks
// until both unwind, either because ctx is canceled or Alive returns
// false. Neither loop returns an error (I/O and bind failures are
// reported and retried), so Run returns nil once both have unwound.
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
