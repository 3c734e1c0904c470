// Command dscomm runs the driver-station side of the protocol against a
// robot at a known address, printing robot status and console messages.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frcnet/robotcom/driverstation"
	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/packet"
)

func main() {
	var (
		robotIP = flag.String("robot", "127.0.0.1", "robot IP address")
		enable  = flag.Bool("enable", false, "send enabled teleop instead of disabled")
		station = flag.Int("station", int(packet.Red1), "alliance station (0..5)")
	)
	flag.Parse()

	log := logging.NewDevelopment()

	ip := net.ParseIP(*robotIP)
	if ip == nil {
		log.Errorw("invalid robot IP", "robot", *robotIP)
		os.Exit(1)
	}

	d := driverstation.New(ip, log)
	d.SetMode(packet.ModeTeleop)
	d.SetEnabled(*enable)
	if s, err := packet.ParseAllianceStation(uint8(*station)); err == nil {
		d.SetAllianceStation(s)
	}
	d.OnPlainMessage = func(m packet.PlainMessage) {
		log.Infow("robot console", "text", m.Text)
	}
	d.OnTypedMessage = func(m packet.TypedMessage) {
		if m.IsError() {
			log.Errorw("robot error", "code", m.Code, "text", m.Text)
		} else {
			log.Warnw("robot warning", "code", m.Code, "text", m.Text)
		}
	}
	d.OnVersionInfo = func(m packet.VersionInfoMessage) {
		log.Infow("robot version info", "kind", m.Kind, "version", m.Version)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := d.Run(ctx); err != nil {
			log.Errorw("daemon exited with error", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if hdr, ok := d.Observed(); ok {
					log.Infow("robot status",
						"connected", d.IsConnected(),
						"voltage", d.ObservedVoltage(),
						"estop", hdr.Control.Estop(),
						"has_code", hdr.Status.HasRobotCode(),
					)
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infow("shutting down")
}
