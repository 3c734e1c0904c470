// Command robotd runs the robot-side control daemon: the UDP control
// loop, the TCP auxiliary channel, host telemetry collection, and a
// live-reloading config file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frcnet/robotcom"
	"github.com/frcnet/robotcom/config"
	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/telemetry"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to a JSON config file, watched for changes")
		diskPath     = flag.String("disk", "/", "filesystem path sampled for free-space reporting")
		telemetryInt = flag.Duration("telemetry-interval", 2*time.Second, "host telemetry sample interval")
	)
	flag.Parse()

	log := logging.NewDevelopment()
	rc := robotcom.New(log)
	defer rc.Close()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Errorw("config load failed, using defaults", "error", err)
		} else {
			cfg = loaded
		}
	}
	config.Apply(rc.State(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, rc.State(), log)
		if err != nil {
			log.Errorw("config watcher failed", "error", err)
		} else {
			go watcher.Run(ctx)
		}
	}

	collector := telemetry.NewCollector(rc.State(), log, *diskPath)
	go collector.Run(ctx, *telemetryInt)

	rc.ObserveRobotCode(true)
	rc.SetTeleopHook(func() { log.Infow("entered teleop") })
	rc.SetAutonHook(func() { log.Infow("entered autonomous") })
	rc.SetDisableHook(func() { log.Infow("disabled") })
	rc.SetEstopHook(func() { log.Warnw("emergency stop") })

	rc.StartDaemon()
	log.Infow("robotd running", "id", rc.Daemon().ID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infow("shutting down")
}
