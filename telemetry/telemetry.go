// Package telemetry sources the optional CPU/RAM/disk tag payloads from
// the host OS and installs them into shared state on a timer. The
// protocol layer treats these values as opaque; any collaborator can
// feed the same setters.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/packet"
	"github.com/frcnet/robotcom/state"
)

// Collector periodically samples host telemetry and installs it into a
// shared state.
type Collector struct {
	st       *state.State
	log      logging.Logger
	diskPath string
	fs       procfs.FS
	haveFS   bool
}

// NewCollector builds a Collector that samples the filesystem mounted at
// diskPath for free-space reporting.
func NewCollector(st *state.State, log logging.Logger, diskPath string) *Collector {
	if log == nil {
		log = logging.NewDevelopment()
	}
	c := &Collector{st: st, log: log.Named("telemetry"), diskPath: diskPath}
	if fs, err := procfs.NewDefaultFS(); err == nil {
		c.fs = fs
		c.haveFS = true
	}
	return c
}

// Run samples telemetry every interval until ctx is canceled.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleOnce()
		}
	}
}

func (c *Collector) sampleOnce() {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		u := float32(percents[0])
		c.st.SetCPUUsage(&packet.CPUUsage{Utilization: u})
	} else if err != nil {
		c.log.Warnw("cpu sample failed", "error", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		free := vm.Available
		c.st.SetRAMUsage(&free)
	} else {
		c.log.Warnw("ram sample failed", "error", err)
	}

	if du, err := disk.Usage(c.diskPath); err == nil {
		free := du.Free
		c.st.SetDiskUsage(&free)
	} else {
		c.log.Warnw("disk sample failed", "error", err)
	}

	if c.haveFS {
		if stat, err := c.fs.Stat(); err == nil {
			c.log.Debugw("host stat sample", "boot_time", stat.BootTime, "cpu_total", stat.CPUTotal.User)
		}
	}
}
