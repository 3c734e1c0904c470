// Package config loads the robotcom daemon's JSON configuration and
// watches it for changes, applying new tunables to shared state and
// requesting a soft reset so the daemon picks them up at a safe
// boundary.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/state"
)

// Config is the set of runtime-tunable daemon parameters: timeouts and
// per-tag transmission periods.
type Config struct {
	ConnectionTimeoutMs uint32 `json:"connection_timeout_ms"`
	ReadBlockTimeoutMs  uint32 `json:"read_block_timeout_ms"`

	RumbleFrequency    uint8 `json:"rumble_frequency"`
	DiskUsageFrequency uint8 `json:"disk_usage_frequency"`
	CPUUsageFrequency  uint8 `json:"cpu_usage_frequency"`
	RAMUsageFrequency  uint8 `json:"ram_usage_frequency"`
	PDPPortFrequency   uint8 `json:"pdp_port_frequency"`
	PDPPowerFrequency  uint8 `json:"pdp_power_frequency"`
	CANUsageFrequency  uint8 `json:"can_usage_frequency"`

	ClearObservedStatusOnSend bool `json:"clear_observed_status_on_send"`
}

// Default returns the stock daemon configuration.
func Default() Config {
	return Config{
		ConnectionTimeoutMs:       1000,
		ReadBlockTimeoutMs:        120,
		RumbleFrequency:           0,
		DiskUsageFrequency:        50,
		CPUUsageFrequency:         50,
		RAMUsageFrequency:         50,
		PDPPortFrequency:          0,
		PDPPowerFrequency:         0,
		CANUsageFrequency:         0,
		ClearObservedStatusOnSend: false,
	}
}

// Load reads and parses a JSON config file into a zero Config. Fields
// omitted from the file keep their zero value, not Default()'s value.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// Apply installs c's values into st.
func Apply(st *state.State, c Config) {
	st.SetConnectionTimeoutMs(c.ConnectionTimeoutMs)
	st.SetReadBlockTimeoutMs(c.ReadBlockTimeoutMs)
	st.SetRumbleFrequency(c.RumbleFrequency)
	st.SetDiskUsageFrequency(c.DiskUsageFrequency)
	st.SetCPUUsageFrequency(c.CPUUsageFrequency)
	st.SetRAMUsageFrequency(c.RAMUsageFrequency)
	st.SetPDPPortReportFrequency(c.PDPPortFrequency)
	st.SetPDPPowerReportFrequency(c.PDPPowerFrequency)
	st.SetCANUsageFrequency(c.CANUsageFrequency)
	st.SetClearObservedStatusOnSend(c.ClearObservedStatusOnSend)
}

// Watcher reloads path whenever it changes on disk and re-applies it to
// st, requesting a soft reset so the UDP loop picks up the new tunables
// at the next safe boundary.
type Watcher struct {
	path string
	st   *state.State
	log  logging.Logger
	fsw  *fsnotify.Watcher
}

// NewWatcher creates a Watcher for path. Call Run to start watching.
func NewWatcher(path string, st *state.State, log logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.NewDevelopment()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	return &Watcher{path: path, st: st, log: log.Named("config"), fsw: fsw}, nil
}

// Run processes filesystem events until ctx is canceled or the underlying
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnw("watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		w.log.Warnw("config reload failed, keeping previous values", "error", err)
		return
	}
	Apply(w.st, c)
	w.st.RequestSoftReset()
	w.log.Infow("config reloaded", "path", w.path)
}
