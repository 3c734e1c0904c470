// Package hooks implements the panic-isolated callback escalation chain
// (C6): user-supplied hooks run under a reader-writer lock so invocation
// is concurrent with reads and exclusive with install/remove, and a
// panicking hook escalates to the next hook in the chain rather than
// crashing the daemon outright.
package hooks

import (
	"sync"

	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/packet"
)

// Hook is an installable callback. Hooks take no arguments and return
// nothing; they observe whatever state they need through the shared-state
// façade.
type Hook func()

// Hooks holds the seven named callbacks, each independently replaceable
// at runtime.
type Hooks struct {
	mu sync.RWMutex

	disable     Hook
	teleop      Hook
	auton       Hook
	test        Hook
	estop       Hook
	restartCode Hook
	restartRio  Hook

	log logging.Logger
}

// New returns an empty hook set; unset hooks are no-ops when dispatched.
func New(log logging.Logger) *Hooks {
	if log == nil {
		log = logging.NewDevelopment()
	}
	return &Hooks{log: log.Named("hooks")}
}

func (h *Hooks) set(slot *Hook, fn Hook) {
	h.mu.Lock()
	*slot = fn
	h.mu.Unlock()
}

func (h *Hooks) take(slot *Hook) Hook {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := *slot
	*slot = nil
	return prev
}

// SetDisableHook installs the hook fired when the robot transitions from
// enabled to disabled.
func (h *Hooks) SetDisableHook(fn Hook) { h.set(&h.disable, fn) }

// SetTeleopHook installs the hook fired when the robot enters teleop
// while enabled.
func (h *Hooks) SetTeleopHook(fn Hook) { h.set(&h.teleop, fn) }

// SetAutonHook installs the hook fired when the robot enters autonomous
// while enabled.
func (h *Hooks) SetAutonHook(fn Hook) { h.set(&h.auton, fn) }

// SetTestHook installs the hook fired when the robot enters test mode
// while enabled.
func (h *Hooks) SetTestHook(fn Hook) { h.set(&h.test, fn) }

// SetEstopHook installs the emergency-stop hook, fired on the false→true
// edge of the observed estop bit.
func (h *Hooks) SetEstopHook(fn Hook) { h.set(&h.estop, fn) }

// SetRestartCodeHook installs the restart_roborio_code hook.
func (h *Hooks) SetRestartCodeHook(fn Hook) { h.set(&h.restartCode, fn) }

// SetRestartRioHook installs the restart_roborio hook.
func (h *Hooks) SetRestartRioHook(fn Hook) { h.set(&h.restartRio, fn) }

// TakeDisableHook removes and returns the currently installed hook, or
// nil. The Take* family mirrors the Set* family for all seven slots.
func (h *Hooks) TakeDisableHook() Hook     { return h.take(&h.disable) }
func (h *Hooks) TakeTeleopHook() Hook      { return h.take(&h.teleop) }
func (h *Hooks) TakeAutonHook() Hook       { return h.take(&h.auton) }
func (h *Hooks) TakeTestHook() Hook        { return h.take(&h.test) }
func (h *Hooks) TakeEstopHook() Hook       { return h.take(&h.estop) }
func (h *Hooks) TakeRestartCodeHook() Hook { return h.take(&h.restartCode) }
func (h *Hooks) TakeRestartRioHook() Hook  { return h.take(&h.restartRio) }

// Dispatch fires hooks for one (old, new, req) observation out of the UDP
// loop. Edge semantics:
//
//   - a false→true estop edge fires the estop hook;
//   - restart_roborio / restart_roborio_code requests fire their hooks;
//   - otherwise the first matching mode edge fires, in priority order
//     disable, teleop, auton, test. Mode hooks fire only on entry to the
//     named state, never on a repeated identical control code.
func (h *Hooks) Dispatch(old, new packet.ControlCode, req packet.RequestCode) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !old.Estop() && new.Estop() {
		h.invokeEstop()
	}

	restarted := false
	if req.RestartRobot() {
		h.invokeRestartRio()
		restarted = true
	}
	if req.RestartCode() {
		h.invokeRestartCode()
		restarted = true
	}
	if restarted {
		return
	}

	entering := func(m packet.Mode) bool {
		return new.Enabled() && new.Mode() == m && !(old.Enabled() && old.Mode() == m)
	}
	switch {
	case old.Enabled() && !new.Enabled():
		h.invokeMode(h.disable)
	case entering(packet.ModeTeleop):
		h.invokeMode(h.teleop)
	case entering(packet.ModeAuton):
		h.invokeMode(h.auton)
	case entering(packet.ModeTest):
		h.invokeMode(h.test)
	}
}

// FireEstop invokes the estop hook directly, outside any control-code
// edge. Callers use it when the robot itself raises an emergency stop
// rather than the driver station. The panic escalation chain applies as
// usual.
func (h *Hooks) FireEstop() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.invokeEstop()
}

// invokeMode calls fn, recovering a panic by escalating to the estop
// hook.
func (h *Hooks) invokeMode(fn Hook) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("mode hook panicked, escalating to estop", "panic", r)
			h.invokeEstop()
		}
	}()
	fn()
}

// invokeEstop calls the estop hook, escalating a panic to restart_rio.
func (h *Hooks) invokeEstop() {
	fn := h.estop
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("estop hook panicked, escalating to restart_rio", "panic", r)
			h.invokeRestartRio()
		}
	}()
	fn()
}

// invokeRestartCode calls the restart_code hook. A panic here aborts the
// process: if restarting the code itself cannot be trusted to run, the
// robot cannot safely continue.
func (h *Hooks) invokeRestartCode() {
	fn := h.restartCode
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("restart_code hook panicked, aborting", "panic", r)
			panic(r)
		}
	}()
	fn()
}

// invokeRestartRio calls the restart_rio hook. It is the top of the
// escalation chain, so a panic here propagates and terminates the
// process. This is intentional.
func (h *Hooks) invokeRestartRio() {
	fn := h.restartRio
	if fn == nil {
		return
	}
	fn()
}
