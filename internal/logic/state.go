package logic

import "sync/atomic"

// State owns every counter and flag shared between the interrupt
// goroutines (tick, button edge) and the main loop. There are no locks:
// every field is a single machine-word atomic, and each field has a
// small, documented set of writers. Readers outside that set only
// observe.
//
// The process boots into the safe state: locked out, counters at zero.
// There is no teardown; losing the process is the only destructor.
type State struct {
	// tickCount counts ticks toward the next automatic pulse.
	// Written by Dispatcher.Tick (advance/reset) and Gate.OnEdge
	// (reset after an accepted manual press).
	tickCount atomic.Uint32

	// debounce is the remaining quiet window after an accepted press.
	// Armed by Gate.OnEdge, drained one tick at a time by Dispatcher.Tick.
	debounce atomic.Uint32

	// inhibit is the remaining post-boot/post-recovery grace window.
	// Armed by the Supervisor, drained by Dispatcher.Tick.
	inhibit atomic.Uint32

	// sinceCheck counts ticks toward the next deferred voltage check.
	// Written by Dispatcher.Tick only.
	sinceCheck atomic.Uint32

	// checkDue is the deferred-work request. Set by Dispatcher.Tick,
	// cleared by the main loop *before* it performs the check
	// (clear-before-act, so a tick landing mid-check re-arms it).
	checkDue atomic.Bool

	// powerGood is the UVLO state. Written by the Supervisor only,
	// always from main-loop context.
	powerGood atomic.Bool
}

// NewState returns the boot state: locked out, nothing pending.
func NewState() *State {
	return &State{}
}

// Power returns the current UVLO state.
func (s *State) Power() PowerState {
	if s.powerGood.Load() {
		return PowerNormal
	}
	return PowerLockedOut
}

// PowerGood reports whether the supply is currently trusted.
func (s *State) PowerGood() bool { return s.powerGood.Load() }

// TickCount returns the ticks elapsed toward the next automatic pulse.
func (s *State) TickCount() uint32 { return s.tickCount.Load() }

// DebounceRemaining returns the remaining quiet ticks of the debounce window.
func (s *State) DebounceRemaining() uint32 { return s.debounce.Load() }

// InhibitRemaining returns the remaining ticks of the inhibit window.
func (s *State) InhibitRemaining() uint32 { return s.inhibit.Load() }

// CheckPending reports whether a deferred voltage check is waiting.
func (s *State) CheckPending() bool { return s.checkDue.Load() }

// TakeCheckDue atomically consumes a pending voltage-check request.
// It returns true at most once per request.
func (s *State) TakeCheckDue() bool {
	return s.checkDue.CompareAndSwap(true, false)
}

// decrement lowers a counter by one, saturating at zero.
func decrement(c *atomic.Uint32) {
	for {
		v := c.Load()
		if v == 0 {
			return
		}
		if c.CompareAndSwap(v, v-1) {
			return
		}
	}
}
