package logic

import (
	"fmt"
	"time"
)

// Gate filters the manual-press input into clean trigger events. It is
// invoked from the button-edge goroutine, so it shares the interrupt
// side's rules: no blocking beyond the pulse itself, no voltage
// sampling.
type Gate struct {
	cfg      Config
	st       *State
	actuator *Actuator
	now      func() time.Time
	events   chan<- Event
	wakeCh   chan<- struct{}
}

// NewGate creates the manual-press gate. wakeCh nudges the main loop
// after every edge so it can re-assert the idle line while locked out.
func NewGate(cfg Config, st *State, actuator *Actuator, now func() time.Time, events chan<- Event, wakeCh chan<- struct{}) *Gate {
	return &Gate{cfg: cfg, st: st, actuator: actuator, now: now, events: events, wakeCh: wakeCh}
}

// OnEdge handles one falling edge from the manual button.
//
// Edges inside the debounce window are acknowledged and dropped. Edges
// while locked out or inhibited are also dropped, but without arming
// the debounce window: a rejected press is not "spent", so the first
// press after recovery works immediately. An accepted press arms the
// debounce window, restarts the periodic interval, and pulses.
func (g *Gate) OnEdge() error {
	defer wake(g.wakeCh)

	if g.st.debounce.Load() != 0 {
		return nil
	}
	if !g.st.powerGood.Load() || g.st.inhibit.Load() != 0 {
		return nil
	}

	// Arm the window before the (slow) pulse so bounce arriving while
	// the line is held low is already rejected.
	g.st.debounce.Store(g.cfg.DebounceTicks)
	g.st.tickCount.Store(0)
	if err := g.actuator.Trigger(g.cfg.PulseDuration); err != nil {
		return fmt.Errorf("manual pulse: %w", err)
	}
	emit(g.events, Event{Timestamp: g.now(), Type: EventPulseManual})
	return nil
}
