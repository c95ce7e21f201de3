package logic

import (
	"fmt"
	"time"
)

// Dispatcher is the tick-side half of the core: it runs once per tick
// of the (imprecise) periodic tick source and advances every
// tick-denominated counter. It never samples the supply itself; when a
// check comes due it raises the deferred-work flag and wakes the main
// loop, keeping the tick path short.
type Dispatcher struct {
	cfg      Config
	st       *State
	actuator *Actuator
	now      func() time.Time
	events   chan<- Event
	wakeCh   chan<- struct{}
}

// NewDispatcher creates the tick dispatcher over the shared state.
func NewDispatcher(cfg Config, st *State, actuator *Actuator, now func() time.Time, events chan<- Event, wakeCh chan<- struct{}) *Dispatcher {
	return &Dispatcher{cfg: cfg, st: st, actuator: actuator, now: now, events: events, wakeCh: wakeCh}
}

// Tick advances the control loop by one tick:
//
//  1. drain the debounce and inhibit countdowns,
//  2. schedule a deferred voltage check at the check cadence,
//  3. if the rail is trusted and uninhibited, advance the trigger
//     counter and pulse when it reaches the interval.
//
// The only blocking work on this path is the pulse itself, which is
// short and rare.
func (d *Dispatcher) Tick() error {
	decrement(&d.st.debounce)
	decrement(&d.st.inhibit)

	if d.st.sinceCheck.Add(1) >= d.cfg.CheckTicks {
		d.st.sinceCheck.Store(0)
		d.st.checkDue.Store(true)
		wake(d.wakeCh)
	}

	if d.st.powerGood.Load() && d.st.inhibit.Load() == 0 {
		if d.st.tickCount.Add(1) >= d.cfg.TriggerTicks {
			d.st.tickCount.Store(0)
			if err := d.actuator.Trigger(d.cfg.PulseDuration); err != nil {
				return fmt.Errorf("periodic pulse: %w", err)
			}
			emit(d.events, Event{Timestamp: d.now(), Type: EventPulseAuto})
		}
	}
	return nil
}
