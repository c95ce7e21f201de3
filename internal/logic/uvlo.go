package logic

import (
	"context"
	"fmt"
	"time"
)

// Sampler reads the supply rail. A read takes tens of milliseconds, so
// it is only ever called from main-loop context, never from a tick or
// edge handler.
type Sampler interface {
	ReadMillivolts() (int, error)
}

// Supervisor applies the undervoltage lockout policy: asymmetric
// hysteresis with confirmation-counted recovery. Losing power is
// trusted immediately; regaining it is not.
//
// All methods run in main-loop context. okCount is private to that
// context and needs no synchronization.
type Supervisor struct {
	cfg     Config
	st      *State
	sampler Sampler
	now     func() time.Time
	events  chan<- Event

	okCount int
}

// NewSupervisor creates a supervisor over the shared state. events may
// be nil if nobody listens.
func NewSupervisor(cfg Config, st *State, sampler Sampler, now func() time.Time, events chan<- Event) *Supervisor {
	return &Supervisor{cfg: cfg, st: st, sampler: sampler, now: now, events: events}
}

// Check performs one deferred voltage sample and applies hysteresis.
// It returns the sampled millivolts. A failed sample counts as
// unproven supply: the confirmation counter resets and, if the rail
// was trusted, it is locked out immediately.
func (s *Supervisor) Check() (int, error) {
	mv, err := s.sampler.ReadMillivolts()
	if err != nil {
		s.okCount = 0
		if s.st.powerGood.Load() {
			s.st.powerGood.Store(false)
			emit(s.events, Event{Timestamp: s.now(), Type: EventPowerLost})
		}
		return 0, fmt.Errorf("sample supply voltage: %w", err)
	}
	s.apply(mv)
	return mv, nil
}

func (s *Supervisor) apply(mv int) {
	if !s.st.powerGood.Load() {
		if mv < s.cfg.RiseMillivolts {
			s.okCount = 0
			return
		}
		s.okCount++
		if s.okCount >= s.cfg.ConfirmSamples {
			s.okCount = 0
			s.recover(mv)
		}
		return
	}
	if mv < s.cfg.FallMillivolts {
		// Falling edge is immediate: no confirmation delay on the
		// way down.
		s.st.powerGood.Store(false)
		emit(s.events, Event{Timestamp: s.now(), Type: EventPowerLost, Millivolts: mv})
	}
}

// recover flips the rail to trusted. The inhibit window must be armed
// before powerGood flips, so a tick landing between the two stores can
// never observe "trusted and uninhibited".
func (s *Supervisor) recover(mv int) {
	s.st.inhibit.Store(s.cfg.InhibitTicks)
	s.st.powerGood.Store(true)
	emit(s.events, Event{Timestamp: s.now(), Type: EventPowerGood, Millivolts: mv})
}

// WaitUntilPowerGood blocks until ConfirmSamples consecutive readings
// sit at or above the rise threshold, pausing between samples. It runs
// once at boot, before the tick source starts, so no pulse can fire
// while supply integrity is still unproven. Sample errors reset the
// confirmation count and keep waiting, mirroring the hardware's
// behavior of never trusting an unreadable rail.
func (s *Supervisor) WaitUntilPowerGood(ctx context.Context, pause func()) error {
	ok := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		mv, err := s.sampler.ReadMillivolts()
		switch {
		case err != nil || mv < s.cfg.RiseMillivolts:
			ok = 0
		default:
			ok++
			if ok >= s.cfg.ConfirmSamples {
				s.recover(mv)
				return nil
			}
		}
		pause()
	}
}
