// Package logic contains the pure supervisory core for the watcher.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Clocks and delays are always injected.
package logic

import (
	"fmt"
	"time"
)

// Default configuration: a ~30 s tick, a pulse roughly every 12 h, and
// UVLO thresholds sized for a 2xAA supply feeding a 3.0 V-minimum node.
const (
	DefaultTriggerTicks   = 1440
	DefaultDebounceTicks  = 1
	DefaultInhibitTicks   = 10
	DefaultCheckTicks     = 8
	DefaultConfirmSamples = 3
	DefaultRiseMillivolts = 3000
	DefaultFallMillivolts = 2900
	DefaultPulseDuration  = 120 * time.Millisecond
)

// Config holds the build-time tuning constants of the control loop.
// All tick-denominated values count whole ticks of the (imprecise)
// periodic tick source.
type Config struct {
	// TriggerTicks is the number of ticks between automatic pulses.
	TriggerTicks uint32
	// DebounceTicks is the quiet window armed after an accepted manual press.
	DebounceTicks uint32
	// InhibitTicks is the grace window armed at boot and after UVLO recovery.
	InhibitTicks uint32
	// CheckTicks is the cadence of deferred supply-voltage checks.
	CheckTicks uint32
	// ConfirmSamples is the number of consecutive qualifying readings
	// required before leaving lockout.
	ConfirmSamples int
	// RiseMillivolts and FallMillivolts bound the hysteresis band.
	// Rise must be strictly above Fall.
	RiseMillivolts int
	FallMillivolts int
	// PulseDuration is how long the output line is held low per pulse.
	PulseDuration time.Duration
}

// DefaultConfig returns the hardware-reference configuration.
func DefaultConfig() Config {
	return Config{
		TriggerTicks:   DefaultTriggerTicks,
		DebounceTicks:  DefaultDebounceTicks,
		InhibitTicks:   DefaultInhibitTicks,
		CheckTicks:     DefaultCheckTicks,
		ConfirmSamples: DefaultConfirmSamples,
		RiseMillivolts: DefaultRiseMillivolts,
		FallMillivolts: DefaultFallMillivolts,
		PulseDuration:  DefaultPulseDuration,
	}
}

// Validate rejects configurations that would defeat the safety design.
func (c Config) Validate() error {
	if c.RiseMillivolts <= c.FallMillivolts {
		return fmt.Errorf("rise threshold %d mV must be above fall threshold %d mV", c.RiseMillivolts, c.FallMillivolts)
	}
	if c.ConfirmSamples < 1 {
		return fmt.Errorf("confirm samples must be at least 1, got %d", c.ConfirmSamples)
	}
	if c.TriggerTicks == 0 {
		return fmt.Errorf("trigger ticks must be nonzero")
	}
	if c.CheckTicks == 0 {
		return fmt.Errorf("check ticks must be nonzero")
	}
	if c.PulseDuration <= 0 {
		return fmt.Errorf("pulse duration must be positive, got %v", c.PulseDuration)
	}
	return nil
}

// PowerState is the UVLO state of the supply rail.
type PowerState string

const (
	PowerNormal    PowerState = "NORMAL"
	PowerLockedOut PowerState = "LOCKED_OUT"
)

// EventType identifies a supervisory event.
type EventType string

const (
	EventPulseAuto   EventType = "PULSE_AUTO"
	EventPulseManual EventType = "PULSE_MANUAL"
	EventPowerLost   EventType = "POWER_LOST"
	EventPowerGood   EventType = "POWER_GOOD"
)

// Event is emitted when the core pulses the line or changes power state.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// Millivolts carries the sample that caused a power transition.
	// Zero for pulse events.
	Millivolts int
}

// Power returns the UVLO state implied by the event.
func (e Event) Power() PowerState {
	if e.Type == EventPowerLost {
		return PowerLockedOut
	}
	return PowerNormal
}

// emit delivers an event without ever blocking the caller. The event
// channel is advisory telemetry; if the consumer is behind, drop.
func emit(ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// wake nudges the main loop. The channel is 1-buffered; a pending
// wake already covers this one.
func wake(ch chan<- struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}
