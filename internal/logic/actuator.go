package logic

import (
	"fmt"
	"time"
)

// Line is the single open-drain style output the actuator controls.
// Idle is the passive high-impedance state; DriveLow actively pulls
// the line to ground.
type Line interface {
	DriveLow() error
	Idle() error
}

// Delay waits for approximately the given duration. The real
// implementation sleeps; tests substitute a recording fake.
type Delay func(time.Duration)

// Actuator generates one press-simulation pulse at a time. It knows
// nothing about scheduling or power state; callers gate invocations so
// that only one logical trigger source is active at any instant.
type Actuator struct {
	line  Line
	delay Delay
}

// NewActuator wires an actuator to a line and a delay source.
func NewActuator(line Line, delay Delay) *Actuator {
	return &Actuator{line: line, delay: delay}
}

// Trigger drives the line low for the given duration and restores the
// passive state. The line is returned to idle on every path, including
// a failed drive.
func (a *Actuator) Trigger(duration time.Duration) error {
	if err := a.line.DriveLow(); err != nil {
		a.line.Idle()
		return fmt.Errorf("drive low: %w", err)
	}
	a.delay(duration)
	if err := a.line.Idle(); err != nil {
		return fmt.Errorf("restore idle: %w", err)
	}
	return nil
}

// ForceIdle unconditionally returns the line to the passive state.
// The main loop calls this after any wake while locked out, so the
// line can never be left asserted across a lockout transition.
func (a *Actuator) ForceIdle() error {
	if err := a.line.Idle(); err != nil {
		return fmt.Errorf("force idle: %w", err)
	}
	return nil
}
