// Package hw provides the hardware capabilities the watcher depends
// on, with abstraction for testing. The real implementations use the
// Linux GPIO character device and the Linux IIO sysfs ADC interface;
// the fakes allow running the full control loop without hardware.
package hw

import "time"

// Output is the single open-drain style line toward the watched
// device: passive (high-impedance) at rest, actively pulled low only
// while simulating a press.
type Output interface {
	// DriveLow actively pulls the line to ground.
	DriveLow() error

	// Idle returns the line to high-impedance.
	Idle() error

	// Close releases the line, leaving it high-impedance.
	Close() error
}

// Button delivers raw falling edges from the local push button. Edges
// are NOT debounced here; the supervisory core owns the debounce
// window.
type Button interface {
	// Events returns the edge stream. Each value is the edge's
	// arrival time. Edges may be dropped if the consumer lags.
	Events() <-chan time.Time

	// Close releases the input line and stops the stream.
	Close() error
}

// Sampler reads the supply voltage. Reads are slow (tens of
// milliseconds) and must only be issued from main-loop context.
type Sampler interface {
	// ReadMillivolts returns the supply rail level in millivolts.
	ReadMillivolts() (int, error)

	// Close releases sampler resources.
	Close() error
}

// Default wiring (BCM numbering on a Raspberry Pi header).
const (
	DefaultChip      = "gpiochip0"
	DefaultPinOutput = 17 // to the watched device's button GPIO, via series resistor
	DefaultPinButton = 27 // local push button to GND, pull-up enabled
)
