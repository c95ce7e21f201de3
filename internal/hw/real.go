//go:build linux

package hw

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives the press-simulation line through the Linux GPIO
// character device. The line is requested as an input (high-impedance)
// and only reconfigured as a low output for the duration of a pulse,
// reproducing open-drain behavior on a push-pull pin.
type RealOutput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealOutput requests the output line on the given chip, idle.
func NewRealOutput(chipName string, pin int) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}

	return &RealOutput{chip: chip, line: line}, nil
}

// DriveLow reconfigures the line as an output at ground.
func (o *RealOutput) DriveLow() error {
	if err := o.line.Reconfigure(gpiocdev.AsOutput(0)); err != nil {
		return fmt.Errorf("drive pin low: %w", err)
	}
	return nil
}

// Idle reconfigures the line back to a high-impedance input.
func (o *RealOutput) Idle() error {
	if err := o.line.Reconfigure(gpiocdev.AsInput); err != nil {
		return fmt.Errorf("release pin to hi-z: %w", err)
	}
	return nil
}

// Close returns the line to high-impedance and releases it.
func (o *RealOutput) Close() error {
	var errs []error
	if o.line != nil {
		if err := o.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure output pin: %w", err))
		}
		if err := o.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output pin: %w", err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealButton watches the local push button: input with pull-up,
// falling-edge events (press to GND).
type RealButton struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	ch   chan time.Time
}

// NewRealButton requests the button line and starts delivering edges.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealButton{chip: chip, ch: make(chan time.Time, 16)}

	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(b.handleEvent))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	b.line = line

	return b, nil
}

// handleEvent runs on gpiocdev's event goroutine; it must not block.
// Edges beyond the buffer are dropped — the debounce window upstream
// would reject them anyway.
func (b *RealButton) handleEvent(gpiocdev.LineEvent) {
	select {
	case b.ch <- time.Now():
	default:
	}
}

// Events returns the edge stream.
func (b *RealButton) Events() <-chan time.Time { return b.ch }

// Close releases the button line.
func (b *RealButton) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
