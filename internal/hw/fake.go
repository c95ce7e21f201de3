package hw

import (
	"errors"
	"sync"
	"time"
)

// FakeOutput records the sequence of electrical states the line was
// put in. Safe for concurrent use.
type FakeOutput struct {
	mu sync.Mutex

	// Ops is the recorded state sequence: "low" and "idle" entries.
	Ops []string

	// DriveError and IdleError, if set, are returned by the
	// corresponding calls.
	DriveError error
	IdleError  error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeOutput creates a FakeOutput in the idle state.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// DriveLow records a transition to the driven-low state.
func (f *FakeOutput) DriveLow() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DriveError != nil {
		return f.DriveError
	}
	f.Ops = append(f.Ops, "low")
	return nil
}

// Idle records a transition to the high-impedance state.
func (f *FakeOutput) Idle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IdleError != nil {
		return f.IdleError
	}
	f.Ops = append(f.Ops, "idle")
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Pulses counts completed drive-low transitions.
func (f *FakeOutput) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, op := range f.Ops {
		if op == "low" {
			n++
		}
	}
	return n
}

// Driving reports whether the line is currently held low.
func (f *FakeOutput) Driving() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Ops) > 0 && f.Ops[len(f.Ops)-1] == "low"
}

// FakeButton is an edge source tests push edges into.
type FakeButton struct {
	ch chan time.Time

	mu     sync.Mutex
	closed bool
}

// NewFakeButton creates a FakeButton.
func NewFakeButton() *FakeButton {
	return &FakeButton{ch: make(chan time.Time, 16)}
}

// Press injects one falling edge at the given time.
func (f *FakeButton) Press(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- at:
	default:
	}
}

// Events returns the edge stream.
func (f *FakeButton) Events() <-chan time.Time { return f.ch }

// Close stops the stream.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}

// FakeSampler returns scripted millivolt readings.
// Each call to ReadMillivolts consumes the next sample; when the
// script is exhausted the last sample repeats.
type FakeSampler struct {
	mu sync.Mutex

	// Samples contains the scripted readings, in millivolts.
	Samples []int

	// ReadError, if set, will be returned by ReadMillivolts.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// NewFakeSampler creates a FakeSampler with the given script.
func NewFakeSampler(samples []int) *FakeSampler {
	return &FakeSampler{Samples: samples}
}

// ReadMillivolts returns the next scripted reading.
func (f *FakeSampler) ReadMillivolts() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	mv := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return mv, nil
}

// Close marks the sampler as closed.
func (f *FakeSampler) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset rewinds the script to the beginning.
func (f *FakeSampler) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Closed = false
}
