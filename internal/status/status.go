// Package status provides a thread-safe status tracker for the watcher
// daemon. It is read by HTTP handlers and embedded in MQTT system
// events.
package status

import (
	"sync"
	"time"

	"github.com/Mickyleitor/meshtastic-watcher/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs         int64
	PulseMs        int64
	HeartbeatMs    int64
	TriggerTicks   uint32
	DebounceTicks  uint32
	InhibitTicks   uint32
	CheckTicks     uint32
	ConfirmSamples int
	RiseMillivolts int
	FallMillivolts int
	Broker         string
	HTTPAddr       string
}

// EventCounts tracks the number of each supervisory event since startup.
type EventCounts struct {
	AutoPulses   int
	ManualPulses int
	Lockouts     int
	Recoveries   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Power             logic.PowerState
	LastMillivolts    int
	Counts            EventCounts
	TickCount         uint32
	InhibitRemaining  uint32
	DebounceRemaining uint32
	StartTime         time.Time
	Now               time.Time
	MQTTConnected     bool
	Config            Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
// The initial power state is locked-out, matching the boot state of
// the core.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Power:     logic.PowerLockedOut,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordEvent counts a supervisory event and applies the power state
// it implies.
func (t *Tracker) RecordEvent(ev logic.Event) {
	t.mu.Lock()
	switch ev.Type {
	case logic.EventPulseAuto:
		t.snap.Counts.AutoPulses++
	case logic.EventPulseManual:
		t.snap.Counts.ManualPulses++
	case logic.EventPowerLost:
		t.snap.Counts.Lockouts++
		t.snap.Power = logic.PowerLockedOut
	case logic.EventPowerGood:
		t.snap.Counts.Recoveries++
		t.snap.Power = logic.PowerNormal
	}
	if ev.Millivolts != 0 {
		t.snap.LastMillivolts = ev.Millivolts
	}
	t.mu.Unlock()
}

// SetVoltage records the latest supply reading.
func (t *Tracker) SetVoltage(mv int) {
	t.mu.Lock()
	t.snap.LastMillivolts = mv
	t.mu.Unlock()
}

// Update refreshes the core's counters. Called from the main loop
// after every wake.
func (t *Tracker) Update(power logic.PowerState, tickCount, inhibit, debounce uint32) {
	t.mu.Lock()
	t.snap.Power = power
	t.snap.TickCount = tickCount
	t.snap.InhibitRemaining = inhibit
	t.snap.DebounceRemaining = debounce
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Counts returns a copy of the current event counts.
func (t *Tracker) Counts() EventCounts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Counts
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
