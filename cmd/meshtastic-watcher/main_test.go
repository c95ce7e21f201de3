package main

import (
	"encoding/json"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/Mickyleitor/meshtastic-watcher/internal/hw"
	"github.com/Mickyleitor/meshtastic-watcher/internal/logic"
	"github.com/Mickyleitor/meshtastic-watcher/internal/mqtt"
	"github.com/Mickyleitor/meshtastic-watcher/internal/status"
)

// fastConfig recovers after a single confirmation and pulses every 2
// ticks, so scenarios complete in a handful of channel sends.
func fastConfig() logic.Config {
	return logic.Config{
		TriggerTicks:   2,
		DebounceTicks:  1,
		InhibitTicks:   1,
		CheckTicks:     1,
		ConfirmSamples: 1,
		RiseMillivolts: 3000,
		FallMillivolts: 2900,
		PulseDuration:  time.Millisecond,
	}
}

type loopEnv struct {
	st      *logic.State
	out     *hw.FakeOutput
	sampler *hw.FakeSampler
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	tick    chan time.Time
	edges   chan time.Time
	sig     chan os.Signal
	done    chan error
}

// startLoop wires a complete core over fakes and runs runLoop in a
// goroutine.
func startLoop(t *testing.T, cfg logic.Config, samples []int, heartbeat time.Duration) *loopEnv {
	t.Helper()

	e := &loopEnv{
		st:      logic.NewState(),
		out:     hw.NewFakeOutput(),
		sampler: hw.NewFakeSampler(samples),
		pub:     mqtt.NewFakePublisher(),
		tick:    make(chan time.Time),
		edges:   make(chan time.Time),
		done:    make(chan error, 1),
	}
	e.tracker = status.NewTracker(time.Now(), status.Config{
		TriggerTicks:   cfg.TriggerTicks,
		ConfirmSamples: cfg.ConfirmSamples,
		RiseMillivolts: cfg.RiseMillivolts,
		FallMillivolts: cfg.FallMillivolts,
	})

	events := make(chan logic.Event, 16)
	wakeCh := make(chan struct{}, 1)
	actuator := logic.NewActuator(e.out, func(time.Duration) {})
	e.sig = make(chan os.Signal, 1)

	deps := loopDeps{
		st:         e.st,
		dispatcher: logic.NewDispatcher(cfg, e.st, actuator, time.Now, events, wakeCh),
		gate:       logic.NewGate(cfg, e.st, actuator, time.Now, events, wakeCh),
		supervisor: logic.NewSupervisor(cfg, e.st, e.sampler, time.Now, events),
		actuator:   actuator,
		publisher:  e.pub,
		mqttStatus: e.pub,
		tracker:    e.tracker,
		heartbeat:  heartbeat,
		now:        time.Now,
		tick:       e.tick,
		edges:      e.edges,
		wake:       wakeCh,
		events:     events,
		sig:        e.sig,
	}
	go func() { e.done <- runLoop(deps) }()
	return e
}

func (e *loopEnv) stop(t *testing.T) {
	t.Helper()
	e.sig <- syscall.SIGTERM
	select {
	case err := <-e.done:
		if err != nil {
			t.Fatalf("runLoop returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not stop")
	}
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestRunLoopRecoveryThenAutoPulse(t *testing.T) {
	e := startLoop(t, fastConfig(), []int{3100}, 0)

	// Tick 1 schedules a check; the main loop samples 3100 mV and
	// recovers with a 1-tick inhibit window.
	e.tick <- time.Now()
	waitFor(t, "power good", e.st.PowerGood)

	// Tick 2 drains the inhibit window and starts the interval;
	// tick 3 completes it.
	e.tick <- time.Now()
	e.tick <- time.Now()
	waitFor(t, "auto pulse", func() bool { return e.tracker.Counts().AutoPulses == 1 })

	e.stop(t)

	if e.out.Pulses() != 1 {
		t.Errorf("expected 1 pulse on the line, got %d", e.out.Pulses())
	}
	if e.out.Driving() {
		t.Error("line left driven after pulse")
	}

	var types []logic.EventType
	for _, ev := range e.pub.Events {
		types = append(types, ev.Type)
	}
	want := []logic.EventType{logic.EventPowerGood, logic.EventPulseAuto}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestRunLoopManualPress(t *testing.T) {
	e := startLoop(t, fastConfig(), []int{3100}, 0)

	e.tick <- time.Now()
	waitFor(t, "power good", e.st.PowerGood)
	e.tick <- time.Now() // drain inhibit

	e.edges <- time.Now()
	waitFor(t, "manual pulse", func() bool { return e.tracker.Counts().ManualPulses == 1 })

	// Bounce inside the debounce window is absorbed.
	e.edges <- time.Now()
	// A tick drains the 1-tick debounce window; the next press counts.
	e.tick <- time.Now()
	e.edges <- time.Now()
	waitFor(t, "second manual pulse", func() bool { return e.tracker.Counts().ManualPulses == 2 })

	e.stop(t)

	if got := e.tracker.Counts().ManualPulses; got != 2 {
		t.Errorf("expected 2 manual pulses, got %d", got)
	}
}

func TestRunLoopLockoutForcesIdle(t *testing.T) {
	e := startLoop(t, fastConfig(), []int{3100, 2800}, 0)

	e.tick <- time.Now()
	waitFor(t, "power good", e.st.PowerGood)

	// Next check reads 2800 mV: under the fall threshold, immediate
	// lockout, and the main loop forces the line idle.
	e.tick <- time.Now()
	waitFor(t, "lockout", func() bool { return !e.st.PowerGood() })
	waitFor(t, "lockout recorded", func() bool { return e.tracker.Counts().Lockouts == 1 })

	e.stop(t)

	if e.out.Driving() {
		t.Error("line left driven across lockout")
	}
	last := e.out.Ops[len(e.out.Ops)-1]
	if last != "idle" {
		t.Errorf("expected final op idle, got %q", last)
	}
}

func TestRunLoopShutdownEvent(t *testing.T) {
	e := startLoop(t, fastConfig(), []int{3100}, 0)
	e.stop(t)

	if len(e.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(e.pub.SystemEvents))
	}
	ev := e.pub.SystemEvents[0]
	if ev.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", ev.Event)
	}
	if ev.Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", ev.Reason)
	}
	if !ev.Retained {
		t.Error("shutdown event should be retained")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(ev.RawPayload, &parsed); err != nil {
		t.Fatalf("shutdown payload is not valid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("payload event: expected SHUTDOWN, got %q", parsed.Status.Event)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// Any wake after the interval emits a heartbeat; with a 1 ns
	// interval the first voltage check qualifies.
	e := startLoop(t, fastConfig(), []int{2000}, time.Nanosecond)

	e.tick <- time.Now()
	waitFor(t, "heartbeat", func() bool { return e.pub.NumSystemEvents() >= 1 })

	e.stop(t)

	if e.pub.SystemEvents[0].Event != "HEARTBEAT" {
		t.Errorf("expected HEARTBEAT, got %q", e.pub.SystemEvents[0].Event)
	}
}

func TestVoltageSuffix(t *testing.T) {
	if got := voltageSuffix(logic.Event{}); got != "" {
		t.Errorf("expected empty suffix, got %q", got)
	}
	if got := voltageSuffix(logic.Event{Millivolts: 2850}); got != " (2850 mV)" {
		t.Errorf("unexpected suffix: %q", got)
	}
}
