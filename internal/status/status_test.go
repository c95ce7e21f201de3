package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Mickyleitor/meshtastic-watcher/internal/logic"
)

func testTracker() *Tracker {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return NewTracker(start, Config{
		TickMs:         30000,
		PulseMs:        120,
		HeartbeatMs:    900000,
		TriggerTicks:   1440,
		DebounceTicks:  1,
		InhibitTicks:   10,
		CheckTicks:     8,
		ConfirmSamples: 3,
		RiseMillivolts: 3000,
		FallMillivolts: 2900,
		Broker:         "tcp://broker:1883",
		HTTPAddr:       ":8080",
	})
}

func TestNewTrackerBootsLockedOut(t *testing.T) {
	snap := testTracker().Snapshot()
	if snap.Power != logic.PowerLockedOut {
		t.Errorf("expected boot state LOCKED_OUT, got %s", snap.Power)
	}
	if snap.Counts != (EventCounts{}) {
		t.Errorf("expected zero counts, got %+v", snap.Counts)
	}
}

func TestRecordEventCounts(t *testing.T) {
	tr := testTracker()

	tr.RecordEvent(logic.Event{Type: logic.EventPowerGood, Millivolts: 3100})
	tr.RecordEvent(logic.Event{Type: logic.EventPulseAuto})
	tr.RecordEvent(logic.Event{Type: logic.EventPulseAuto})
	tr.RecordEvent(logic.Event{Type: logic.EventPulseManual})
	tr.RecordEvent(logic.Event{Type: logic.EventPowerLost, Millivolts: 2850})

	snap := tr.Snapshot()
	want := EventCounts{AutoPulses: 2, ManualPulses: 1, Lockouts: 1, Recoveries: 1}
	if snap.Counts != want {
		t.Errorf("expected counts %+v, got %+v", want, snap.Counts)
	}
	if snap.Power != logic.PowerLockedOut {
		t.Errorf("expected LOCKED_OUT after POWER_LOST, got %s", snap.Power)
	}
	if snap.LastMillivolts != 2850 {
		t.Errorf("expected last reading 2850 mV, got %d", snap.LastMillivolts)
	}
}

func TestUpdateAndSetters(t *testing.T) {
	tr := testTracker()

	tr.Update(logic.PowerNormal, 42, 3, 1)
	tr.SetVoltage(3050)
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	if snap.Power != logic.PowerNormal {
		t.Errorf("expected NORMAL, got %s", snap.Power)
	}
	if snap.TickCount != 42 || snap.InhibitRemaining != 3 || snap.DebounceRemaining != 1 {
		t.Errorf("unexpected counters: tick=%d inhibit=%d debounce=%d",
			snap.TickCount, snap.InhibitRemaining, snap.DebounceRemaining)
	}
	if snap.LastMillivolts != 3050 {
		t.Errorf("expected 3050 mV, got %d", snap.LastMillivolts)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTT connected")
	}
}

func TestSnapshotUptime(t *testing.T) {
	tr := testTracker()
	snap := tr.Snapshot()
	if snap.Uptime() < 0 {
		t.Errorf("uptime should be non-negative, got %v", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	tr := testTracker()
	tr.Update(logic.PowerNormal, 10, 0, 0)
	tr.SetVoltage(3100)

	data := FormatJSON(tr.Snapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Power != "NORMAL" {
		t.Errorf("expected power NORMAL, got %q", parsed.Status.Power)
	}
	if parsed.Status.SupplyMv != 3100 {
		t.Errorf("expected supply 3100, got %d", parsed.Status.SupplyMv)
	}
	if parsed.Status.Config.TriggerTicks != 1440 {
		t.Errorf("expected trigger_ticks 1440, got %d", parsed.Status.Config.TriggerTicks)
	}
	if parsed.Status.Event != "" {
		t.Errorf("web JSON must not carry an event, got %q", parsed.Status.Event)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := testTracker()
	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("expected event SHUTDOWN, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", parsed.Status.Reason)
	}
	if parsed.Status.Power != string(logic.PowerLockedOut) {
		t.Errorf("expected boot power state, got %q", parsed.Status.Power)
	}
	if strings.Contains(string(data), "\n") {
		t.Error("status events should be compact JSON")
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := testTracker()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.RecordEvent(logic.Event{Type: logic.EventPulseAuto})
				tr.Update(logic.PowerNormal, uint32(j), 0, 0)
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := tr.Counts().AutoPulses; got != 800 {
		t.Errorf("expected 800 auto pulses, got %d", got)
	}
}
