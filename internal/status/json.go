package status

import (
	"encoding/json"
	"time"

	"github.com/Mickyleitor/meshtastic-watcher/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Power         string     `json:"power"`
	SupplyMv      int        `json:"supply_mv"`
	TickCount     uint32     `json:"tick_count"`
	InhibitTicks  uint32     `json:"inhibit_ticks_remaining"`
	DebounceTicks uint32     `json:"debounce_ticks_remaining"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	AutoPulses   int `json:"auto_pulses"`
	ManualPulses int `json:"manual_pulses"`
	Lockouts     int `json:"lockouts"`
	Recoveries   int `json:"recoveries"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs         int64  `json:"tick_ms"`
	PulseMs        int64  `json:"pulse_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	TriggerTicks   uint32 `json:"trigger_ticks"`
	DebounceTicks  uint32 `json:"debounce_ticks"`
	InhibitTicks   uint32 `json:"inhibit_ticks"`
	CheckTicks     uint32 `json:"check_ticks"`
	ConfirmSamples int    `json:"confirm_samples"`
	RiseMv         int    `json:"uvlo_rise_mv"`
	FallMv         int    `json:"uvlo_fall_mv"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	power := string(snap.Power)
	if power == "" {
		// Zero-value snapshots report the safe boot state.
		power = string(logic.PowerLockedOut)
	}

	return StatusInner{
		Power:         power,
		SupplyMv:      snap.LastMillivolts,
		TickCount:     snap.TickCount,
		InhibitTicks:  snap.InhibitRemaining,
		DebounceTicks: snap.DebounceRemaining,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			AutoPulses:   snap.Counts.AutoPulses,
			ManualPulses: snap.Counts.ManualPulses,
			Lockouts:     snap.Counts.Lockouts,
			Recoveries:   snap.Counts.Recoveries,
		},
		Config: ConfigJSON{
			TickMs:         snap.Config.TickMs,
			PulseMs:        snap.Config.PulseMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			TriggerTicks:   snap.Config.TriggerTicks,
			DebounceTicks:  snap.Config.DebounceTicks,
			InhibitTicks:   snap.Config.InhibitTicks,
			CheckTicks:     snap.Config.CheckTicks,
			ConfirmSamples: snap.Config.ConfirmSamples,
			RiseMv:         snap.Config.RiseMillivolts,
			FallMv:         snap.Config.FallMillivolts,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
