package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Mickyleitor/meshtastic-watcher/internal/logic"
	"github.com/Mickyleitor/meshtastic-watcher/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"millivolts": func(mv int) string {
		if mv == 0 {
			return "no sample yet"
		}
		return fmt.Sprintf("%d mV", mv)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Meshtastic Watcher</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.normal { color: green; font-weight: bold; }
.lockedout { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Meshtastic Watcher</h1>

<h2>Power</h2>
<table>
<tr><th>UVLO State</th><td class="{{if .PowerNormal}}normal{{else}}lockedout{{end}}">{{.Power}}</td></tr>
<tr><th>Supply</th><td>{{millivolts .LastMillivolts}}</td></tr>
<tr><th>Inhibit remaining</th><td>{{.InhibitRemaining}} ticks</td></tr>
<tr><th>Debounce remaining</th><td>{{.DebounceRemaining}} ticks</td></tr>
</table>

<h2>Trigger</h2>
<table>
<tr><th>Interval progress</th><td>{{.TickCount}} / {{.Config.TriggerTicks}} ticks</td></tr>
<tr><th>Auto pulses</th><td>{{.Counts.AutoPulses}}</td></tr>
<tr><th>Manual pulses</th><td>{{.Counts.ManualPulses}}</td></tr>
<tr><th>Lockouts</th><td>{{.Counts.Lockouts}}</td></tr>
<tr><th>Recoveries</th><td>{{.Counts.Recoveries}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Pulse</th><td>{{.Config.PulseMs}}ms</td></tr>
<tr><th>UVLO band</th><td>{{.Config.FallMillivolts}}&ndash;{{.Config.RiseMillivolts}} mV ({{.Config.ConfirmSamples}} confirmations)</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has an Uptime() method but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime      time.Duration
		PowerNormal bool
	}{
		Snapshot:    snap,
		Uptime:      snap.Uptime(),
		PowerNormal: snap.Power == logic.PowerNormal,
	}
	indexTmpl.Execute(w, data)
}
