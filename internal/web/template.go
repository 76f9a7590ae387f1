package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/lockbeam/internal/status"
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
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%ds", int(d.Truncate(time.Second).Seconds()))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Lockbeam</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: green; font-weight: bold; }
.idle { color: #888; }
.expired { color: orange; }
.exhausted { color: red; }
.connected { color: green; }
.disconnected { color: red; }
.code-value { font-size: 1.6em; letter-spacing: 0.3em; }
</style>
</head>
<body>
<h1>Lockbeam</h1>

<h2>Code</h2>
<table>
<tr><th>State</th><td class="{{if eq (printf "%s" .Code.State) "ACTIVE"}}active{{else if eq (printf "%s" .Code.State) "EXPIRED"}}expired{{else if eq (printf "%s" .Code.State) "EXHAUSTED"}}exhausted{{else}}idle{{end}}">{{.Code.State}}</td></tr>
{{if .Code.Code}}<tr><th>Code</th><td class="code-value">{{.Code.Code}}</td></tr>
<tr><th>Expires In</th><td>{{seconds .Code.Remaining}}</td></tr>{{end}}
<tr><th>Tries Left</th><td>{{.Code.RemainingAttempts}}</td></tr>
{{if .Code.CooldownRemaining}}<tr><th>Cooldown</th><td>{{seconds .Code.CooldownRemaining}}</td></tr>{{end}}
</table>

<h2>Transmission</h2>
<table>
<tr><th>Transmitting</th><td>{{if .Transmitting}}yes{{else}}no{{end}}</td></tr>
{{if .TransmissionID}}<tr><th>ID</th><td>{{.TransmissionID}}</td></tr>{{end}}
<tr><th>Session</th><td>{{.Session}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Generated</th><td>{{.Counts.Generated}}</td></tr>
<tr><th>Attempts</th><td>{{.Counts.Attempts}}</td></tr>
<tr><th>Completed</th><td>{{.Counts.Completed}}</td></tr>
<tr><th>Failed</th><td>{{.Counts.Failed}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>User</th><td>{{.UserID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Code TTL</th><td>{{.Config.CodeTTLMs}}ms</td></tr>
<tr><th>Cooldown</th><td>{{.Config.CooldownMs}}ms</td></tr>
<tr><th>Morse Unit</th><td>{{.Config.MorseUnitMs}}ms</td></tr>
<tr><th>Idle Timeout</th><td>{{.Config.IdleTimeoutMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/api/status">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but the template wants a field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
