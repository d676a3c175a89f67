package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/io-manager/internal/status"
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
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"ledClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "BLINK":
			return "blink"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>IO Manager</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.blink { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>IO Manager <small>{{.Identity}}</small></h1>

<h2>LEDs</h2>
<table>
{{range $i, $s := .LEDs}}<tr><th>LED {{$i}}</th><td class="{{ledClass $s}}">{{$s}}</td></tr>
{{else}}<tr><td>none configured</td></tr>
{{end}}</table>

<h2>Relays</h2>
<table>
{{range $i, $on := .Relays}}<tr><th>Relay {{$i}}</th><td class="{{if $on}}on{{else}}off{{end}}">{{if $on}}ON{{else}}OFF{{end}}</td></tr>
{{else}}<tr><td>none configured</td></tr>
{{end}}</table>

<h2>Controller</h2>
<table>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Lock</th><td>{{orUnknown .Lock}}</td></tr>
<tr><th>Last selection</th><td>{{if .Selection}}{{.Selection}}{{else}}none{{end}}</td></tr>
<tr><th>Fan</th><td>{{orUnknown .FanLevel}}</td></tr>
<tr><th>CPU</th><td>{{if .TempErr}}{{.TempErr}}{{else}}{{.CPUTempC}}°C{{end}}</td></tr>
<tr><th>Tick</th><td>{{.Tick}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Published</th><td>{{.Publishes}} ({{.PublishErrors}} failed)</td></tr>
<tr><th>Outbox</th><td>{{.Buffered}} waiting, {{.Dropped}} dropped</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Commands</th><td>{{.Counts.Commands}}</td></tr>
<tr><th>Ignored</th><td>{{.Counts.Ignored}}</td></tr>
<tr><th>Decode errors</th><td>{{.Counts.DecodeErrors}}</td></tr>
<tr><th>Transport errors</th><td>{{.Counts.TransportErrors}}</td></tr>
<tr><th>Hardware errors</th><td>{{.Counts.HardwareErrors}}</td></tr>
<tr><th>Deferred</th><td>{{.Deferrals}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Keepalive</th><td>every {{.Config.KeepAliveTicks}} ticks</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · live feed on <code>/ws</code></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// The template needs Uptime as a field, not a method.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
