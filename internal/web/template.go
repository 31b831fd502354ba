package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/status"
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
	"lampClass": func(lit logic.Phase, lamp string) string {
		if string(lit) == lamp {
			return "lamp " + lamp + " lit"
		}
		return "lamp " + lamp
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="1">
<title>Traffic Light</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.signal { display: inline-block; background: #222; padding: 8px; border-radius: 8px; }
.lamp { width: 40px; height: 40px; border-radius: 50%; margin: 6px; background: #444; }
.lamp.RED.lit { background: #e22; }
.lamp.YELLOW.lit { background: #eb2; }
.lamp.GREEN.lit { background: #2c2; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Traffic Light</h1>

<div class="signal">
<div id="lamp-red" class="{{lampClass .Phase "RED"}}"></div>
<div id="lamp-yellow" class="{{lampClass .Phase "YELLOW"}}"></div>
<div id="lamp-green" class="{{lampClass .Phase "GREEN"}}"></div>
</div>

<h2>State</h2>
<table>
<tr><th>Power</th><td id="power">{{if .Powered}}1{{else}}0{{end}}</td></tr>
<tr><th>Phase</th><td id="phase">{{.Phase}}</td></tr>
{{if .Powered}}<tr><th>Remaining</th><td>{{.Remaining.Milliseconds}}ms</td></tr>{{end}}
</table>

<h2>Transitions</h2>
<table>
<tr><th>RED</th><td>{{.Counts.Red}}</td></tr>
<tr><th>GREEN</th><td>{{.Counts.Green}}</td></tr>
<tr><th>YELLOW</th><td>{{.Counts.Yellow}}</td></tr>
<tr><th>Armed</th><td>{{.Counts.Arms}}</td></tr>
<tr><th>Disarmed</th><td>{{.Counts.Disarms}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Chip</th><td>{{.Config.Chip}}</td></tr>
<tr><th>Pins</th><td>red={{.Config.PinRed}} yellow={{.Config.PinYellow}} green={{.Config.PinGreen}}</td></tr>
<tr><th>Control file</th><td>{{if .Config.ControlPath}}{{.Config.ControlPath}}{{else}}disabled{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/power">power</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
