package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/intercom-node/internal/status"
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
	"relayClass": func(s string) string {
		switch s {
		case "CLOSED":
			return "on"
		case "OPEN":
			return "off"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Intercom Node</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Intercom Node {{.Config.NodeID}}{{if and .Config.WSBroker .Config.ScriptURL}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Relay</th><td id="relay-state" class="{{relayClass .Relay}}">{{.Relay}}</td></tr>
<tr><th>Pulse</th><td>{{.Node.Pulse}} ({{.Node.Pulses}} total)</td></tr>
<tr><th>Bell</th><td id="bell-count">{{.Node.BellCount}}</td></tr>
<tr><th>Temperature</th><td>{{if .Node.TemperatureSet}}{{printf "%.2f" .Node.Temperature}} &deg;C{{else}}-{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}} ({{.Config.Encoding}})</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Firmware</th><td>{{.Config.Firmware}} {{.Config.Version}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pulse width</th><td>{{.Config.PulseMs}}ms</td></tr>
<tr><th>Bell debounce</th><td>{{.Config.BellDebounceMs}}ms</td></tr>
<tr><th>Relay heartbeat</th><td>{{.Config.RelayHeartbeatMs}}ms</td></tr>
<tr><th>Temperature</th><td>every {{.Config.TemperatureIntervalMs}}ms, &Delta;{{.Config.TemperatureDelta}}, forced {{.Config.TemperatureHeartbeatMs}}ms</td></tr>
<tr><th>Remote set</th><td>{{.Config.RemoteSetMode}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if and .Config.WSBroker .Config.ScriptURL}}
<script src="{{.Config.ScriptURL}}"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var relayTopic = "{{.Config.RelayTopic}}";
  var bellTopic = "{{.Config.BellTopic}}";
  var dot = document.getElementById("live-dot");
  var relayEl = document.getElementById("relay-state");
  var bellEl = document.getElementById("bell-count");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe([relayTopic, bellTopic]);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var v = JSON.parse(payload.toString());
      if (t === relayTopic) {
        relayEl.textContent = v ? "CLOSED" : "OPEN";
        relayEl.className = v ? "on" : "off";
      } else if (t === bellTopic) {
        bellEl.textContent = v;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Relay  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Relay:    status.RelayString(snap.Node),
	}
	indexTmpl.Execute(w, data)
}
