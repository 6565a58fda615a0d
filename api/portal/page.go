package portal

import (
	"html"
	"strings"

	"github.com/ruteri/wifi-provisioning-portal/api"
	"github.com/ruteri/wifi-provisioning-portal/interfaces"
)

const pageHead = `<!DOCTYPE html><html><head>` +
	`<meta name='viewport' content='width=device-width, initial-scale=1' />` +
	`<meta charset='UTF-8' /><link rel='shortcut icon' href='/favicon.ico' type='image/x-icon'/>` +
	`<link rel='icon' href='/favicon.ico' type='image/x-icon'/>` +
	`<link rel='stylesheet' type='text/css' href='/style.css'>` +
	`<title>WiFi-Station</title>` +
	`<script>function checkSSID() {` +
	`var formData = new FormData(document.forms.wifiForm);` +
	`if (formData.get('ssid') === '` + api.SelectPlaceholder + `') {` +
	`alert('Please select your Wi-Fi.');` +
	`return false; }` +
	`}</script>` +
	`</head><body><div class='container'>` +
	`<div class='title'>` +
	`<h1 style='text-align: center;'>WiFi-Station</h1>` +
	`<button class='wifi-reload' onclick='window.location.reload(); return false;'></button>` +
	`</div>` +
	`<form method='post' action='/save' id='wifiForm'>` +
	`<div class='field-group'>` +
	`<select name='ssid'>` +
	`<option>` + api.SelectPlaceholder + `</option>`

const pageTail = `</select>` +
	`<input name='password' type='text' maxlength='128' placeholder='Password' autocomplete='off'>` +
	`</div><div class='button-container'>` +
	`<button type='submit' onclick='return checkSSID()'>Save</button>` +
	`</div></form></div></body></html>`

// uniqueSSIDs keeps the first occurrence of every visible network name.
func uniqueSSIDs(networks []interfaces.Network) []string {
	seen := make(map[string]struct{}, len(networks))
	ssids := make([]string, 0, len(networks))
	for _, n := range networks {
		if n.SSID == "" {
			continue
		}
		if _, ok := seen[n.SSID]; ok {
			continue
		}
		seen[n.SSID] = struct{}{}
		ssids = append(ssids, n.SSID)
	}
	return ssids
}

// renderPage builds the network selection form.
func renderPage(ssids []string) string {
	var b strings.Builder
	b.Grow(len(pageHead) + len(pageTail) + 32*len(ssids))

	b.WriteString(pageHead)
	for _, ssid := range ssids {
		b.WriteString("<option>")
		b.WriteString(html.EscapeString(ssid))
		b.WriteString("</option>")
	}
	b.WriteString(pageTail)

	return b.String()
}
