package wanted

import "strings"

// ModelClass marks the hidden container so later tooling can find it
const ModelClass = "npceo-model"

// RenderModelMarker trims every line of raw, drops the empty ones (and
// lone "0" lines, as the wiki's emptiness check does), joins the rest with
// no separator and wraps them in a hidden span. The payload is passed
// through untouched.
func RenderModelMarker(raw string) string {
	var b strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "0" {
			continue
		}
		b.WriteString(line)
	}
	return `<span class="` + ModelClass + `" style="display: none">` + b.String() + `</span>`
}
