package model

import (
	"strconv"
	"strings"
)

// renderTemplate substitutes {ip} {model} {gen} {app} {mac} {id} in a
// discovered-device name template. Unknown or empty fields substitute to
// the empty string rather than erroring — the caller is expected to have
// already decided whether identification succeeded.
func renderTemplate(template string, d DiscoveredDevice) string {
	gen := ""
	if d.Info.Gen != 0 {
		gen = strconv.Itoa(d.Info.Gen)
	}
	id := strings.ToLower(strings.ReplaceAll(d.Info.MAC, ":", ""))
	r := strings.NewReplacer(
		"{ip}", d.Address,
		"{model}", d.Info.Model,
		"{gen}", gen,
		"{app}", d.Info.App,
		"{mac}", d.Info.MAC,
		"{id}", id,
	)
	return r.Replace(template)
}
