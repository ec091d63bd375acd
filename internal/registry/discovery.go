package registry

import (
	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/driver"
	"github.com/bile0026/shelly-exporter/internal/model"
)

// HasHost reports whether any tracked target already polls this host,
// regardless of its name — used by discovery to stay idempotent on
// address per spec §4.G.
func (r *Registry) HasHost(host string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Target.Host == host {
			return true
		}
	}
	return false
}

// InsertDiscovered builds a Target from a positively identified discovered
// device and adds it to the registry, unless its address is already
// tracked. It returns false when the insert was skipped because the host
// was already live. Channels are derived from the driver's supported
// channels for this device with no ignore flags set, per spec §4.G.
func (r *Registry) InsertDiscovered(dd model.DiscoveredDevice, drv driver.Driver, disc config.Discovery, defaultCreds config.Credentials) bool {
	if r.HasHost(dd.Address) {
		return false
	}

	var channels []config.ChannelSpec
	for kind, indices := range drv.SupportedChannels(dd.Info) {
		for _, idx := range indices {
			channels = append(channels, config.ChannelSpec{
				ChannelSpec: model.ChannelSpec{Kind: kind, Index: idx},
			})
		}
	}

	t := config.Target{
		Name:        dd.Name(disc.NameTemplate),
		Host:        dd.Address,
		Credentials: config.ResolveCredentials(disc.AutoAddCredentials, defaultCreds),
		Channels:    channels,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := t.Key()
	if _, exists := r.entries[key]; exists {
		return false
	}
	r.entries[key] = &Entry{
		Target: t,
		State:  &PollState{NextRun: dd.DiscoveredAt},
	}
	return true
}
