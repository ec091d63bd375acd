// Package driver declares the pluggable device-family interface and the
// process-wide registry that scores and selects one per target. Four
// concrete drivers ship with this package; adding a fifth means writing a
// new file in this package and appending it to DefaultRegistry — no
// change to the scheduler or metric registry is required.
package driver

import (
	"encoding/json"

	"github.com/bile0026/shelly-exporter/internal/model"
)

// Driver identifies a device family and translates its status payload
// into normalized channel readings.
type Driver interface {
	// ID is a stable, short identifier used in logs and metrics.
	ID() string
	// Name is a human-readable label.
	Name() string
	// Score returns a non-negative match strength for info; 0 means this
	// driver does not support the device at all.
	Score(info model.DeviceInfo) int
	// SupportedChannels enumerates the channel kind/index pairs this
	// driver can parse for a device matching info.
	SupportedChannels(info model.DeviceInfo) map[model.ChannelKind][]int
	// Parse extracts one ChannelReading per entry of configured (or, when
	// configured is empty, per supported channel) that is present in
	// status. It never errors on missing or null fields within
	// the payload — only on a status payload that isn't even a JSON
	// object — and ignores any top-level keys it doesn't recognize.
	Parse(status json.RawMessage, configured []model.ChannelSpec) ([]model.ChannelReading, error)
}

// Registry is an ordered, process-wide list of drivers built at startup.
type Registry struct {
	drivers []Driver
}

// NewRegistry builds a registry from drivers in registration order; ties
// in Score are broken in favor of the earlier entry.
func NewRegistry(drivers ...Driver) *Registry {
	return &Registry{drivers: drivers}
}

// Select scans every registered driver and returns the one with the
// highest positive score for info, or ok=false if none scores positively.
func (r *Registry) Select(info model.DeviceInfo) (Driver, bool) {
	var best Driver
	bestScore := 0
	for _, d := range r.drivers {
		s := d.Score(info)
		if s > bestScore {
			bestScore = s
			best = d
		}
	}
	return best, best != nil
}

// All returns every registered driver in registration order.
func (r *Registry) All() []Driver {
	out := make([]Driver, len(r.drivers))
	copy(out, r.drivers)
	return out
}

// DefaultRegistry builds the registry shipping with this exporter: Pro4PM,
// 1PM Gen4, PlugUS, and Dimmer 0/1-10V PM, in that registration order.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewPro4PM(),
		NewOnePMGen4(),
		NewPlugUS(),
		NewDimmer0110VPMG3(),
	)
}
