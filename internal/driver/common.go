package driver

import (
	"encoding/json"
	"fmt"

	"github.com/bile0026/shelly-exporter/internal/model"
)

func switchKey(index int) string { return fmt.Sprintf("switch:%d", index) }
func lightKey(index int) string  { return fmt.Sprintf("light:%d", index) }

// filterConfigured returns the indices of kind present in configured, or
// every index in all if configured is empty (a target configured without
// any channels, and the driver tests, which pass nil).
func filterConfigured(configured []model.ChannelSpec, kind model.ChannelKind, all []int) []int {
	if len(configured) == 0 {
		return all
	}
	want := map[int]bool{}
	for _, c := range configured {
		if c.Kind == kind {
			want[c.Index] = true
		}
	}
	var out []int
	for _, idx := range all {
		if want[idx] {
			out = append(out, idx)
		}
	}
	return out
}

// parseSwitchChannels extracts one ChannelReading per index in indices
// that is present as `switch:N` in top, skipping indices the payload
// doesn't carry at all.
func parseSwitchChannels(top map[string]json.RawMessage, indices []int) []model.ChannelReading {
	var out []model.ChannelReading
	for _, idx := range indices {
		raw, ok := top[switchKey(idx)]
		if !ok {
			continue
		}
		p := decodeSwitch(raw)
		out = append(out, model.ChannelReading{
			Kind:                      model.ChannelSwitch,
			Index:                     idx,
			Output:                    p.Output,
			ActivePower:               p.APower,
			Voltage:                   p.Voltage,
			Frequency:                 p.Freq,
			Current:                   p.Current,
			PowerFactor:               p.PF,
			Temperature:               tempC(p.Temperature),
			TotalActiveEnergy:         energyTotal(p.AEnergy),
			TotalReturnedActiveEnergy: energyTotal(p.RetAEnergy),
		})
	}
	return out
}

// parseLightChannels is parseSwitchChannels' counterpart for `light:N`.
func parseLightChannels(top map[string]json.RawMessage, indices []int) []model.ChannelReading {
	var out []model.ChannelReading
	for _, idx := range indices {
		raw, ok := top[lightKey(idx)]
		if !ok {
			continue
		}
		p := decodeLight(raw)
		out = append(out, model.ChannelReading{
			Kind:              model.ChannelLight,
			Index:             idx,
			Output:            p.Output,
			Brightness:        p.Brightness,
			ActivePower:       p.APower,
			Voltage:           p.Voltage,
			Current:           p.Current,
			Temperature:       tempC(p.Temperature),
			TotalActiveEnergy: energyTotal(p.AEnergy),
		})
	}
	return out
}
