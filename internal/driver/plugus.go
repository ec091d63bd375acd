package driver

import (
	"encoding/json"

	"github.com/bile0026/shelly-exporter/internal/model"
)

// PlugUS is the driver for the Shelly Plug US: gen 2, app "PlugUS", a
// single switch channel with a leaner field set than the Pro4PM (no
// frequency, power factor, or returned energy on the US hardware).
type PlugUS struct{}

func NewPlugUS() *PlugUS { return &PlugUS{} }

func (d *PlugUS) ID() string   { return "plugus" }
func (d *PlugUS) Name() string { return "Shelly Plug US" }

func (d *PlugUS) Score(info model.DeviceInfo) int {
	if info.Gen == 2 && info.App == "PlugUS" {
		return 10
	}
	return 0
}

func (d *PlugUS) SupportedChannels(model.DeviceInfo) map[model.ChannelKind][]int {
	return map[model.ChannelKind][]int{
		model.ChannelSwitch: {0},
	}
}

func (d *PlugUS) Parse(status json.RawMessage, configured []model.ChannelSpec) ([]model.ChannelReading, error) {
	top, err := topLevel(status)
	if err != nil {
		return nil, err
	}
	indices := filterConfigured(configured, model.ChannelSwitch, []int{0})
	return parseSwitchChannels(top, indices), nil
}
