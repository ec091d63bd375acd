package driver

import (
	"encoding/json"

	"github.com/bile0026/shelly-exporter/internal/model"
)

// OnePMGen4 is the driver for the Shelly 1PM Gen4: gen 4, app "S1PMG4",
// a single switch channel.
type OnePMGen4 struct{}

func NewOnePMGen4() *OnePMGen4 { return &OnePMGen4{} }

func (d *OnePMGen4) ID() string   { return "1pm_gen4" }
func (d *OnePMGen4) Name() string { return "Shelly 1PM Gen4" }

func (d *OnePMGen4) Score(info model.DeviceInfo) int {
	if info.Gen == 4 && info.App == "S1PMG4" {
		return 10
	}
	return 0
}

func (d *OnePMGen4) SupportedChannels(model.DeviceInfo) map[model.ChannelKind][]int {
	return map[model.ChannelKind][]int{
		model.ChannelSwitch: {0},
	}
}

func (d *OnePMGen4) Parse(status json.RawMessage, configured []model.ChannelSpec) ([]model.ChannelReading, error) {
	top, err := topLevel(status)
	if err != nil {
		return nil, err
	}
	indices := filterConfigured(configured, model.ChannelSwitch, []int{0})
	return parseSwitchChannels(top, indices), nil
}
