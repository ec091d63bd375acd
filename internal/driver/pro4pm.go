package driver

import (
	"encoding/json"

	"github.com/bile0026/shelly-exporter/internal/model"
)

// Pro4PM is the driver for the Shelly Pro 4PM: gen 2, app "Pro4PM", four
// independent switch channels.
type Pro4PM struct{}

func NewPro4PM() *Pro4PM { return &Pro4PM{} }

func (d *Pro4PM) ID() string   { return "pro4pm" }
func (d *Pro4PM) Name() string { return "Shelly Pro 4PM" }

func (d *Pro4PM) Score(info model.DeviceInfo) int {
	if info.Gen == 2 && info.App == "Pro4PM" {
		return 10
	}
	return 0
}

func (d *Pro4PM) SupportedChannels(model.DeviceInfo) map[model.ChannelKind][]int {
	return map[model.ChannelKind][]int{
		model.ChannelSwitch: {0, 1, 2, 3},
	}
}

func (d *Pro4PM) Parse(status json.RawMessage, configured []model.ChannelSpec) ([]model.ChannelReading, error) {
	top, err := topLevel(status)
	if err != nil {
		return nil, err
	}
	indices := filterConfigured(configured, model.ChannelSwitch, []int{0, 1, 2, 3})
	return parseSwitchChannels(top, indices), nil
}
