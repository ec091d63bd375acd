package driver

import (
	"encoding/json"

	"github.com/bile0026/shelly-exporter/internal/model"
)

// Dimmer0110VPMG3 is the driver for the Shelly Dimmer 0/1-10V PM Gen3:
// gen 3, app "Dimmer0110VPMG3", a single light channel.
type Dimmer0110VPMG3 struct{}

func NewDimmer0110VPMG3() *Dimmer0110VPMG3 { return &Dimmer0110VPMG3{} }

func (d *Dimmer0110VPMG3) ID() string   { return "dimmer_0_10v_pm" }
func (d *Dimmer0110VPMG3) Name() string { return "Shelly Dimmer 0/1-10V PM" }

func (d *Dimmer0110VPMG3) Score(info model.DeviceInfo) int {
	if info.Gen == 3 && info.App == "Dimmer0110VPMG3" {
		return 10
	}
	return 0
}

func (d *Dimmer0110VPMG3) SupportedChannels(model.DeviceInfo) map[model.ChannelKind][]int {
	return map[model.ChannelKind][]int{
		model.ChannelLight: {0},
	}
}

func (d *Dimmer0110VPMG3) Parse(status json.RawMessage, configured []model.ChannelSpec) ([]model.ChannelReading, error) {
	top, err := topLevel(status)
	if err != nil {
		return nil, err
	}
	indices := filterConfigured(configured, model.ChannelLight, []int{0})
	return parseLightChannels(top, indices), nil
}
