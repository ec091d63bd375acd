package metrics

import (
	"strconv"
	"time"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// PublishSuccess records a successful poll: per-device gauges, system
// telemetry, and every channel reading filtered through its ignore mask.
// Channels configured with an ignore flag simply never get a Set call; a
// series that an earlier poll set before the flag was turned on is not
// retracted here and keeps its last value.
func (r *Registry) PublishSuccess(device string, duration time.Duration, at time.Time, sys *model.SystemTelemetry, readings []model.ChannelReading, masks map[model.ChannelSpec]config.IgnoreMask) {
	r.Up.WithLabelValues(device).Set(1)
	r.LastPollTimestamp.WithLabelValues(device).Set(float64(at.Unix()))
	r.PollDuration.WithLabelValues(device).Set(duration.Seconds())

	if sys != nil {
		r.publishSystem(device, sys)
	}

	for _, reading := range readings {
		mask := masks[model.ChannelSpec{Kind: reading.Kind, Index: reading.Index}]
		switch reading.Kind {
		case model.ChannelSwitch:
			r.publishSwitch(device, reading, mask)
		case model.ChannelLight:
			r.publishLight(device, reading, mask)
		}
	}
}

// PublishFailure records a failed poll: shelly_up drops to 0, the error
// counter increments, and last-good channel/system gauges are left
// untouched per spec §4.E rule 4.
func (r *Registry) PublishFailure(device string, duration time.Duration, at time.Time) {
	r.Up.WithLabelValues(device).Set(0)
	r.LastPollTimestamp.WithLabelValues(device).Set(float64(at.Unix()))
	r.PollDuration.WithLabelValues(device).Set(duration.Seconds())
	r.PollErrorsTotal.WithLabelValues(device).Inc()
}

func (r *Registry) publishSystem(device string, sys *model.SystemTelemetry) {
	setIfPresent(r.SysUptime, device, sys.UptimeSeconds)
	setIfPresent(r.SysRAMFree, device, sys.RAMFreeBytes)
	setIfPresent(r.SysRAMTotal, device, sys.RAMTotalBytes)
	setIfPresent(r.SysFSFree, device, sys.FSFreeBytes)
	setIfPresent(r.SysFSTotal, device, sys.FSTotalBytes)
	setIfPresent(r.SysConfigRevision, device, sys.ConfigRevision)
	setIfPresent(r.WiFiRSSI, device, sys.WiFiRSSI)
	setBoolIfPresent(r.WiFiConnected, device, sys.WiFiConnected)
	setBoolIfPresent(r.CloudConnected, device, sys.CloudConnected)
	setBoolIfPresent(r.MQTTConnected, device, sys.MQTTConnected)

	for _, in := range sys.Inputs {
		v := 0.0
		if in.State {
			v = 1.0
		}
		r.InputState.WithLabelValues(device, strconv.Itoa(in.Index)).Set(v)
	}
}

func (r *Registry) publishSwitch(device string, reading model.ChannelReading, mask config.IgnoreMask) {
	meter := strconv.Itoa(reading.Index)
	if !mask.Output {
		setBoolIfPresent(r.SwitchOutput, device, reading.Output, meter)
	}
	if !mask.ActivePower {
		setIfPresent(r.SwitchAPower, device, reading.ActivePower, meter)
	}
	if !mask.Voltage {
		setIfPresent(r.SwitchVoltage, device, reading.Voltage, meter)
	}
	if !mask.Frequency {
		setIfPresent(r.SwitchFrequency, device, reading.Frequency, meter)
	}
	if !mask.Current {
		setIfPresent(r.SwitchCurrent, device, reading.Current, meter)
	}
	if !mask.PowerFactor {
		setIfPresent(r.SwitchPowerFactor, device, reading.PowerFactor, meter)
	}
	if !mask.Temperature {
		setIfPresent(r.SwitchTemperature, device, reading.Temperature, meter)
	}
	if !mask.TotalActiveEnergy {
		setIfPresent(r.SwitchAEnergyTotal, device, reading.TotalActiveEnergy, meter)
	}
	if !mask.TotalReturnedActiveEnergy {
		setIfPresent(r.SwitchRetAEnergyTotal, device, reading.TotalReturnedActiveEnergy, meter)
	}
}

func (r *Registry) publishLight(device string, reading model.ChannelReading, mask config.IgnoreMask) {
	channel := strconv.Itoa(reading.Index)
	if !mask.Output {
		setBoolIfPresent(r.LightOutput, device, reading.Output, channel)
	}
	if !mask.Brightness {
		setIfPresent(r.LightBrightness, device, reading.Brightness, channel)
	}
	if !mask.ActivePower {
		setIfPresent(r.LightAPower, device, reading.ActivePower, channel)
	}
	if !mask.TotalActiveEnergy {
		setIfPresent(r.LightAEnergyTotal, device, reading.TotalActiveEnergy, channel)
	}
	if !mask.Voltage {
		setIfPresent(r.LightVoltage, device, reading.Voltage, channel)
	}
	if !mask.Current {
		setIfPresent(r.LightCurrent, device, reading.Current, channel)
	}
	if !mask.Temperature {
		setIfPresent(r.LightTemperature, device, reading.Temperature, channel)
	}
}

func setIfPresent(vec interface {
	WithLabelValues(...string) prometheus.Gauge
}, device string, v *float64, extraLabels ...string) {
	if v == nil {
		return
	}
	vec.WithLabelValues(append([]string{device}, extraLabels...)...).Set(*v)
}

func setBoolIfPresent(vec interface {
	WithLabelValues(...string) prometheus.Gauge
}, device string, v *bool, extraLabels ...string) {
	if v == nil {
		return
	}
	f := 0.0
	if *v {
		f = 1.0
	}
	vec.WithLabelValues(append([]string{device}, extraLabels...)...).Set(f)
}
