// Package metrics is the Metric Registry: a prometheus.Collector facade
// that owns every series the exporter emits and knows how to retract a
// device's or channel's series when it drops out of the live set.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shelly"

// Registry owns all GaugeVec/CounterVec families. It is not itself a
// prometheus.Collector: MustRegister registers each family individually.
type Registry struct {
	Up                 *prometheus.GaugeVec
	LastPollTimestamp  *prometheus.GaugeVec
	PollDuration       *prometheus.GaugeVec
	PollErrorsTotal    *prometheus.CounterVec

	SysUptime   *prometheus.GaugeVec
	SysRAMFree  *prometheus.GaugeVec
	SysRAMTotal *prometheus.GaugeVec
	SysFSFree   *prometheus.GaugeVec
	SysFSTotal  *prometheus.GaugeVec
	SysConfigRevision *prometheus.GaugeVec

	WiFiRSSI      *prometheus.GaugeVec
	WiFiConnected *prometheus.GaugeVec
	CloudConnected *prometheus.GaugeVec
	MQTTConnected  *prometheus.GaugeVec
	InputState     *prometheus.GaugeVec

	SwitchOutput       *prometheus.GaugeVec
	SwitchAPower       *prometheus.GaugeVec
	SwitchVoltage      *prometheus.GaugeVec
	SwitchFrequency    *prometheus.GaugeVec
	SwitchCurrent      *prometheus.GaugeVec
	SwitchPowerFactor  *prometheus.GaugeVec
	SwitchTemperature  *prometheus.GaugeVec
	SwitchAEnergyTotal *prometheus.GaugeVec
	SwitchRetAEnergyTotal *prometheus.GaugeVec

	LightOutput      *prometheus.GaugeVec
	LightBrightness  *prometheus.GaugeVec
	LightAPower      *prometheus.GaugeVec
	LightAEnergyTotal *prometheus.GaugeVec
	LightVoltage     *prometheus.GaugeVec
	LightCurrent     *prometheus.GaugeVec
	LightTemperature *prometheus.GaugeVec

	DiscoveredDevicesTotal *prometheus.GaugeVec
	DiscoveryScanDuration  prometheus.Gauge
	DiscoveryScanErrorsTotal prometheus.Counter
	DiscoveredDeviceInfo   *prometheus.GaugeVec

	ConfigReloadsTotal          prometheus.Counter
	ConfigReloadErrorsTotal     prometheus.Counter
	ConfigLastReloadTimestamp   prometheus.Gauge
	ConfigLastReloadStatus      prometheus.Gauge
}

func gv(name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

func cv(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

// New builds a fresh Registry. Call MustRegister to attach it to a
// prometheus.Registerer.
func New() *Registry {
	return &Registry{
		Up:                gv("up", "Whether the last poll of this device succeeded (1) or not (0).", "device"),
		LastPollTimestamp: gv("last_poll_timestamp_seconds", "Unix time of the last poll attempt.", "device"),
		PollDuration:      gv("poll_duration_seconds", "Duration of the last poll attempt.", "device"),
		PollErrorsTotal:   cv("poll_errors_total", "Count of failed polls.", "device"),

		SysUptime:         gv("system_uptime_seconds", "Device-reported uptime.", "device"),
		SysRAMFree:        gv("system_ram_free_bytes", "Free RAM on the device.", "device"),
		SysRAMTotal:       gv("system_ram_total_bytes", "Total RAM on the device.", "device"),
		SysFSFree:         gv("system_fs_free_bytes", "Free filesystem space on the device.", "device"),
		SysFSTotal:        gv("system_fs_total_bytes", "Total filesystem space on the device.", "device"),
		SysConfigRevision: gv("system_config_revision", "Device-reported config revision.", "device"),

		WiFiRSSI:       gv("wifi_rssi_dbm", "WiFi signal strength in dBm.", "device"),
		WiFiConnected:  gv("wifi_connected", "Whether the device reports an IP-connected WiFi link.", "device"),
		CloudConnected: gv("cloud_connected", "Whether the device reports an active cloud connection.", "device"),
		MQTTConnected:  gv("mqtt_connected", "Whether the device reports an active MQTT connection.", "device"),
		InputState:     gv("input_state", "State of a digital input.", "device", "input"),

		SwitchOutput:          gv("switch_output", "Switch channel relay output state.", "device", "meter"),
		SwitchAPower:          gv("switch_apower_watts", "Switch channel active power.", "device", "meter"),
		SwitchVoltage:         gv("switch_voltage_volts", "Switch channel voltage.", "device", "meter"),
		SwitchFrequency:       gv("switch_frequency_hz", "Switch channel line frequency.", "device", "meter"),
		SwitchCurrent:         gv("switch_current_amps", "Switch channel current.", "device", "meter"),
		SwitchPowerFactor:     gv("switch_power_factor", "Switch channel power factor.", "device", "meter"),
		SwitchTemperature:     gv("switch_temperature_c", "Switch channel temperature.", "device", "meter"),
		SwitchAEnergyTotal:    gv("switch_aenergy_wh_total", "Switch channel cumulative active energy.", "device", "meter"),
		SwitchRetAEnergyTotal: gv("switch_ret_aenergy_wh_total", "Switch channel cumulative returned active energy.", "device", "meter"),

		LightOutput:       gv("light_output", "Light channel output state.", "device", "channel"),
		LightBrightness:   gv("light_brightness_percent", "Light channel brightness.", "device", "channel"),
		LightAPower:       gv("light_apower_watts", "Light channel active power.", "device", "channel"),
		LightAEnergyTotal: gv("light_aenergy_wh_total", "Light channel cumulative active energy.", "device", "channel"),
		LightVoltage:      gv("light_voltage_volts", "Light channel voltage.", "device", "channel"),
		LightCurrent:      gv("light_current_amps", "Light channel current.", "device", "channel"),
		LightTemperature:  gv("light_temperature_c", "Light channel temperature.", "device", "channel"),

		DiscoveredDevicesTotal: gv("discovered_devices_total", "Count of discovered devices inserted into the live targets.", "source"),
		DiscoveryScanDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "discovery_scan_duration_seconds", Help: "Duration of the last network scan.",
		}),
		DiscoveryScanErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "discovery_scan_errors_total", Help: "Count of probe failures during scanning.",
		}),
		DiscoveredDeviceInfo: gv("discovered_device_info", "Info about a discovered device, value always 1.", "ip", "model", "gen", "app", "mac", "discovered_at"),

		ConfigReloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "config_reloads_total", Help: "Count of successful config reloads.",
		}),
		ConfigReloadErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "config_reload_errors_total", Help: "Count of rejected config reloads.",
		}),
		ConfigLastReloadTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "config_last_reload_timestamp_seconds", Help: "Unix time of the last reload attempt.",
		}),
		ConfigLastReloadStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "config_last_reload_status", Help: "Whether the last reload attempt succeeded (1) or not (0).",
		}),
	}
}

// MustRegister attaches every collector in the Registry to reg.
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		r.Up, r.LastPollTimestamp, r.PollDuration, r.PollErrorsTotal,
		r.SysUptime, r.SysRAMFree, r.SysRAMTotal, r.SysFSFree, r.SysFSTotal, r.SysConfigRevision,
		r.WiFiRSSI, r.WiFiConnected, r.CloudConnected, r.MQTTConnected, r.InputState,
		r.SwitchOutput, r.SwitchAPower, r.SwitchVoltage, r.SwitchFrequency, r.SwitchCurrent,
		r.SwitchPowerFactor, r.SwitchTemperature, r.SwitchAEnergyTotal, r.SwitchRetAEnergyTotal,
		r.LightOutput, r.LightBrightness, r.LightAPower, r.LightAEnergyTotal, r.LightVoltage, r.LightCurrent, r.LightTemperature,
		r.DiscoveredDevicesTotal, r.DiscoveryScanDuration, r.DiscoveryScanErrorsTotal, r.DiscoveredDeviceInfo,
		r.ConfigReloadsTotal, r.ConfigReloadErrorsTotal, r.ConfigLastReloadTimestamp, r.ConfigLastReloadStatus,
	)
}

// DeleteDevice retracts every per-device and per-channel series for a
// device name that has left the live set, across every label combination
// that might exist (meters/channels 0-7 covers every shipped driver).
func (r *Registry) DeleteDevice(device string) {
	r.Up.DeleteLabelValues(device)
	r.LastPollTimestamp.DeleteLabelValues(device)
	r.PollDuration.DeleteLabelValues(device)
	r.PollErrorsTotal.DeleteLabelValues(device)
	r.SysUptime.DeleteLabelValues(device)
	r.SysRAMFree.DeleteLabelValues(device)
	r.SysRAMTotal.DeleteLabelValues(device)
	r.SysFSFree.DeleteLabelValues(device)
	r.SysFSTotal.DeleteLabelValues(device)
	r.SysConfigRevision.DeleteLabelValues(device)
	r.WiFiRSSI.DeleteLabelValues(device)
	r.WiFiConnected.DeleteLabelValues(device)
	r.CloudConnected.DeleteLabelValues(device)
	r.MQTTConnected.DeleteLabelValues(device)

	for i := 0; i < 8; i++ {
		idx := strconv.Itoa(i)
		r.InputState.DeleteLabelValues(device, idx)
		r.SwitchOutput.DeleteLabelValues(device, idx)
		r.SwitchAPower.DeleteLabelValues(device, idx)
		r.SwitchVoltage.DeleteLabelValues(device, idx)
		r.SwitchFrequency.DeleteLabelValues(device, idx)
		r.SwitchCurrent.DeleteLabelValues(device, idx)
		r.SwitchPowerFactor.DeleteLabelValues(device, idx)
		r.SwitchTemperature.DeleteLabelValues(device, idx)
		r.SwitchAEnergyTotal.DeleteLabelValues(device, idx)
		r.SwitchRetAEnergyTotal.DeleteLabelValues(device, idx)
		r.LightOutput.DeleteLabelValues(device, idx)
		r.LightBrightness.DeleteLabelValues(device, idx)
		r.LightAPower.DeleteLabelValues(device, idx)
		r.LightAEnergyTotal.DeleteLabelValues(device, idx)
		r.LightVoltage.DeleteLabelValues(device, idx)
		r.LightCurrent.DeleteLabelValues(device, idx)
		r.LightTemperature.DeleteLabelValues(device, idx)
	}
}

// DeleteSwitchChannel retracts one switch channel's series. Config reload
// does not call it: only removed targets are retracted, via DeleteDevice.
func (r *Registry) DeleteSwitchChannel(device, meter string) {
	r.SwitchOutput.DeleteLabelValues(device, meter)
	r.SwitchAPower.DeleteLabelValues(device, meter)
	r.SwitchVoltage.DeleteLabelValues(device, meter)
	r.SwitchFrequency.DeleteLabelValues(device, meter)
	r.SwitchCurrent.DeleteLabelValues(device, meter)
	r.SwitchPowerFactor.DeleteLabelValues(device, meter)
	r.SwitchTemperature.DeleteLabelValues(device, meter)
	r.SwitchAEnergyTotal.DeleteLabelValues(device, meter)
	r.SwitchRetAEnergyTotal.DeleteLabelValues(device, meter)
}

// DeleteLightChannel retracts one light channel's series.
func (r *Registry) DeleteLightChannel(device, channel string) {
	r.LightOutput.DeleteLabelValues(device, channel)
	r.LightBrightness.DeleteLabelValues(device, channel)
	r.LightAPower.DeleteLabelValues(device, channel)
	r.LightAEnergyTotal.DeleteLabelValues(device, channel)
	r.LightVoltage.DeleteLabelValues(device, channel)
	r.LightCurrent.DeleteLabelValues(device, channel)
	r.LightTemperature.DeleteLabelValues(device, channel)
}
