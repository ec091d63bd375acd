// Package model holds the normalized domain types shared by the device
// client, drivers, scheduler, and metric registry: device identity,
// per-channel readings, and per-poll metadata. None of these types touch
// JSON or YAML directly — that's the job of the packages that produce and
// consume them.
package model

import "time"

// ChannelKind identifies the family of a configured or parsed channel.
type ChannelKind string

const (
	ChannelSwitch ChannelKind = "switch"
	ChannelLight  ChannelKind = "light"
)

// DeviceInfo is the cached result of the Shelly.GetDeviceInfo RPC.
type DeviceInfo struct {
	Model string
	Gen   int
	App   string
	MAC   string
}

// Empty reports whether no identification has succeeded yet.
func (d DeviceInfo) Empty() bool {
	return d.Model == "" && d.Gen == 0 && d.App == "" && d.MAC == ""
}

// ChannelReading is the normalized per-channel telemetry produced by a
// driver's parse step. Every numeric field is a pointer: nil means the
// source payload did not carry that field (missing key or JSON null),
// distinct from a present zero value.
type ChannelReading struct {
	Kind  ChannelKind
	Index int

	Output     *bool
	Brightness *float64

	ActivePower               *float64
	Voltage                   *float64
	Frequency                 *float64
	Current                   *float64
	PowerFactor               *float64
	Temperature               *float64
	TotalActiveEnergy         *float64
	TotalReturnedActiveEnergy *float64
}

// ChannelSpec names a channel slot without any per-target configuration
// (ignore masks, names) attached — just enough for a driver to know which
// channels a target cares about. config.ChannelSpec embeds this and adds
// the ignore mask; keeping the bare identity here avoids an import cycle
// between the config and driver packages.
type ChannelSpec struct {
	Kind  ChannelKind
	Index int
}

// InputState is one digital input's read state.
type InputState struct {
	Index int
	State bool
}

// SystemTelemetry is the device-wide telemetry extracted independent of
// any particular driver, from the `sys`/`wifi`/`cloud`/`mqtt` subtrees of
// Shelly.GetStatus.
type SystemTelemetry struct {
	UptimeSeconds  *float64
	RAMFreeBytes   *float64
	RAMTotalBytes  *float64
	FSFreeBytes    *float64
	FSTotalBytes   *float64
	ConfigRevision *float64

	WiFiRSSI      *float64
	WiFiConnected *bool

	CloudConnected *bool
	MQTTConnected  *bool

	Inputs []InputState
}

// ErrorKind classifies a poll or probe failure. It is a closed set so
// callers can switch on it without parsing error strings.
type ErrorKind string

const (
	ErrConfigInvalid      ErrorKind = "ConfigInvalid"
	ErrNetworkUnreachable ErrorKind = "NetworkUnreachable"
	ErrTimeout            ErrorKind = "Timeout"
	ErrConnect            ErrorKind = "Connect"
	ErrAuthDenied         ErrorKind = "AuthDenied"
	ErrHTTPStatus         ErrorKind = "HttpStatus"
	ErrMalformedResponse  ErrorKind = "MalformedResponse"
	ErrRPCError           ErrorKind = "RpcError"
	ErrUnknownDevice      ErrorKind = "UnknownDevice"
	ErrChannelMisconfigured ErrorKind = "ChannelMisconfigured"
	ErrScannerProbeFail   ErrorKind = "ScannerProbeFail"
)

// DeviceReading is the per-poll metadata produced alongside channel
// readings: whether the poll succeeded, how long it took, and a snapshot
// of device-wide telemetry when available.
type DeviceReading struct {
	Up       bool
	Duration time.Duration
	At       time.Time
	Err      ErrorKind

	System *SystemTelemetry
}

// DiscoveredDevice is the output of a scan or mDNS resolution: an address
// that answered Shelly.GetDeviceInfo.
type DiscoveredDevice struct {
	Address       string
	Info          DeviceInfo
	DiscoveredAt  time.Time
}

// Name renders a discovered device's name from a template containing any
// of {ip} {model} {gen} {app} {mac} {id}, substituting empty strings
// safely when a field is unknown.
func (d DiscoveredDevice) Name(template string) string {
	return renderTemplate(template, d)
}
