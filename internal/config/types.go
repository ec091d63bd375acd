// Package config loads and validates the exporter's YAML configuration
// into an immutable snapshot: global settings plus an ordered list of
// validated targets. It never mutates a snapshot once built — reload
// produces a new one, or is rejected and the caller keeps the old one.
package config

import (
	"time"

	"github.com/bile0026/shelly-exporter/internal/model"
)

// Credentials is an optional HTTP Basic auth pair.
type Credentials struct {
	Username string
	Password string
}

// Enabled reports whether either field is non-empty.
func (c Credentials) Enabled() bool {
	return c.Username != "" || c.Password != ""
}

// IgnoreMask marks which channel metrics are suppressed for one channel.
type IgnoreMask struct {
	Voltage                   bool
	Current                   bool
	ActivePower               bool
	PowerFactor               bool
	Frequency                 bool
	TotalActiveEnergy         bool
	TotalReturnedActiveEnergy bool
	Temperature               bool
	Output                    bool
	Brightness                bool
}

// ChannelSpec is a configured channel slot on a target.
type ChannelSpec struct {
	model.ChannelSpec
	Ignore IgnoreMask
}

// Target is a logical polling unit: a stable name, a host address, and
// its configured channels. Identity for diffing is (Name, Host).
type Target struct {
	Name           string
	Host           string
	PollInterval   time.Duration
	Credentials    Credentials
	Channels       []ChannelSpec
}

// Key returns the diffing identity of a target: (name, host).
func (t Target) Key() string {
	return t.Name + "@" + t.Host
}

// IgnoreMasks indexes the target's configured channels by their bare
// (kind, index) identity, for the metric publisher to look up per-reading
// suppression flags without knowing about config.ChannelSpec.
func (t Target) IgnoreMasks() map[model.ChannelSpec]IgnoreMask {
	out := make(map[model.ChannelSpec]IgnoreMask, len(t.Channels))
	for _, c := range t.Channels {
		out[c.ChannelSpec] = c.Ignore
	}
	return out
}

// ChannelSpecs returns the bare channel identities configured for this
// target, for passing to a Driver's Parse.
func (t Target) ChannelSpecs() []model.ChannelSpec {
	out := make([]model.ChannelSpec, len(t.Channels))
	for i, c := range t.Channels {
		out[i] = c.ChannelSpec
	}
	return out
}

// Discovery holds the Network Scanner's settings.
type Discovery struct {
	Enabled             bool
	ScanInterval        time.Duration
	NetworkRanges       []string
	ExcludeIPs          []string
	ScanTimeout         time.Duration
	ScanConcurrency     int
	AutoAddDiscovered   bool
	AutoAddCredentials  Credentials
	NameTemplate        string
	PersistPath         string

	MDNSEnabled  bool
	MDNSInterval time.Duration
	MDNSFilter   string
}

// Settings are the global, process-wide knobs.
type Settings struct {
	LogLevel               string
	LogFormat              string
	ListenHost             string
	ListenPort             int
	PollInterval           time.Duration
	RequestTimeout         time.Duration
	MaxConcurrency         int
	DeviceInfoRefresh      time.Duration
	BackoffBase            time.Duration
	BackoffMax             time.Duration
	DefaultCredentials     Credentials
	Discovery              Discovery
}

// Snapshot is an immutable, validated configuration: global settings plus
// an ordered list of targets. A loader either produces a full Snapshot or
// rejects the input outright — there is no partially valid snapshot.
type Snapshot struct {
	Settings Settings
	Targets  []Target
	Warnings []Warning
}

// ByName returns the snapshot's targets as a name-keyed map for diffing.
func (s Snapshot) ByName() map[string]Target {
	out := make(map[string]Target, len(s.Targets))
	for _, t := range s.Targets {
		out[t.Name] = t
	}
	return out
}

// DefaultSettings returns the documented defaults from spec §6 before any
// YAML is applied.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:          "INFO",
		LogFormat:         "logfmt",
		ListenHost:        "0.0.0.0",
		ListenPort:        10037,
		PollInterval:      10 * time.Second,
		RequestTimeout:    3 * time.Second,
		MaxConcurrency:    50,
		DeviceInfoRefresh: 6 * time.Hour,
		BackoffBase:       30 * time.Second,
		BackoffMax:        300 * time.Second,
		Discovery: Discovery{
			ScanInterval:    5 * time.Minute,
			ScanTimeout:     2 * time.Second,
			ScanConcurrency: 4,
			NameTemplate:    "{model}-{id}",
			MDNSInterval:    10 * time.Minute,
			MDNSFilter:      "shelly",
		},
	}
}

// ResolveCredentials applies the precedence target.credentials ≻
// default_credentials ≻ none.
func ResolveCredentials(target, defaults Credentials) Credentials {
	if target.Enabled() {
		return target
	}
	return defaults
}
