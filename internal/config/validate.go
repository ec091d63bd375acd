package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bile0026/shelly-exporter/internal/model"
)

// ValidationError reports why a config snapshot was rejected. Its Kind is
// always model.ErrConfigInvalid — the one error kind spec §7 treats as
// fatal at startup, and as a retain-previous-snapshot signal on reload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "config invalid: " + e.Reason }
func (e *ValidationError) Kind() model.ErrorKind { return model.ErrConfigInvalid }

var validLogLevels = map[string]bool{"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true}

// Warning is a non-fatal normalization note surfaced to the caller's
// logger; it never aborts a load.
type Warning struct {
	Target string
	Detail string
}

func build(raw rawConfig) (Snapshot, error) {
	settings := DefaultSettings()

	if raw.LogLevel != "" {
		settings.LogLevel = strings.ToUpper(raw.LogLevel)
	}
	if !validLogLevels[settings.LogLevel] {
		return Snapshot{}, &ValidationError{Reason: fmt.Sprintf("log_level %q must be one of DEBUG, INFO, WARNING, ERROR", settings.LogLevel)}
	}
	if raw.LogFormat != "" {
		settings.LogFormat = raw.LogFormat
	}
	if raw.ListenHost != "" {
		settings.ListenHost = raw.ListenHost
	}
	if raw.ListenPort != 0 {
		settings.ListenPort = raw.ListenPort
	}
	if settings.ListenPort < 1 || settings.ListenPort > 65535 {
		return Snapshot{}, &ValidationError{Reason: fmt.Sprintf("listen_port %d must be between 1 and 65535", settings.ListenPort)}
	}
	if raw.PollIntervalSeconds != 0 {
		settings.PollInterval = time.Duration(raw.PollIntervalSeconds) * time.Second
	}
	if settings.PollInterval < time.Second {
		return Snapshot{}, &ValidationError{Reason: "poll_interval_seconds must be >= 1"}
	}
	if raw.RequestTimeoutSeconds != 0 {
		settings.RequestTimeout = time.Duration(raw.RequestTimeoutSeconds) * time.Second
	}
	if raw.MaxConcurrency != 0 {
		settings.MaxConcurrency = raw.MaxConcurrency
	}
	if settings.MaxConcurrency < 1 {
		return Snapshot{}, &ValidationError{Reason: "max_concurrency must be >= 1"}
	}
	if raw.DeviceInfoRefreshSeconds != 0 {
		settings.DeviceInfoRefresh = time.Duration(raw.DeviceInfoRefreshSeconds) * time.Second
	}
	if raw.BackoffBaseSeconds != 0 {
		settings.BackoffBase = time.Duration(raw.BackoffBaseSeconds) * time.Second
	}
	if raw.BackoffMaxSeconds != 0 {
		settings.BackoffMax = time.Duration(raw.BackoffMaxSeconds) * time.Second
	}
	if raw.DefaultCredentials != nil {
		settings.DefaultCredentials = Credentials{
			Username: raw.DefaultCredentials.Username,
			Password: raw.DefaultCredentials.Password,
		}
	}

	if raw.Discovery != nil {
		d, err := buildDiscovery(*raw.Discovery, settings.Discovery)
		if err != nil {
			return Snapshot{}, err
		}
		settings.Discovery = d
	}

	seen := map[string]bool{}
	var targets []Target
	var warnings []Warning
	for i, rt := range raw.Targets {
		t, ws, err := buildTarget(i, rt, settings.DefaultCredentials)
		if err != nil {
			return Snapshot{}, err
		}
		if seen[t.Name] {
			return Snapshot{}, &ValidationError{Reason: fmt.Sprintf("duplicate target name %q", t.Name)}
		}
		seen[t.Name] = true
		targets = append(targets, t)
		warnings = append(warnings, ws...)
	}

	return Snapshot{Settings: settings, Targets: targets, Warnings: warnings}, nil
}

func buildDiscovery(raw rawDiscovery, defaults Discovery) (Discovery, error) {
	d := defaults
	d.Enabled = raw.Enabled
	if raw.ScanIntervalSeconds != 0 {
		d.ScanInterval = time.Duration(raw.ScanIntervalSeconds) * time.Second
	}
	if len(raw.NetworkRanges) > 0 {
		d.NetworkRanges = raw.NetworkRanges
	}
	if raw.ScanTimeoutSeconds != 0 {
		d.ScanTimeout = time.Duration(raw.ScanTimeoutSeconds) * time.Second
	}
	if raw.ScanConcurrency != 0 {
		d.ScanConcurrency = raw.ScanConcurrency
	}
	d.AutoAddDiscovered = raw.AutoAddDiscovered
	if raw.AutoAddCredentials != nil {
		d.AutoAddCredentials = Credentials{
			Username: raw.AutoAddCredentials.Username,
			Password: raw.AutoAddCredentials.Password,
		}
	}
	if len(raw.ExcludeIPs) > 0 {
		d.ExcludeIPs = raw.ExcludeIPs
	}
	if raw.NameTemplate != "" {
		d.NameTemplate = raw.NameTemplate
	}
	if raw.PersistPath != "" {
		d.PersistPath = raw.PersistPath
	}
	if raw.MDNS != nil {
		d.MDNSEnabled = raw.MDNS.Enabled
		if raw.MDNS.IntervalSeconds != 0 {
			d.MDNSInterval = time.Duration(raw.MDNS.IntervalSeconds) * time.Second
		}
		if raw.MDNS.Filter != "" {
			d.MDNSFilter = raw.MDNS.Filter
		}
	}
	if d.Enabled && d.ScanConcurrency < 1 {
		return Discovery{}, &ValidationError{Reason: "discovery.scan_concurrency must be >= 1 when discovery is enabled"}
	}
	return d, nil
}

func buildTarget(index int, rt rawTarget, defaultCreds Credentials) (Target, []Warning, error) {
	if rt.Name == "" {
		return Target{}, nil, &ValidationError{Reason: fmt.Sprintf("targets[%d]: name is required", index)}
	}
	if rt.URL == "" {
		return Target{}, nil, &ValidationError{Reason: fmt.Sprintf("target %q: url is required", rt.Name)}
	}

	t := Target{
		Name: rt.Name,
		Host: hostFromURL(rt.URL),
	}
	if rt.PollIntervalSeconds != nil {
		if *rt.PollIntervalSeconds < 1 {
			return Target{}, nil, &ValidationError{Reason: fmt.Sprintf("target %q: poll_interval_seconds must be >= 1", rt.Name)}
		}
		t.PollInterval = time.Duration(*rt.PollIntervalSeconds) * time.Second
	}

	own := Credentials{}
	if rt.Credentials != nil {
		own = Credentials{Username: rt.Credentials.Username, Password: rt.Credentials.Password}
	}
	t.Credentials = ResolveCredentials(own, defaultCreds)

	channels, warnings, err := buildChannels(rt)
	if err != nil {
		return Target{}, nil, err
	}
	t.Channels = channels

	return t, warnings, nil
}

func buildChannels(rt rawTarget) ([]ChannelSpec, []Warning, error) {
	var specs []ChannelSpec

	for _, m := range rt.TargetMeters {
		specs = append(specs, ChannelSpec{
			ChannelSpec: model.ChannelSpec{Kind: model.ChannelSwitch, Index: m.Index},
			Ignore: IgnoreMask{
				Voltage:                   m.IgnoreVoltage,
				Current:                   m.IgnoreCurrent,
				ActivePower:               m.IgnoreActivePower,
				PowerFactor:               m.IgnorePowerFactor,
				Frequency:                 m.IgnoreFrequency,
				TotalActiveEnergy:         m.IgnoreTotalActiveEnergy,
				TotalReturnedActiveEnergy: m.IgnoreTotalReturnedActiveEnergy,
				Temperature:               m.IgnoreTemperature,
				Output:                    m.IgnoreOutput,
			},
		})
	}

	for _, c := range rt.Channels {
		kind, err := parseChannelKind(c.Type)
		if err != nil {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("target %q: %v", rt.Name, err)}
		}
		if c.Index < 0 {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("target %q: channel index must be >= 0", rt.Name)}
		}
		specs = append(specs, ChannelSpec{
			ChannelSpec: model.ChannelSpec{Kind: kind, Index: c.Index},
			Ignore: IgnoreMask{
				Voltage:                   c.IgnoreVoltage,
				Current:                   c.IgnoreCurrent,
				ActivePower:               c.IgnoreActivePower,
				PowerFactor:               c.IgnorePowerFactor,
				Frequency:                 c.IgnoreFrequency,
				TotalActiveEnergy:         c.IgnoreTotalActiveEnergy,
				TotalReturnedActiveEnergy: c.IgnoreTotalReturnedActiveEnergy,
				Temperature:               c.IgnoreTemperature,
				Output:                    c.IgnoreOutput,
				Brightness:                c.IgnoreBrightness,
			},
		})
	}

	warnings := normalizeOneBasedIndices(rt.Name, specs)
	return specs, warnings, nil
}

func parseChannelKind(t string) (model.ChannelKind, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "switch":
		return model.ChannelSwitch, nil
	case "light":
		return model.ChannelLight, nil
	default:
		return "", fmt.Errorf("channel type %q must be switch or light", t)
	}
}

// normalizeOneBasedIndices implements the channel remap rule: if any
// channel of a kind carries an index equal to that kind's channel count
// on this target, the whole group is almost certainly 1-based (e.g. four
// channels numbered 1..4) and is shifted down by one in place. Each
// affected target/kind pair produces one Warning for the caller to log.
func normalizeOneBasedIndices(targetName string, specs []ChannelSpec) []Warning {
	byKind := map[model.ChannelKind][]int{}
	for i, s := range specs {
		byKind[s.Kind] = append(byKind[s.Kind], i)
	}
	var warnings []Warning
	for kind, idxs := range byKind {
		count := len(idxs)
		oneBased := false
		for _, i := range idxs {
			if specs[i].Index == count {
				oneBased = true
				break
			}
		}
		if !oneBased {
			continue
		}
		for _, i := range idxs {
			if specs[i].Index > 0 {
				specs[i].Index--
			}
		}
		warnings = append(warnings, Warning{
			Target: targetName,
			Detail: fmt.Sprintf("%s channel indices look 1-based, remapped down by one", kind),
		})
	}
	return warnings
}
