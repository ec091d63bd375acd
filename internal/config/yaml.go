package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type rawCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type rawChannel struct {
	Type                         string `yaml:"type"`
	Index                        int    `yaml:"index"`
	IgnoreVoltage                bool   `yaml:"ignore_voltage"`
	IgnoreCurrent                bool   `yaml:"ignore_current"`
	IgnoreActivePower            bool   `yaml:"ignore_active_power"`
	IgnorePowerFactor            bool   `yaml:"ignore_power_factor"`
	IgnoreFrequency              bool   `yaml:"ignore_frequency"`
	IgnoreTotalActiveEnergy      bool   `yaml:"ignore_total_active_energy"`
	IgnoreTotalReturnedActiveEnergy bool `yaml:"ignore_total_returned_active_energy"`
	IgnoreTemperature            bool   `yaml:"ignore_temperature"`
	IgnoreOutput                 bool   `yaml:"ignore_output"`
	IgnoreBrightness             bool   `yaml:"ignore_brightness"`
}

// rawMeter is the legacy `target_meters` shorthand for a switch channel.
type rawMeter struct {
	Index             int  `yaml:"index"`
	IgnoreVoltage     bool `yaml:"ignore_voltage"`
	IgnoreCurrent     bool `yaml:"ignore_current"`
	IgnoreActivePower bool `yaml:"ignore_active_power"`
	IgnorePowerFactor bool `yaml:"ignore_power_factor"`
	IgnoreFrequency   bool `yaml:"ignore_frequency"`
	IgnoreTotalActiveEnergy         bool `yaml:"ignore_total_active_energy"`
	IgnoreTotalReturnedActiveEnergy bool `yaml:"ignore_total_returned_active_energy"`
	IgnoreTemperature bool `yaml:"ignore_temperature"`
	IgnoreOutput      bool `yaml:"ignore_output"`
}

type rawTarget struct {
	Name               string          `yaml:"name"`
	URL                string          `yaml:"url"`
	PollIntervalSeconds *int           `yaml:"poll_interval_seconds"`
	Credentials        *rawCredentials `yaml:"credentials"`
	Channels           []rawChannel    `yaml:"channels"`
	TargetMeters       []rawMeter      `yaml:"target_meters"`
}

type rawMDNS struct {
	Enabled        bool   `yaml:"enabled"`
	IntervalSeconds int   `yaml:"interval_seconds"`
	Filter         string `yaml:"filter"`
}

type rawDiscovery struct {
	Enabled            bool            `yaml:"enabled"`
	ScanIntervalSeconds int            `yaml:"scan_interval_seconds"`
	NetworkRanges      []string        `yaml:"network_ranges"`
	ScanTimeoutSeconds int             `yaml:"scan_timeout_seconds"`
	ScanConcurrency    int             `yaml:"scan_concurrency"`
	AutoAddDiscovered  bool            `yaml:"auto_add_discovered"`
	AutoAddCredentials *rawCredentials `yaml:"auto_add_credentials"`
	ExcludeIPs         []string        `yaml:"exclude_ips"`
	NameTemplate       string          `yaml:"name_template"`
	PersistPath        string          `yaml:"persist_path"`
	MDNS               *rawMDNS        `yaml:"mdns"`
}

type rawConfig struct {
	LogLevel                 string          `yaml:"log_level"`
	LogFormat                string          `yaml:"log_format"`
	ListenHost               string          `yaml:"listen_host"`
	ListenPort               int             `yaml:"listen_port"`
	PollIntervalSeconds      int             `yaml:"poll_interval_seconds"`
	RequestTimeoutSeconds    int             `yaml:"request_timeout_seconds"`
	MaxConcurrency           int             `yaml:"max_concurrency"`
	DeviceInfoRefreshSeconds int             `yaml:"device_info_refresh_seconds"`
	BackoffBaseSeconds       int             `yaml:"backoff_base_seconds"`
	BackoffMaxSeconds        int             `yaml:"backoff_max_seconds"`
	DefaultCredentials       *rawCredentials `yaml:"default_credentials"`
	Targets                  []rawTarget     `yaml:"targets"`
	Discovery                *rawDiscovery   `yaml:"discovery"`
}

// LoadFile reads and validates the YAML configuration at path, returning
// an immutable Snapshot or a descriptive error. Callers that already have
// a good snapshot should keep it on error, per spec §4.F rule 1.
func LoadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates raw YAML bytes.
func LoadBytes(data []byte) (Snapshot, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, &ValidationError{Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}
	return build(raw)
}

func hostFromURL(raw string) string {
	host := strings.TrimSpace(raw)
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimSuffix(host, "/")
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	return host
}
