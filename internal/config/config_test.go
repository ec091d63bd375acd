package config

import (
	"strings"
	"testing"

	"github.com/bile0026/shelly-exporter/internal/model"
)

func TestLoadBytesDefaults(t *testing.T) {
	snap, err := LoadBytes([]byte(`targets:
  - name: kitchen
    url: http://10.0.0.5
`))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if snap.Settings.ListenPort != 10037 {
		t.Fatalf("ListenPort = %d, want default 10037", snap.Settings.ListenPort)
	}
	if snap.Settings.LogLevel != "INFO" {
		t.Fatalf("LogLevel = %s, want INFO", snap.Settings.LogLevel)
	}
	if len(snap.Targets) != 1 || snap.Targets[0].Host != "10.0.0.5" {
		t.Fatalf("Targets = %+v", snap.Targets)
	}
}

func TestLoadBytesInvalidPort(t *testing.T) {
	_, err := LoadBytes([]byte(`listen_port: 99999
targets: []
`))
	if err == nil {
		t.Fatalf("expected validation error for out-of-range port")
	}
	if !strings.Contains(err.Error(), "listen_port") {
		t.Fatalf("error = %v, want mention of listen_port", err)
	}
}

func TestLoadBytesInvalidLogLevel(t *testing.T) {
	_, err := LoadBytes([]byte(`log_level: VERBOSE
`))
	if err == nil {
		t.Fatalf("expected validation error for bad log_level")
	}
}

func TestLoadBytesDuplicateTargetNames(t *testing.T) {
	_, err := LoadBytes([]byte(`targets:
  - name: a
    url: http://10.0.0.1
  - name: a
    url: http://10.0.0.2
`))
	if err == nil {
		t.Fatalf("expected validation error for duplicate target names")
	}
}

func TestLoadBytesMissingURL(t *testing.T) {
	_, err := LoadBytes([]byte(`targets:
  - name: a
`))
	if err == nil {
		t.Fatalf("expected validation error for missing url")
	}
}

func TestCredentialPrecedence(t *testing.T) {
	snap, err := LoadBytes([]byte(`default_credentials:
  username: admin
  password: defaultpw
targets:
  - name: a
    url: http://10.0.0.1
    credentials:
      username: override
      password: ownpw
  - name: b
    url: http://10.0.0.2
`))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	byName := snap.ByName()
	if byName["a"].Credentials.Username != "override" {
		t.Fatalf("target a credentials = %+v, want override to win", byName["a"].Credentials)
	}
	if byName["b"].Credentials.Username != "admin" {
		t.Fatalf("target b credentials = %+v, want default to apply", byName["b"].Credentials)
	}
}

func TestChannelOneBasedRemap(t *testing.T) {
	snap, err := LoadBytes([]byte(`targets:
  - name: pro4
    url: http://10.0.0.3
    channels:
      - {type: switch, index: 1}
      - {type: switch, index: 2}
      - {type: switch, index: 3}
      - {type: switch, index: 4}
`))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	chans := snap.Targets[0].Channels
	seen := map[int]bool{}
	for _, c := range chans {
		if c.Index < 0 || c.Index > 3 {
			t.Fatalf("channel index %d outside expected 0-based range", c.Index)
		}
		seen[c.Index] = true
	}
	for i := 0; i < 4; i++ {
		if !seen[i] {
			t.Fatalf("expected normalized index %d present, got %+v", i, chans)
		}
	}
}

func TestChannelZeroBasedUntouched(t *testing.T) {
	snap, err := LoadBytes([]byte(`targets:
  - name: single
    url: http://10.0.0.4
    channels:
      - {type: switch, index: 0}
`))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if snap.Targets[0].Channels[0].Index != 0 {
		t.Fatalf("index = %d, want 0 unchanged", snap.Targets[0].Channels[0].Index)
	}
}

func TestTargetMetersSugar(t *testing.T) {
	snap, err := LoadBytes([]byte(`targets:
  - name: legacy
    url: http://10.0.0.6
    target_meters:
      - {index: 0}
`))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	chans := snap.Targets[0].Channels
	if len(chans) != 1 || chans[0].Kind != model.ChannelSwitch {
		t.Fatalf("Channels = %+v, want one switch channel from target_meters sugar", chans)
	}
}

func TestDiscoveryDefaultsApplied(t *testing.T) {
	snap, err := LoadBytes([]byte(`discovery:
  enabled: true
  network_ranges: ["10.0.0.0/24"]
`))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if snap.Settings.Discovery.ScanConcurrency != 4 {
		t.Fatalf("ScanConcurrency = %d, want default 4", snap.Settings.Discovery.ScanConcurrency)
	}
	if snap.Settings.Discovery.NameTemplate != "{model}-{id}" {
		t.Fatalf("NameTemplate = %s, want default", snap.Settings.Discovery.NameTemplate)
	}
}

func TestHostFromURLVariants(t *testing.T) {
	cases := map[string]string{
		"http://10.0.0.1":       "10.0.0.1",
		"https://10.0.0.1/":     "10.0.0.1",
		"http://10.0.0.1/rpc":   "10.0.0.1",
		"10.0.0.1":              "10.0.0.1",
	}
	for in, want := range cases {
		if got := hostFromURL(in); got != want {
			t.Fatalf("hostFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
