package driver

import (
	"testing"

	"github.com/bile0026/shelly-exporter/internal/model"
)

func TestRegistrySelectDeterministic(t *testing.T) {
	reg := DefaultRegistry()
	info := model.DeviceInfo{Model: "SPSW-104PE16EU", Gen: 2, App: "Pro4PM"}

	first, ok := reg.Select(info)
	if !ok {
		t.Fatalf("expected a driver match")
	}
	for i := 0; i < 5; i++ {
		d, ok := reg.Select(info)
		if !ok || d.ID() != first.ID() {
			t.Fatalf("Select not deterministic: got %v", d)
		}
	}
	if first.ID() != "pro4pm" {
		t.Fatalf("ID = %s, want pro4pm", first.ID())
	}
}

func TestRegistrySelectNoMatch(t *testing.T) {
	reg := DefaultRegistry()
	_, ok := reg.Select(model.DeviceInfo{Model: "unknown", Gen: 99, App: "Nope"})
	if ok {
		t.Fatalf("expected no driver to match an unknown device")
	}
}

func TestRegistryGenAppUniquelyDetermines(t *testing.T) {
	reg := DefaultRegistry()
	cases := []struct {
		gen     int
		app     string
		wantID  string
	}{
		{2, "Pro4PM", "pro4pm"},
		{4, "S1PMG4", "1pm_gen4"},
		{2, "PlugUS", "plugus"},
		{3, "Dimmer0110VPMG3", "dimmer_0_10v_pm"},
	}
	for _, c := range cases {
		d, ok := reg.Select(model.DeviceInfo{Gen: c.gen, App: c.app})
		if !ok {
			t.Fatalf("gen=%d app=%s: expected a match", c.gen, c.app)
		}
		if d.ID() != c.wantID {
			t.Fatalf("gen=%d app=%s: ID = %s, want %s", c.gen, c.app, d.ID(), c.wantID)
		}
	}
}

// Scenario 1 — Pro4PM happy path.
func TestPro4PMHappyPath(t *testing.T) {
	status := []byte(`{
		"switch:0": {"output":true,"apower":12.3,"voltage":230.1,"freq":50.0,"current":0.054,"pf":0.98,"temperature":{"tC":42.1},"aenergy":{"total":1234.5},"ret_aenergy":{"total":0}},
		"switch:1": {"output":true,"apower":12.3,"voltage":230.1,"freq":50.0,"current":0.054,"pf":0.98,"temperature":{"tC":42.1},"aenergy":{"total":1234.5},"ret_aenergy":{"total":0}},
		"switch:2": {"output":true,"apower":12.3,"voltage":230.1,"freq":50.0,"current":0.054,"pf":0.98,"temperature":{"tC":42.1},"aenergy":{"total":1234.5},"ret_aenergy":{"total":0}},
		"switch:3": {"output":true,"apower":12.3,"voltage":230.1,"freq":50.0,"current":0.054,"pf":0.98,"temperature":{"tC":42.1},"aenergy":{"total":1234.5},"ret_aenergy":{"total":0}}
	}`)

	d := NewPro4PM()
	readings, err := d.Parse(status, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(readings) != 4 {
		t.Fatalf("len(readings) = %d, want 4", len(readings))
	}
	for _, r := range readings {
		if r.ActivePower == nil || *r.ActivePower != 12.3 {
			t.Fatalf("meter %d: ActivePower = %v, want 12.3", r.Index, r.ActivePower)
		}
		if r.Output == nil || !*r.Output {
			t.Fatalf("meter %d: Output = %v, want true", r.Index, r.Output)
		}
	}
}

// Scenario 2 — 1PM Gen4, null temperature and omitted power factor.
func TestOnePMGen4NullTemperature(t *testing.T) {
	status := []byte(`{"switch:0": {"output":true,"apower":5.0,"voltage":229.0,"current":0.02,"temperature":{"tC":null,"tF":null}}}`)

	d := NewOnePMGen4()
	readings, err := d.Parse(status, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("len(readings) = %d, want 1", len(readings))
	}
	r := readings[0]
	if r.PowerFactor != nil {
		t.Fatalf("PowerFactor = %v, want absent", r.PowerFactor)
	}
	if r.Temperature != nil {
		t.Fatalf("Temperature = %v, want absent", r.Temperature)
	}
	if r.ActivePower == nil || *r.ActivePower != 5.0 {
		t.Fatalf("ActivePower = %v, want 5.0", r.ActivePower)
	}
}

// Scenario 3 — PlugUS minimal payload.
func TestPlugUSMinimal(t *testing.T) {
	status := []byte(`{"switch:0": {"output":true,"apower":7.1,"voltage":120.5,"current":0.06,"temperature":{"tC":30.0},"aenergy":{"total":500.0}}}`)

	d := NewPlugUS()
	readings, err := d.Parse(status, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := readings[0]
	if r.Frequency != nil {
		t.Fatalf("Frequency = %v, want absent", r.Frequency)
	}
	if r.PowerFactor != nil {
		t.Fatalf("PowerFactor = %v, want absent", r.PowerFactor)
	}
	if r.TotalReturnedActiveEnergy != nil {
		t.Fatalf("TotalReturnedActiveEnergy = %v, want absent", r.TotalReturnedActiveEnergy)
	}
	if r.TotalActiveEnergy == nil || *r.TotalActiveEnergy != 500.0 {
		t.Fatalf("TotalActiveEnergy = %v, want 500.0", r.TotalActiveEnergy)
	}
}

// Scenario 4 — Dimmer light channel, no switch series produced.
func TestDimmerLightChannel(t *testing.T) {
	status := []byte(`{"light:0": {"output":true,"brightness":75,"apower":8.2,"aenergy":{"total":15.4}}}`)

	d := NewDimmer0110VPMG3()
	readings, err := d.Parse(status, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("len(readings) = %d, want 1", len(readings))
	}
	r := readings[0]
	if r.Kind != model.ChannelLight {
		t.Fatalf("Kind = %s, want light", r.Kind)
	}
	if r.Brightness == nil || *r.Brightness != 75 {
		t.Fatalf("Brightness = %v, want 75", r.Brightness)
	}
}

// Parse totality: arbitrary extra/unknown top-level keys never error.
func TestParseTotalityIgnoresUnknownKeys(t *testing.T) {
	status := []byte(`{"switch:0": {"output":true}, "some_future_key": {"nested": [1,2,3]}, "sys": {"uptime": 100}}`)
	for _, d := range DefaultRegistry().All() {
		if _, err := d.Parse(status, nil); err != nil {
			t.Fatalf("%s: Parse returned error on tolerant payload: %v", d.ID(), err)
		}
	}
}

func TestParseTotalityEmptyObject(t *testing.T) {
	for _, d := range DefaultRegistry().All() {
		readings, err := d.Parse([]byte(`{}`), nil)
		if err != nil {
			t.Fatalf("%s: Parse({}) error: %v", d.ID(), err)
		}
		if len(readings) != 0 {
			t.Fatalf("%s: Parse({}) = %d readings, want 0", d.ID(), len(readings))
		}
	}
}

func TestParseConfiguredFilter(t *testing.T) {
	status := []byte(`{"switch:0":{"output":true},"switch:1":{"output":false},"switch:2":{"output":true},"switch:3":{"output":false}}`)
	d := NewPro4PM()
	configured := []model.ChannelSpec{{Kind: model.ChannelSwitch, Index: 1}}
	readings, err := d.Parse(status, configured)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(readings) != 1 || readings[0].Index != 1 {
		t.Fatalf("readings = %+v, want only index 1", readings)
	}
}

func TestExtractSystemTelemetry(t *testing.T) {
	status := []byte(`{
		"sys": {"uptime": 12345, "ram_free": 1000, "ram_size": 2000, "fs_free": 50000, "fs_size": 100000, "cfg_rev": 7},
		"wifi": {"rssi": -55, "status": "got ip"},
		"cloud": {"connected": true},
		"mqtt": {"connected": false},
		"input:0": {"state": true}
	}`)

	sys, err := ExtractSystemTelemetry(status)
	if err != nil {
		t.Fatalf("ExtractSystemTelemetry: %v", err)
	}
	if sys.UptimeSeconds == nil || *sys.UptimeSeconds != 12345 {
		t.Fatalf("UptimeSeconds = %v", sys.UptimeSeconds)
	}
	if sys.WiFiConnected == nil || !*sys.WiFiConnected {
		t.Fatalf("WiFiConnected = %v, want true", sys.WiFiConnected)
	}
	if sys.CloudConnected == nil || !*sys.CloudConnected {
		t.Fatalf("CloudConnected = %v, want true", sys.CloudConnected)
	}
	if sys.MQTTConnected == nil || *sys.MQTTConnected {
		t.Fatalf("MQTTConnected = %v, want false", sys.MQTTConnected)
	}
	if len(sys.Inputs) != 1 || !sys.Inputs[0].State {
		t.Fatalf("Inputs = %+v", sys.Inputs)
	}
}

func TestExtractSystemTelemetryMissingSubtrees(t *testing.T) {
	sys, err := ExtractSystemTelemetry([]byte(`{"switch:0":{"output":true}}`))
	if err != nil {
		t.Fatalf("ExtractSystemTelemetry: %v", err)
	}
	if sys.UptimeSeconds != nil || sys.WiFiConnected != nil || sys.CloudConnected != nil {
		t.Fatalf("expected all system fields absent, got %+v", sys)
	}
}

func TestParseMalformedTopLevel(t *testing.T) {
	d := NewPro4PM()
	if _, err := d.Parse([]byte(`not json`), nil); err == nil {
		t.Fatalf("expected error for malformed top-level payload")
	}
}
