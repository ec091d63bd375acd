package metrics

import (
	"testing"
	"time"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	m, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return out.GetGauge().GetValue()
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestPublishSuccessSetsUpAndChannelMetrics(t *testing.T) {
	r := New()
	readings := []model.ChannelReading{
		{Kind: model.ChannelSwitch, Index: 0, Output: boolPtr(true), ActivePower: floatPtr(12.3)},
	}
	r.PublishSuccess("dev1", 50*time.Millisecond, time.Unix(1000, 0), nil, readings, nil)

	if v := gaugeValue(t, r.Up, "dev1"); v != 1 {
		t.Fatalf("Up = %v, want 1", v)
	}
	if v := gaugeValue(t, r.SwitchAPower, "dev1", "0"); v != 12.3 {
		t.Fatalf("SwitchAPower = %v, want 12.3", v)
	}
}

func TestPublishFailureSetsUpZeroAndIncrementsErrors(t *testing.T) {
	r := New()
	r.PublishFailure("dev2", 10*time.Millisecond, time.Unix(2000, 0))
	r.PublishFailure("dev2", 10*time.Millisecond, time.Unix(2010, 0))

	if v := gaugeValue(t, r.Up, "dev2"); v != 0 {
		t.Fatalf("Up = %v, want 0", v)
	}

	m, err := r.PollErrorsTotal.GetMetricWithLabelValues("dev2")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out.GetCounter().GetValue() != 2 {
		t.Fatalf("PollErrorsTotal = %v, want 2", out.GetCounter().GetValue())
	}
}

func TestPublishSuccessHonorsIgnoreMask(t *testing.T) {
	r := New()
	readings := []model.ChannelReading{
		{Kind: model.ChannelSwitch, Index: 0, ActivePower: floatPtr(5.0), Voltage: floatPtr(230.0)},
	}
	masks := map[model.ChannelSpec]config.IgnoreMask{
		{Kind: model.ChannelSwitch, Index: 0}: {ActivePower: true},
	}
	r.PublishSuccess("dev3", 0, time.Unix(3000, 0), nil, readings, masks)

	// DeleteLabelValues reports whether the series existed, without
	// creating it the way GetMetricWithLabelValues would.
	if r.SwitchAPower.DeleteLabelValues("dev3", "0") {
		t.Fatalf("expected no series created for ignored ActivePower")
	}
	if v := gaugeValue(t, r.SwitchVoltage, "dev3", "0"); v != 230.0 {
		t.Fatalf("SwitchVoltage = %v, want 230.0", v)
	}
}

func TestDeleteDeviceRetractsSeries(t *testing.T) {
	r := New()
	r.PublishSuccess("dev4", 0, time.Unix(4000, 0), nil, []model.ChannelReading{
		{Kind: model.ChannelSwitch, Index: 0, ActivePower: floatPtr(1.0)},
	}, nil)

	r.DeleteDevice("dev4")

	if r.Up.DeleteLabelValues("dev4") {
		t.Fatalf("expected Up series removed after DeleteDevice")
	}
	if r.SwitchAPower.DeleteLabelValues("dev4", "0") {
		t.Fatalf("expected SwitchAPower series removed after DeleteDevice")
	}
}
