package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/driver"
	"github.com/bile0026/shelly-exporter/internal/metrics"
	"github.com/bile0026/shelly-exporter/internal/model"
	"github.com/bile0026/shelly-exporter/internal/registry"
	"github.com/bile0026/shelly-exporter/internal/shellyclient"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return out.GetCounter().GetValue()
}

func TestProbeReturnsDeviceOnPositiveIdentification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"result":{"model":"SPSW-104PE16EU","gen":2,"app":"Pro4PM","mac":"AABBCC"}}`))
	}))
	defer srv.Close()

	reg := registry.New()
	m := metrics.New()
	scanner := New(reg, shellyclient.New(), driver.DefaultRegistry(), m, config.Credentials{}, config.Discovery{ScanTimeout: time.Second}, log.NewNopLogger())

	addr := strings.TrimPrefix(srv.URL, "http://")
	dd, ok := scanner.probe(context.Background(), addr, config.Discovery{ScanTimeout: time.Second})
	if !ok {
		t.Fatalf("expected a positive identification")
	}
	if dd.Info.Model != "SPSW-104PE16EU" || dd.Address != addr {
		t.Fatalf("unexpected discovered device: %+v", dd)
	}
}

func TestProbeDiscardsNonShellyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	reg := registry.New()
	m := metrics.New()
	scanner := New(reg, shellyclient.New(), driver.DefaultRegistry(), m, config.Credentials{}, config.Discovery{}, log.NewNopLogger())

	addr := strings.TrimPrefix(srv.URL, "http://")
	_, ok := scanner.probe(context.Background(), addr, config.Discovery{ScanTimeout: time.Second})
	if ok {
		t.Fatalf("expected probe to discard a non-Shelly response")
	}
	if got := counterValue(t, m.DiscoveryScanErrorsTotal); got != 1 {
		t.Fatalf("DiscoveryScanErrorsTotal = %v, want 1 after a discarded probe", got)
	}
}

func TestOnDiscoveredFromInsertsTargetWhenAutoAddEnabled(t *testing.T) {
	reg := registry.New()
	m := metrics.New()
	cfg := config.Discovery{
		AutoAddDiscovered: true,
		NameTemplate:      "shelly-{model}",
	}
	scanner := New(reg, shellyclient.New(), driver.DefaultRegistry(), m, config.Credentials{}, cfg, log.NewNopLogger())

	dd := model.DiscoveredDevice{
		Address:      "10.0.0.9",
		Info:         model.DeviceInfo{Model: "SPSW-104PE16EU", Gen: 2, App: "Pro4PM", MAC: "AABBCC"},
		DiscoveredAt: time.Now(),
	}
	scanner.onDiscoveredFrom(dd, cfg, "scan")

	if reg.Len() != 1 {
		t.Fatalf("registry.Len() = %d, want 1 after a positive identification", reg.Len())
	}
	if !reg.HasHost("10.0.0.9") {
		t.Fatalf("expected host 10.0.0.9 to be tracked")
	}
}

func TestOnDiscoveredFromSkipsWhenAutoAddDisabled(t *testing.T) {
	reg := registry.New()
	m := metrics.New()
	cfg := config.Discovery{AutoAddDiscovered: false}
	scanner := New(reg, shellyclient.New(), driver.DefaultRegistry(), m, config.Credentials{}, cfg, log.NewNopLogger())

	dd := model.DiscoveredDevice{
		Address: "10.0.0.9",
		Info:    model.DeviceInfo{Model: "SPSW-104PE16EU", Gen: 2, App: "Pro4PM", MAC: "AABBCC"},
	}
	scanner.onDiscoveredFrom(dd, cfg, "scan")

	if reg.Len() != 0 {
		t.Fatalf("registry.Len() = %d, want 0 when auto_add_discovered is false", reg.Len())
	}
}
