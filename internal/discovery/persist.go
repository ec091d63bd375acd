package discovery

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bile0026/shelly-exporter/internal/model"
)

type persistedDevice struct {
	IP            string `yaml:"ip"`
	Model         string `yaml:"model"`
	Gen           int    `yaml:"gen"`
	App           string `yaml:"app"`
	MAC           string `yaml:"mac"`
	DiscoveredAt  string `yaml:"discovered_at"`
}

// persistDiscovered writes the given devices to path atomically
// (write-temp-then-rename), so a reader never observes a partial file —
// no retrieved dependency offers anything narrower than os.Rename for
// this, so it stays on the standard library by design.
func persistDiscovered(path string, devices []model.DiscoveredDevice) error {
	out := make([]persistedDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, persistedDevice{
			IP:           d.Address,
			Model:        d.Info.Model,
			Gen:          d.Info.Gen,
			App:          d.Info.App,
			MAC:          d.Info.MAC,
			DiscoveredAt: d.DiscoveredAt.UTC().Format(time.RFC3339),
		})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".discovery-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// loadPersisted reads a previously persisted discovery set, so a restart
// can rehydrate targets before the first scan completes.
func loadPersisted(path string) ([]model.DiscoveredDevice, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var raw []persistedDevice
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	out := make([]model.DiscoveredDevice, 0, len(raw))
	for _, p := range raw {
		at, _ := time.Parse(time.RFC3339, p.DiscoveredAt)
		out = append(out, model.DiscoveredDevice{
			Address:      p.IP,
			Info:         model.DeviceInfo{Model: p.Model, Gen: p.Gen, App: p.App, MAC: p.MAC},
			DiscoveredAt: at,
		})
	}
	return out, nil
}
