package discovery

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/semaphore"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/driver"
	"github.com/bile0026/shelly-exporter/internal/metrics"
	"github.com/bile0026/shelly-exporter/internal/model"
	"github.com/bile0026/shelly-exporter/internal/registry"
	"github.com/bile0026/shelly-exporter/internal/shellyclient"
)

// Scanner owns the periodic CIDR/range scan and the mDNS browse loop,
// both feeding newly identified devices into the same registry.
type Scanner struct {
	reg          *registry.Registry
	client       *shellyclient.Client
	drivers      *driver.Registry
	metrics      *metrics.Registry
	defaultCreds config.Credentials
	logger       log.Logger

	cfgMu sync.RWMutex
	cfg   config.Discovery
}

func New(reg *registry.Registry, client *shellyclient.Client, drivers *driver.Registry, metricsReg *metrics.Registry, defaultCreds config.Credentials, cfg config.Discovery, logger log.Logger) *Scanner {
	return &Scanner{
		reg:          reg,
		client:       client,
		drivers:      drivers,
		metrics:      metricsReg,
		defaultCreds: defaultCreds,
		cfg:          cfg,
		logger:       logger,
	}
}

// UpdateSettings applies a reloaded discovery configuration; a running
// scan keeps using the settings it started with.
func (s *Scanner) UpdateSettings(defaultCreds config.Credentials, cfg config.Discovery) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.defaultCreds = defaultCreds
	s.cfg = cfg
}

func (s *Scanner) settings() config.Discovery {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// Rehydrate loads a previously persisted discovery set and inserts every
// device whose driver can still be resolved into the live registry, so
// targets are available before the first scan completes.
func (s *Scanner) Rehydrate() error {
	cfg := s.settings()
	if cfg.PersistPath == "" {
		return nil
	}
	devices, err := loadPersisted(cfg.PersistPath)
	if err != nil {
		return err
	}
	for _, dd := range devices {
		drv, ok := s.drivers.Select(dd.Info)
		if !ok {
			continue
		}
		if s.reg.InsertDiscovered(dd, drv, cfg, s.defaultCreds) {
			level.Info(s.logger).Log("msg", "rehydrated discovered device", "addr", dd.Address)
		}
	}
	return nil
}

// Run blocks until ctx is cancelled, periodically scanning and (if
// enabled) browsing mDNS. It is a no-op loop when discovery is disabled,
// so callers can always start it unconditionally.
func (s *Scanner) Run(ctx context.Context) error {
	cfg := s.settings()
	if !cfg.Enabled && !cfg.MDNSEnabled {
		<-ctx.Done()
		return ctx.Err()
	}

	var wg sync.WaitGroup
	if cfg.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runCIDRLoop(ctx)
		}()
	}
	if cfg.MDNSEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runMDNSLoop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scanner) runCIDRLoop(ctx context.Context) {
	for {
		cfg := s.settings()
		s.scanOnce(ctx, cfg)

		interval := cfg.ScanInterval
		if interval <= 0 {
			interval = time.Minute
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context, cfg config.Discovery) {
	start := time.Now()
	addrs, err := expandRanges(cfg.NetworkRanges, cfg.ExcludeIPs)
	if err != nil {
		level.Error(s.logger).Log("msg", "discovery range expansion failed", "err", err)
		if s.metrics != nil {
			s.metrics.DiscoveryScanErrorsTotal.Inc()
		}
		return
	}

	concurrency := cfg.ScanConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	var wg sync.WaitGroup
	var foundMu sync.Mutex
	var found []model.DiscoveredDevice

	for _, addr := range addrs {
		addr := addr
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			dd, ok := s.probe(ctx, addr, cfg)
			if !ok {
				return
			}
			foundMu.Lock()
			found = append(found, dd)
			foundMu.Unlock()
		}()
	}
	wg.Wait()

	for _, dd := range found {
		s.onDiscoveredFrom(dd, cfg, "scan")
	}

	if s.metrics != nil {
		s.metrics.DiscoveryScanDuration.Set(time.Since(start).Seconds())
	}
	if cfg.PersistPath != "" {
		if err := persistDiscovered(cfg.PersistPath, found); err != nil {
			level.Warn(s.logger).Log("msg", "failed to persist discovered devices", "path", cfg.PersistPath, "err", err)
		}
	}
}

// probe issues Shelly.GetDeviceInfo at addr. Non-Shelly responses,
// timeouts, and transport errors are all discarded silently at DEBUG
// log level and counted in DiscoveryScanErrorsTotal — a probe failure
// is the expected outcome for most addresses in a scanned range, not an
// operational problem worth surfacing above DEBUG.
func (s *Scanner) probe(ctx context.Context, addr string, cfg config.Discovery) (model.DiscoveredDevice, bool) {
	timeout := cfg.ScanTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	raw, err := s.client.GetDeviceInfo(ctx, addr, shellyclient.Auth{}, timeout)
	if err != nil {
		level.Debug(s.logger).Log("msg", "scan probe failed", "addr", addr, "err", err)
		if s.metrics != nil {
			s.metrics.DiscoveryScanErrorsTotal.Inc()
		}
		return model.DiscoveredDevice{}, false
	}
	var payload struct {
		Model string `json:"model"`
		Gen   int    `json:"gen"`
		App   string `json:"app"`
		MAC   string `json:"mac"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		level.Debug(s.logger).Log("msg", "scan probe malformed response", "addr", addr, "err", err)
		if s.metrics != nil {
			s.metrics.DiscoveryScanErrorsTotal.Inc()
		}
		return model.DiscoveredDevice{}, false
	}
	info := model.DeviceInfo{Model: payload.Model, Gen: payload.Gen, App: payload.App, MAC: payload.MAC}
	if info.Empty() {
		if s.metrics != nil {
			s.metrics.DiscoveryScanErrorsTotal.Inc()
		}
		return model.DiscoveredDevice{}, false
	}
	return model.DiscoveredDevice{Address: addr, Info: info, DiscoveredAt: time.Now()}, true
}
