package discovery

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/grandcat/zeroconf"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/model"
)

// runMDNSLoop browses _http._tcp.local. on an interval, identifies each
// candidate service with the same Shelly.GetDeviceInfo probe the CIDR
// scanner uses, and feeds positive identifications through the same
// onDiscoveredFrom splice path — grounded on the browse-then-filter shape of
// an mDNS-based Shelly discovery tool found in the retrieved pack.
func (s *Scanner) runMDNSLoop(ctx context.Context) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		level.Error(s.logger).Log("msg", "mdns resolver init failed", "err", err)
		return
	}

	for {
		cfg := s.settings()
		s.browseOnce(ctx, resolver, cfg)

		interval := cfg.MDNSInterval
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

func (s *Scanner) browseOnce(ctx context.Context, resolver *zeroconf.Resolver, cfg config.Discovery) {
	browseCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var candidates []string

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if cfg.MDNSFilter != "" && !strings.Contains(strings.ToLower(entry.Instance), strings.ToLower(cfg.MDNSFilter)) {
				continue
			}
			if len(entry.AddrIPv4) == 0 {
				continue
			}
			candidates = append(candidates, entry.AddrIPv4[0].String())
		}
	}()

	if err := resolver.Browse(browseCtx, "_http._tcp", "local.", entries); err != nil {
		level.Warn(s.logger).Log("msg", "mdns browse failed", "err", err)
		return
	}
	<-browseCtx.Done()
	<-done

	timeout := cfg.ScanTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	var found []model.DiscoveredDevice
	for _, addr := range candidates {
		dd, ok := s.probe(ctx, addr, cfg)
		if !ok {
			continue
		}
		found = append(found, dd)
		s.onDiscoveredFrom(dd, cfg, "mdns")
	}

	if cfg.PersistPath != "" && len(found) > 0 {
		_ = persistDiscovered(cfg.PersistPath, found)
	}
}

// onDiscoveredFrom records a discovered device and, when auto-add is on,
// splices it into the registry. Its source label lets the
// discovered_devices_total counter distinguish CIDR scan hits from mDNS
// hits without the probe itself needing to know which loop called it.
func (s *Scanner) onDiscoveredFrom(dd model.DiscoveredDevice, cfg config.Discovery, source string) {
	if s.metrics != nil {
		s.metrics.DiscoveredDeviceInfo.WithLabelValues(dd.Address, dd.Info.Model, strconv.Itoa(dd.Info.Gen), dd.Info.App, dd.Info.MAC, dd.DiscoveredAt.UTC().Format(time.RFC3339)).Set(1)
	}
	if !cfg.AutoAddDiscovered {
		return
	}
	drv, ok := s.drivers.Select(dd.Info)
	if !ok {
		return
	}
	if s.reg.InsertDiscovered(dd, drv, cfg, s.defaultCreds) {
		level.Info(s.logger).Log("msg", "discovered device added to live targets", "addr", dd.Address, "source", source)
		if s.metrics != nil {
			s.metrics.DiscoveredDevicesTotal.WithLabelValues(source).Inc()
		}
	}
}
