// Package watcher is the Config Watcher: it debounces filesystem events on
// the config file, revalidates the whole file on each settled change, and
// splices the result into the live registry without ever exposing a
// partially applied config to the rest of the process.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/metrics"
	"github.com/bile0026/shelly-exporter/internal/registry"
)

// debounce absorbs the burst of events a single save often produces (most
// editors write-then-rename, which fsnotify reports as several events in
// quick succession).
const debounce = 1 * time.Second

// Applier receives a freshly validated Snapshot and is expected to apply
// its Settings somewhere a scheduler can pick up — kept as an interface so
// the watcher doesn't need to import the scheduler package directly.
type Applier interface {
	UpdateSettings(config.Settings)
}

// DiscoveryApplier receives a reloaded discovery configuration. Kept
// separate from Applier since the scanner's settings shape differs from
// the scheduler's.
type DiscoveryApplier interface {
	UpdateSettings(defaultCreds config.Credentials, cfg config.Discovery)
}

// Watcher reloads path on change and reconciles the result into reg.
type Watcher struct {
	path      string
	reg       *registry.Registry
	metrics   *metrics.Registry
	applier   Applier
	discovery DiscoveryApplier
	logger    log.Logger
}

// New builds a Watcher for path. applier and discovery may be nil if the
// caller has no corresponding consumer to notify (targets still reconcile
// into reg regardless).
func New(path string, reg *registry.Registry, metricsReg *metrics.Registry, applier Applier, discovery DiscoveryApplier, logger log.Logger) *Watcher {
	return &Watcher{path: path, reg: reg, metrics: metricsReg, applier: applier, discovery: discovery, logger: logger}
}

// Run blocks until ctx is cancelled, watching the config file's directory
// (not the file itself, since editors often replace it via rename, which
// would leave a direct file-watch pointed at a now-unlinked inode).
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(ev, w.path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			timerC = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			level.Warn(w.logger).Log("msg", "config watcher error", "err", err)

		case <-timerC:
			timerC = nil
			w.reload()
		}
	}
}

// deviceNameFromKey recovers the Name half of a config.Target.Key()
// ("name@host") for retracting that device's metric series.
func deviceNameFromKey(key string) string {
	if i := strings.LastIndex(key, "@"); i >= 0 {
		return key[:i]
	}
	return key
}

func relevantEvent(ev fsnotify.Event, path string) bool {
	base := filepath.Base(path)
	return filepath.Base(ev.Name) == base &&
		(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename))
}

func (w *Watcher) reload() {
	start := time.Now()
	snap, err := config.LoadFile(w.path)
	if err != nil {
		level.Error(w.logger).Log("msg", "config reload failed, keeping previous configuration", "path", w.path, "err", err)
		if w.metrics != nil {
			w.metrics.ConfigReloadErrorsTotal.Inc()
			w.metrics.ConfigLastReloadStatus.Set(0)
			w.metrics.ConfigLastReloadTimestamp.Set(float64(start.Unix()))
		}
		return
	}

	added, removed := w.reg.Reconcile(snap.Targets)
	if w.metrics != nil {
		for _, key := range removed {
			w.metrics.DeleteDevice(deviceNameFromKey(key))
		}
	}
	if w.applier != nil {
		w.applier.UpdateSettings(snap.Settings)
	}
	if w.discovery != nil {
		w.discovery.UpdateSettings(snap.Settings.DefaultCredentials, snap.Settings.Discovery)
	}
	for _, warn := range snap.Warnings {
		level.Warn(w.logger).Log("msg", "configuration normalized", "target", warn.Target, "detail", warn.Detail)
	}

	level.Info(w.logger).Log("msg", "config reloaded", "added", len(added), "removed", len(removed), "targets", len(snap.Targets))
	if w.metrics != nil {
		w.metrics.ConfigReloadsTotal.Inc()
		w.metrics.ConfigLastReloadStatus.Set(1)
		w.metrics.ConfigLastReloadTimestamp.Set(float64(start.Unix()))
	}
}
