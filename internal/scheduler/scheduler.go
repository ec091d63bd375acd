// Package scheduler is the Scheduler/Poller: it owns the tick loop that
// dispatches due targets, bounds concurrency with a weighted semaphore,
// and drives every poll from identification through metric publication.
package scheduler

import (
	"container/heap"
	"context"
	"encoding/json"
	"math/rand"
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

// maxSleep bounds how long the tick loop ever sleeps, so a newly
// registered target (added by reload or discovery between ticks) is
// picked up promptly, per spec §4.E.
const maxSleep = time.Second

// Scheduler drains the Live Target Registry on a heap-ordered tick loop.
type Scheduler struct {
	reg     *registry.Registry
	client  *shellyclient.Client
	drivers *driver.Registry
	metrics *metrics.Registry
	logger  log.Logger

	cfgMu sync.RWMutex
	cfg   config.Settings

	semMu sync.RWMutex
	sem   *semaphore.Weighted

	pqMu    sync.Mutex
	queue   priorityQueue
	tracked map[string]bool

	wg sync.WaitGroup
}

// New builds a Scheduler with the given initial settings. Call
// UpdateSettings to apply a live config reload.
func New(reg *registry.Registry, client *shellyclient.Client, drivers *driver.Registry, metricsReg *metrics.Registry, logger log.Logger, cfg config.Settings) *Scheduler {
	return &Scheduler{
		reg:     reg,
		client:  client,
		drivers: drivers,
		metrics: metricsReg,
		logger:  logger,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		tracked: make(map[string]bool),
	}
}

// UpdateSettings swaps in new global settings, replacing the concurrency
// semaphore with a new one if max_concurrency changed. Existing permit holders
// keep draining against the old semaphore instance; new acquisitions use
// the new one — a swap-and-drain rather than an in-place resize, since
// semaphore.Weighted exposes no SetLimit.
func (s *Scheduler) UpdateSettings(cfg config.Settings) {
	s.cfgMu.Lock()
	oldLimit := s.cfg.MaxConcurrency
	s.cfg = cfg
	s.cfgMu.Unlock()

	if cfg.MaxConcurrency != oldLimit {
		s.semMu.Lock()
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrency))
		s.semMu.Unlock()
	}
}

func (s *Scheduler) settings() config.Settings {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Scheduler) semaphoreHandle() *semaphore.Weighted {
	s.semMu.RLock()
	defer s.semMu.RUnlock()
	return s.sem
}

// Run blocks until ctx is cancelled, dispatching due polls as they come
// up. It is safe to call once per Scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	level.Info(s.logger).Log("msg", "scheduler starting")
	for {
		s.seedNewTargets()

		wait := s.nextWait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			level.Info(s.logger).Log("msg", "scheduler stopping, waiting for in-flight polls")
			s.wg.Wait()
			return ctx.Err()
		case <-timer.C:
		}

		s.dispatchDue(ctx)
	}
}

// seedNewTargets pushes a heap entry (with initial jitter) for every
// registry entry the scheduler hasn't seen yet — covers targets added by
// the initial load, a config reload, or discovery since the last tick.
func (s *Scheduler) seedNewTargets() {
	cfg := s.settings()
	for _, e := range s.reg.Snapshot() {
		key := e.Key

		s.pqMu.Lock()
		seen := s.tracked[key]
		if !seen {
			s.tracked[key] = true
		}
		s.pqMu.Unlock()
		if seen {
			continue
		}

		interval := cfg.PollInterval
		if e.Target.PollInterval > 0 {
			interval = e.Target.PollInterval
		}
		jitter := time.Duration(0)
		if interval > 0 {
			jitter = time.Duration(rand.Int63n(int64(interval)))
		}
		next := time.Now().Add(jitter)
		e.State.NextRun = next

		s.pqMu.Lock()
		heap.Push(&s.queue, &item{key: key, nextRun: next})
		s.pqMu.Unlock()
	}
}

func (s *Scheduler) nextWait() time.Duration {
	s.pqMu.Lock()
	defer s.pqMu.Unlock()
	if len(s.queue) == 0 {
		return maxSleep
	}
	d := time.Until(s.queue[0].nextRun)
	if d < 0 {
		d = 0
	}
	if d > maxSleep {
		d = maxSleep
	}
	return d
}

// dispatchDue pops every item due by now, drops stale entries for
// targets no longer in the registry, and launches a poll goroutine for
// each live one. A poll's own completion reschedules and re-pushes it —
// the heap never holds more than one pending entry per key.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := time.Now()

	var due []*item
	s.pqMu.Lock()
	for len(s.queue) > 0 && !s.queue[0].nextRun.After(now) {
		due = append(due, heap.Pop(&s.queue).(*item))
	}
	s.pqMu.Unlock()

	for _, it := range due {
		target, state, ok := s.reg.GetTarget(it.key)
		if !ok {
			s.pqMu.Lock()
			delete(s.tracked, it.key)
			s.pqMu.Unlock()
			continue
		}

		sem := s.semaphoreHandle()
		s.wg.Add(1)
		go func(key string, target config.Target, state *registry.PollState) {
			defer s.wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			s.poll(ctx, key, target, state)
		}(it.key, target, state)
	}
}

// poll runs one identify-then-status round trip for a target and
// reschedules it, per the per-poll procedure of spec §4.E.
func (s *Scheduler) poll(ctx context.Context, key string, target config.Target, state *registry.PollState) {
	cfg := s.settings()
	auth := shellyclient.Auth{Username: target.Credentials.Username, Password: target.Credentials.Password}

	start := time.Now()

	needsIdentify := state.CachedDriver == nil ||
		time.Since(state.DeviceInfoRefreshed) > cfg.DeviceInfoRefresh
	if needsIdentify {
		s.identify(ctx, target, state, auth, cfg.RequestTimeout)
	}
	if state.CachedDriver == nil {
		level.Warn(s.logger).Log("msg", "no driver identified for target", "target", target.Name, "host", target.Host)
		s.fail(target, state, start, cfg)
		s.reschedule(key, state)
		return
	}

	statusRaw, err := s.client.GetStatus(ctx, target.Host, auth, cfg.RequestTimeout)
	duration := time.Since(start)
	if err != nil {
		s.logPollError(target, state, err)
		s.fail(target, state, start, cfg)
		s.reschedule(key, state)
		return
	}

	readings, err := state.CachedDriver.Parse(statusRaw, target.ChannelSpecs())
	if err != nil {
		level.Warn(s.logger).Log("msg", "parse error", "target", target.Name, "err", err)
		s.fail(target, state, start, cfg)
		s.reschedule(key, state)
		return
	}
	sys, _ := driver.ExtractSystemTelemetry(statusRaw)

	at := time.Now()
	s.metrics.PublishSuccess(target.Name, duration, at, sys, readings, target.IgnoreMasks())
	state.ConsecutiveFailures = 0
	state.LastResult = model.DeviceReading{Up: true, Duration: duration, At: at, System: sys}

	interval := cfg.PollInterval
	if target.PollInterval > 0 {
		interval = target.PollInterval
	}
	state.NextRun = at.Add(interval)
	s.reschedule(key, state)
}

type deviceInfoPayload struct {
	Model string `json:"model"`
	Gen   int    `json:"gen"`
	App   string `json:"app"`
	MAC   string `json:"mac"`
}

func (s *Scheduler) identify(ctx context.Context, target config.Target, state *registry.PollState, auth shellyclient.Auth, timeout time.Duration) {
	raw, err := s.client.GetDeviceInfo(ctx, target.Host, auth, timeout)
	if err != nil {
		level.Debug(s.logger).Log("msg", "device info refresh failed, keeping cached identification", "target", target.Name, "err", err)
		return
	}
	var payload deviceInfoPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		level.Warn(s.logger).Log("msg", "malformed device info", "target", target.Name, "err", err)
		return
	}
	info := model.DeviceInfo{Model: payload.Model, Gen: payload.Gen, App: payload.App, MAC: payload.MAC}
	d, ok := s.drivers.Select(info)
	if !ok {
		level.Warn(s.logger).Log("msg", "no driver matches device", "target", target.Name, "model", info.Model, "gen", info.Gen, "app", info.App)
		return
	}
	state.CachedInfo = info
	state.CachedDriver = d
	state.DeviceInfoRefreshed = time.Now()
}

func (s *Scheduler) logPollError(target config.Target, state *registry.PollState, err error) {
	logFn := level.Debug
	if state.ConsecutiveFailures == 0 {
		logFn = level.Warn
	}
	logFn(s.logger).Log("msg", "poll failed", "target", target.Name, "host", target.Host, "err", err)
}

func (s *Scheduler) fail(target config.Target, state *registry.PollState, start time.Time, cfg config.Settings) {
	at := time.Now()
	s.metrics.PublishFailure(target.Name, at.Sub(start), at)
	state.LastResult = model.DeviceReading{Up: false, Duration: at.Sub(start), At: at}
	state.ConsecutiveFailures++

	if state.ConsecutiveFailures >= driverCacheInvalidationThreshold {
		state.CachedDriver = nil
		state.CachedInfo = model.DeviceInfo{}
	}

	delay := backoff(cfg.BackoffBase, cfg.BackoffMax, state.ConsecutiveFailures)
	state.NextRun = at.Add(delay)
}

func (s *Scheduler) reschedule(key string, state *registry.PollState) {
	s.pqMu.Lock()
	defer s.pqMu.Unlock()
	if _, ok := s.reg.Get(key); !ok {
		delete(s.tracked, key)
		return
	}
	heap.Push(&s.queue, &item{key: key, nextRun: state.NextRun})
}
