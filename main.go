// Copyright 2022 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/promlog"
	promlogflag "github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"
	webflag "github.com/prometheus/exporter-toolkit/web/kingpinflag"

	"github.com/bile0026/shelly-exporter/internal/config"
	"github.com/bile0026/shelly-exporter/internal/discovery"
	"github.com/bile0026/shelly-exporter/internal/driver"
	"github.com/bile0026/shelly-exporter/internal/metrics"
	"github.com/bile0026/shelly-exporter/internal/registry"
	"github.com/bile0026/shelly-exporter/internal/scheduler"
	"github.com/bile0026/shelly-exporter/internal/shellyclient"
	"github.com/bile0026/shelly-exporter/internal/watcher"
)

func main() {
	var (
		configPath = kingpin.Flag(
			"config", "Path to the exporter's YAML configuration file",
		).Default(configPathDefault()).String()
		metricsPath = kingpin.Flag(
			"web.telemetry-path", "Path under which to expose metrics",
		).Default("/metrics").String()
		toolkitFlags = webflag.AddFlags(kingpin.CommandLine, ":10037")
	)

	promlogConfig := &promlog.Config{}
	promlogflag.AddFlags(kingpin.CommandLine, promlogConfig)
	kingpin.Version(version.Print("shelly_exporter"))
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()
	logger := promlog.New(promlogConfig)

	level.Info(logger).Log("msg", "starting shelly_exporter", "version", version.Info())
	level.Info(logger).Log("msg", "build context", "build_context", version.BuildContext())

	snap, err := config.LoadFile(*configPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "path", *configPath, "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "configuration loaded", "path", *configPath, "targets", len(snap.Targets))
	for _, w := range snap.Warnings {
		level.Warn(logger).Log("msg", "configuration normalized", "target", w.Target, "detail", w.Detail)
	}

	reg := registry.New()
	reg.Reconcile(snap.Targets)

	metricsReg := metrics.New()
	drivers := driver.DefaultRegistry()
	client := shellyclient.New()

	promReg := prometheus.NewPedanticRegistry()
	promReg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	metricsReg.MustRegister(promReg)

	sched := scheduler.New(reg, client, drivers, metricsReg, logger, snap.Settings)
	scanner := discovery.New(reg, client, drivers, metricsReg, snap.Settings.DefaultCredentials, snap.Settings.Discovery, logger)
	if err := scanner.Rehydrate(); err != nil {
		level.Warn(logger).Log("msg", "failed to rehydrate persisted discovery state", "err", err)
	}
	cfgWatcher := watcher.New(*configPath, reg, metricsReg, sched, scanner, logger)

	ctx, cancel := context.WithCancel(context.Background())
	term := make(chan os.Signal, 1)
	signal.Notify(term, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-term
		level.Info(logger).Log("msg", "received shutdown signal")
		cancel()
	}()

	go sched.Run(ctx)
	go scanner.Run(ctx)
	go cfgWatcher.Run(ctx)

	http.Handle(*metricsPath, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}))
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if *metricsPath != "/" && *metricsPath != "" {
		landingConfig := web.LandingConfig{
			Name:        "shelly_exporter",
			Description: "Prometheus exporter for Shelly smart power devices",
			Version:     version.Info(),
			Links: []web.LandingLinks{
				{Address: *metricsPath, Text: "Metrics"},
				{Address: "/health", Text: "Health"},
			},
		}
		landingPage, err := web.NewLandingPage(landingConfig)
		if err != nil {
			level.Error(logger).Log("err", err)
			os.Exit(1)
		}
		http.Handle("/", landingPage)
	}

	srv := &http.Server{}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- web.ListenAndServe(srv, toolkitFlags, logger)
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "listen failed", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		level.Info(logger).Log("msg", "shutting down http server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), snap.Settings.RequestTimeout)
		_ = srv.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	level.Info(logger).Log("msg", "shelly_exporter stopped")
}

// configPathDefault resolves CONFIG_PATH before flag parsing, so an
// explicit --config flag still takes precedence per the exporter's
// documented configuration precedence.
func configPathDefault() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "shelly_exporter.yaml"
}
