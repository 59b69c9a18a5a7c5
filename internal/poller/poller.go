// Package poller drives the metrics collection loop: one tick gathers every
// sampler output plus host identity into a single record and hands it to the
// sink.
package poller

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/secsuite/hostwatch/internal/model"
	"github.com/secsuite/hostwatch/internal/probe"
	"github.com/secsuite/hostwatch/internal/sampler"
)

// MetricSink receives one assembled sample per tick.
type MetricSink interface {
	InsertMetricSample(ctx context.Context, sample model.MetricSample) error
}

// Config holds the tick parameters, read once at loop start. A changed
// configuration requires a process restart.
type Config struct {
	Interval     time.Duration
	PingCount    int
	ExternalHost string
	DiskPath     string
	CPUWindow    time.Duration
}

// Metrics assembles one MetricSample per tick from its capability
// collaborators.
type Metrics struct {
	cfg    Config
	stats  sampler.HostStats
	routes probe.RouteTable
	prober probe.Prober
	extIP  probe.ExternalIP
	sink   MetricSink

	hostname   func() (string, error)
	internalIP func() (string, error)
	now        func() time.Time
}

// New creates the metrics collector. Zero-valued config fields fall back to
// the documented defaults.
func New(cfg Config, stats sampler.HostStats, routes probe.RouteTable, prober probe.Prober, extIP probe.ExternalIP, sink MetricSink) *Metrics {
	if cfg.Interval <= 0 {
		cfg.Interval = 300 * time.Second
	}
	if cfg.PingCount <= 0 {
		cfg.PingCount = 2
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	if cfg.CPUWindow <= 0 {
		cfg.CPUWindow = sampler.DefaultCPUWindow
	}
	return &Metrics{
		cfg:        cfg,
		stats:      stats,
		routes:     routes,
		prober:     prober,
		extIP:      extIP,
		sink:       sink,
		hostname:   os.Hostname,
		internalIP: probe.InternalIP,
		now:        time.Now,
	}
}

// Sample runs every sampler sequentially and resolves host identity,
// producing one record. Sampler and probe failures degrade to zero or absent
// fields; nothing here aborts the tick.
func (m *Metrics) Sample(ctx context.Context) model.MetricSample {
	s := model.MetricSample{Timestamp: m.now().Unix()}

	s.CPUPct = sampler.CPUPercent(ctx, m.stats, m.cfg.CPUWindow)
	s.MemPct, s.MemUsedMB, s.MemFreeMB = sampler.MemoryDetail(ctx, m.stats)
	s.DiskPct, s.DiskUsedMB, s.DiskFreeMB = sampler.DiskDetail(ctx, m.stats, m.cfg.DiskPath)
	s.LoadAvg = sampler.LoadAverage(ctx, m.stats)

	if name, err := m.hostname(); err == nil {
		s.Hostname = name
	} else {
		slog.Warn("resolving hostname", "error", err)
	}

	if ip, err := m.internalIP(); err == nil {
		s.InternalIP = &ip
	} else {
		slog.Warn("resolving internal address", "error", err)
	}

	if ip, err := m.extIP.Lookup(ctx); err == nil {
		s.ExternalIP = &ip
	} else {
		slog.Warn("resolving external address", "error", err)
	}

	if gw, err := m.routes.DefaultGateway(ctx); err == nil {
		s.LatencyGatewayMs = m.probeRTT(ctx, gw)
	} else {
		slog.Warn("discovering default gateway", "error", err)
	}
	s.LatencyExternalMs = m.probeRTT(ctx, m.cfg.ExternalHost)

	return s
}

func (m *Metrics) probeRTT(ctx context.Context, host string) *float64 {
	if host == "" {
		return nil
	}
	rtt, err := m.prober.AverageRTT(ctx, host, m.cfg.PingCount)
	if err != nil {
		slog.Warn("latency probe failed", "host", host, "error", err)
		return nil
	}
	return &rtt
}

// Collect performs one full tick: sample, then write.
func (m *Metrics) Collect(ctx context.Context) error {
	return m.sink.InsertMetricSample(ctx, m.Sample(ctx))
}

// Run loops until ctx is cancelled, sleeping the full configured interval
// after each tick. The sleep is not adjusted for time spent sampling, so the
// effective period is interval plus sampling cost; an overrunning tick is
// never skipped or caught up. A failed write is logged and dropped; the next
// tick opens a fresh connection.
func (m *Metrics) Run(ctx context.Context) error {
	slog.Info("metrics poller started", "interval", m.cfg.Interval)

	for {
		if err := m.Collect(ctx); err != nil {
			slog.Error("storing metric sample", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("metrics poller stopped")
			return ctx.Err()
		case <-time.After(m.cfg.Interval):
		}
	}
}
