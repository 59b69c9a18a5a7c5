// Package sampler computes individual host metrics from a narrow host-stats
// capability. Every sampler degrades to zero values on failure; a broken
// metric source never aborts a poll tick.
package sampler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

var errNoCPUCounters = errors.New("no aggregate cpu counters reported")

const bytesPerMB = 1024 * 1024

// CPUTimes is one aggregate CPU counter reading, in ticks of any consistent
// unit. Total must include Idle.
type CPUTimes struct {
	Total float64
	Idle  float64
}

// MemoryStats is one memory counter reading, in bytes.
type MemoryStats struct {
	Total     uint64
	Available uint64
}

// DiskStats is one filesystem usage reading, in bytes.
type DiskStats struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// HostStats is the capability interface the samplers read from. The real
// implementation is backed by gopsutil; tests substitute fixed readings.
type HostStats interface {
	CPUTimes(ctx context.Context) (CPUTimes, error)
	VirtualMemory(ctx context.Context) (MemoryStats, error)
	DiskUsage(ctx context.Context, path string) (DiskStats, error)
	LoadAvg(ctx context.Context) (float64, error)
}

// SystemStats reads live host counters via gopsutil.
type SystemStats struct{}

func (SystemStats) CPUTimes(ctx context.Context) (CPUTimes, error) {
	stats, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return CPUTimes{}, err
	}
	if len(stats) == 0 {
		return CPUTimes{}, errNoCPUCounters
	}
	s := stats[0]
	total := s.User + s.System + s.Nice + s.Idle + s.Iowait + s.Irq + s.Softirq + s.Steal + s.Guest + s.GuestNice
	return CPUTimes{Total: total, Idle: s.Idle}, nil
}

func (SystemStats) VirtualMemory(ctx context.Context) (MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, err
	}
	return MemoryStats{Total: vm.Total, Available: vm.Available}, nil
}

func (SystemStats) DiskUsage(ctx context.Context, path string) (DiskStats, error) {
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskStats{}, err
	}
	return DiskStats{Total: du.Total, Used: du.Used, Free: du.Free}, nil
}

func (SystemStats) LoadAvg(ctx context.Context) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return avg.Load1, nil
}

// DefaultCPUWindow is the time between the two counter readings that bound a
// CPU usage measurement. The wait is deliberate and blocks the tick.
const DefaultCPUWindow = time.Second

// CPUPercent measures aggregate CPU usage over the given window:
// 100 * (1 - idle_delta/total_delta). A non-positive window falls back to
// DefaultCPUWindow. It returns 0.0 when either reading fails, when the
// counters did not advance, or when the context is cancelled during the wait.
func CPUPercent(ctx context.Context, stats HostStats, window time.Duration) float64 {
	if window <= 0 {
		window = DefaultCPUWindow
	}

	first, err := stats.CPUTimes(ctx)
	if err != nil {
		slog.Warn("reading cpu counters", "error", err)
		return 0.0
	}

	select {
	case <-time.After(window):
	case <-ctx.Done():
		return 0.0
	}

	second, err := stats.CPUTimes(ctx)
	if err != nil {
		slog.Warn("reading cpu counters", "error", err)
		return 0.0
	}

	totalDelta := second.Total - first.Total
	if totalDelta <= 0 {
		return 0.0
	}
	idleDelta := second.Idle - first.Idle
	return 100.0 * (1.0 - idleDelta/totalDelta)
}

// MemoryDetail returns percent used plus used/free megabytes. All three are
// zero when the counters cannot be read or report a zero total.
func MemoryDetail(ctx context.Context, stats HostStats) (pct, usedMB, freeMB float64) {
	vm, err := stats.VirtualMemory(ctx)
	if err != nil {
		slog.Warn("reading memory counters", "error", err)
		return 0, 0, 0
	}
	if vm.Total == 0 {
		return 0, 0, 0
	}
	used := vm.Total - vm.Available
	pct = 100.0 * float64(used) / float64(vm.Total)
	usedMB = float64(used) / bytesPerMB
	freeMB = float64(vm.Available) / bytesPerMB
	return pct, usedMB, freeMB
}

// DiskDetail returns percent used plus used/free megabytes for the filesystem
// at path. All three are zero on failure or a zero-sized filesystem.
func DiskDetail(ctx context.Context, stats HostStats, path string) (pct, usedMB, freeMB float64) {
	du, err := stats.DiskUsage(ctx, path)
	if err != nil {
		slog.Warn("reading disk usage", "path", path, "error", err)
		return 0, 0, 0
	}
	if du.Total == 0 {
		return 0, 0, 0
	}
	pct = 100.0 * float64(du.Used) / float64(du.Total)
	usedMB = float64(du.Used) / bytesPerMB
	freeMB = float64(du.Free) / bytesPerMB
	return pct, usedMB, freeMB
}

// LoadAverage returns the 1-minute load average, or 0.0 on failure.
func LoadAverage(ctx context.Context, stats HostStats) float64 {
	avg, err := stats.LoadAvg(ctx)
	if err != nil {
		slog.Warn("reading load average", "error", err)
		return 0.0
	}
	return avg
}
