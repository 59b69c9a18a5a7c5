package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeStats scripts the readings a sampler will see. CPU readings are
// consumed in order, one per call.
type fakeStats struct {
	cpu    []CPUTimes
	cpuErr []error
	cpuIdx int

	mem    MemoryStats
	memErr error

	disk    DiskStats
	diskErr error

	load    float64
	loadErr error
}

func (f *fakeStats) CPUTimes(context.Context) (CPUTimes, error) {
	i := f.cpuIdx
	f.cpuIdx++
	if i < len(f.cpuErr) && f.cpuErr[i] != nil {
		return CPUTimes{}, f.cpuErr[i]
	}
	if i >= len(f.cpu) {
		return CPUTimes{}, errors.New("fakeStats: ran out of scripted cpu readings")
	}
	return f.cpu[i], nil
}

func (f *fakeStats) VirtualMemory(context.Context) (MemoryStats, error) {
	return f.mem, f.memErr
}

func (f *fakeStats) DiskUsage(context.Context, string) (DiskStats, error) {
	return f.disk, f.diskErr
}

func (f *fakeStats) LoadAvg(context.Context) (float64, error) {
	return f.load, f.loadErr
}

// ---------------------------------------------------------------------------
// CPUPercent
// ---------------------------------------------------------------------------

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name   string
		first  CPUTimes
		second CPUTimes
		want   float64
	}{
		{
			name:   "twenty percent busy",
			first:  CPUTimes{Total: 1000, Idle: 800},
			second: CPUTimes{Total: 1100, Idle: 880},
			want:   20.0,
		},
		{
			name:   "fully idle",
			first:  CPUTimes{Total: 1000, Idle: 500},
			second: CPUTimes{Total: 1200, Idle: 700},
			want:   0.0,
		},
		{
			name:   "fully busy",
			first:  CPUTimes{Total: 1000, Idle: 500},
			second: CPUTimes{Total: 1500, Idle: 500},
			want:   100.0,
		},
		{
			name:   "counters did not advance",
			first:  CPUTimes{Total: 1000, Idle: 800},
			second: CPUTimes{Total: 1000, Idle: 800},
			want:   0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := &fakeStats{cpu: []CPUTimes{tt.first, tt.second}}
			got := CPUPercent(context.Background(), stats, time.Millisecond)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCPUPercent_FirstReadFails(t *testing.T) {
	stats := &fakeStats{cpuErr: []error{errors.New("proc unreadable")}}
	assert.Equal(t, 0.0, CPUPercent(context.Background(), stats, time.Millisecond))
}

func TestCPUPercent_SecondReadFails(t *testing.T) {
	stats := &fakeStats{
		cpu:    []CPUTimes{{Total: 1000, Idle: 800}, {}},
		cpuErr: []error{nil, errors.New("proc unreadable")},
	}
	assert.Equal(t, 0.0, CPUPercent(context.Background(), stats, time.Millisecond))
}

func TestCPUPercent_CancelledDuringWindow(t *testing.T) {
	// Full one-second window; cancellation must win.
	stats := &fakeStats{cpu: []CPUTimes{{Total: 1000, Idle: 800}, {Total: 1100, Idle: 880}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	got := CPUPercent(ctx, stats, DefaultCPUWindow)
	assert.Equal(t, 0.0, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// ---------------------------------------------------------------------------
// MemoryDetail
// ---------------------------------------------------------------------------

func TestMemoryDetail(t *testing.T) {
	const gb = uint64(1024 * 1024 * 1024)
	stats := &fakeStats{mem: MemoryStats{Total: 16 * gb, Available: 4 * gb}}

	pct, usedMB, freeMB := MemoryDetail(context.Background(), stats)

	assert.InDelta(t, 75.0, pct, 1e-9)
	assert.InDelta(t, 12*1024, usedMB, 1e-9)
	assert.InDelta(t, 4*1024, freeMB, 1e-9)
}

func TestMemoryDetail_UsedPlusFreeIsTotal(t *testing.T) {
	stats := &fakeStats{mem: MemoryStats{Total: 8_254_124_032, Available: 3_567_190_016}}

	_, usedMB, freeMB := MemoryDetail(context.Background(), stats)

	totalMB := float64(stats.mem.Total) / (1024 * 1024)
	assert.InDelta(t, totalMB, usedMB+freeMB, 0.001)
}

func TestMemoryDetail_ReadFails(t *testing.T) {
	stats := &fakeStats{memErr: errors.New("meminfo unreadable")}
	pct, usedMB, freeMB := MemoryDetail(context.Background(), stats)
	assert.Zero(t, pct)
	assert.Zero(t, usedMB)
	assert.Zero(t, freeMB)
}

func TestMemoryDetail_ZeroTotal(t *testing.T) {
	stats := &fakeStats{mem: MemoryStats{}}
	pct, usedMB, freeMB := MemoryDetail(context.Background(), stats)
	assert.Zero(t, pct)
	assert.Zero(t, usedMB)
	assert.Zero(t, freeMB)
}

// ---------------------------------------------------------------------------
// DiskDetail
// ---------------------------------------------------------------------------

func TestDiskDetail(t *testing.T) {
	const gb = uint64(1024 * 1024 * 1024)
	stats := &fakeStats{disk: DiskStats{Total: 100 * gb, Used: 40 * gb, Free: 60 * gb}}

	pct, usedMB, freeMB := DiskDetail(context.Background(), stats, "/")

	assert.InDelta(t, 40.0, pct, 1e-9)
	assert.InDelta(t, 40*1024, usedMB, 1e-9)
	assert.InDelta(t, 60*1024, freeMB, 1e-9)
}

func TestDiskDetail_PercentagesReconstructTotal(t *testing.T) {
	stats := &fakeStats{disk: DiskStats{Total: 512_110_190_592, Used: 123_456_789_012, Free: 388_653_401_580}}

	pct, _, freeMB := DiskDetail(context.Background(), stats, "/")

	totalMB := float64(stats.disk.Total) / (1024 * 1024)
	freePct := 100.0 * freeMB / totalMB
	assert.InDelta(t, 100.0, pct+freePct, 0.01)
}

func TestDiskDetail_ReadFails(t *testing.T) {
	stats := &fakeStats{diskErr: errors.New("statfs failed")}
	pct, usedMB, freeMB := DiskDetail(context.Background(), stats, "/")
	assert.Zero(t, pct)
	assert.Zero(t, usedMB)
	assert.Zero(t, freeMB)
}

// ---------------------------------------------------------------------------
// LoadAverage
// ---------------------------------------------------------------------------

func TestLoadAverage(t *testing.T) {
	stats := &fakeStats{load: 1.23}
	assert.Equal(t, 1.23, LoadAverage(context.Background(), stats))
}

func TestLoadAverage_ReadFails(t *testing.T) {
	stats := &fakeStats{loadErr: errors.New("loadavg unreadable")}
	assert.Equal(t, 0.0, LoadAverage(context.Background(), stats))
}
