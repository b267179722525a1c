package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is the portable snapshot source used when the device's own
// counter files or tools are unavailable.
type HostStats interface {
	// CPUPercent measures total CPU utilisation over a short window.
	CPUPercent(ctx context.Context) (float64, error)
	// Memory returns total and available memory in bytes.
	Memory(ctx context.Context) (total, available uint64, err error)
	// Disk returns total and used bytes of the filesystem holding path.
	Disk(ctx context.Context, path string) (total, used uint64, err error)
	// Uptime returns seconds since boot.
	Uptime(ctx context.Context) (uint64, error)
	// Load1 returns the 1-minute load average.
	Load1(ctx context.Context) (float64, error)
}

// GopsutilStats implements HostStats with gopsutil.
type GopsutilStats struct {
	// CPUWindow is the sampling window for CPUPercent.
	CPUWindow time.Duration
}

// NewGopsutilStats returns a HostStats with a 500ms CPU window.
func NewGopsutilStats() *GopsutilStats {
	return &GopsutilStats{CPUWindow: 500 * time.Millisecond}
}

func (g *GopsutilStats) CPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, g.CPUWindow, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("no cpu percentages reported")
	}
	return percents[0], nil
}

func (g *GopsutilStats) Memory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

func (g *GopsutilStats) Disk(ctx context.Context, path string) (uint64, uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	return usage.Total, usage.Used, nil
}

func (g *GopsutilStats) Uptime(ctx context.Context) (uint64, error) {
	return host.UptimeWithContext(ctx)
}

func (g *GopsutilStats) Load1(ctx context.Context) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return avg.Load1, nil
}
