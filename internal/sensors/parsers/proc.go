// Package parsers turns raw device metric sources (/proc files, tool output)
// into typed values. Parsers are pure: they never touch the filesystem.
package parsers

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CPUCounters are cumulative jiffy counts from the aggregate /proc/stat line.
type CPUCounters struct {
	Total uint64
	Idle  uint64 // idle + iowait
}

// ParseProcStat reads the aggregate "cpu " line of /proc/stat.
// Fields: cpu user nice system idle iowait irq softirq steal guest guest_nice.
func ParseProcStat(procStat string) (CPUCounters, error) {
	scanner := bufio.NewScanner(strings.NewReader(procStat))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return CPUCounters{}, fmt.Errorf("invalid /proc/stat cpu line: %s", line)
		}

		var c CPUCounters
		for i := 1; i < len(fields); i++ {
			val, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return CPUCounters{}, fmt.Errorf("failed to parse cpu field %d: %w", i, err)
			}
			c.Total += val

			// idle is field 4, iowait is field 5
			if i == 4 || i == 5 {
				c.Idle += val
			}
		}
		return c, nil
	}

	if err := scanner.Err(); err != nil {
		return CPUCounters{}, fmt.Errorf("error scanning /proc/stat: %w", err)
	}
	return CPUCounters{}, ErrNoCPULine
}

// ErrNoCPULine means /proc/stat had no aggregate cpu line.
var ErrNoCPULine = errors.New("no aggregate cpu line in /proc/stat")

// ActivePercent computes 100 * (dTotal - dIdle) / dTotal between two readings,
// clamped to [0, 100]. ok is false when the total did not advance.
func ActivePercent(prev, cur CPUCounters) (pct float64, ok bool) {
	if cur.Total <= prev.Total {
		return 0, false
	}
	dTotal := float64(cur.Total - prev.Total)
	dIdle := float64(cur.Idle) - float64(prev.Idle)
	return clampPercent(100 * (dTotal - dIdle) / dTotal), true
}

// MemInfo holds the /proc/meminfo figures used for the used-percent metric, in kB.
type MemInfo struct {
	Total        int64
	Free         int64
	Available    int64
	Buffers      int64
	Cached       int64
	HasAvailable bool
}

// ParseMeminfo parses /proc/meminfo output. MemTotal is required.
func ParseMeminfo(procMeminfo string) (MemInfo, error) {
	var m MemInfo
	hasTotal := false

	scanner := bufio.NewScanner(strings.NewReader(procMeminfo))
	for scanner.Scan() {
		key, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) == 0 {
			continue
		}
		val, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return MemInfo{}, fmt.Errorf("failed to parse %s: %w", key, err)
		}

		switch strings.TrimSpace(key) {
		case "MemTotal":
			m.Total = val
			hasTotal = true
		case "MemFree":
			m.Free = val
		case "MemAvailable":
			m.Available = val
			m.HasAvailable = true
		case "Buffers":
			m.Buffers = val
		case "Cached":
			m.Cached = val
		}
	}

	if err := scanner.Err(); err != nil {
		return MemInfo{}, fmt.Errorf("error scanning /proc/meminfo: %w", err)
	}
	if !hasTotal {
		return MemInfo{}, fmt.Errorf("MemTotal missing from /proc/meminfo")
	}
	return m, nil
}

// UsedPercent returns (total - available) / total * 100. Kernels without
// MemAvailable get free + buffers + cached as the available estimate.
func (m MemInfo) UsedPercent() (float64, bool) {
	if m.Total <= 0 {
		return 0, false
	}
	avail := m.Available
	if !m.HasAvailable {
		avail = m.Free + m.Buffers + m.Cached
	}
	return float64(m.Total-avail) / float64(m.Total) * 100, true
}

// ParseUptime returns whole seconds from /proc/uptime.
func ParseUptime(procUptime string) (int64, error) {
	fields := strings.Fields(procUptime)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty /proc/uptime")
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse uptime: %w", err)
	}
	return int64(secs), nil
}

// ParseLoadavg returns the 1-minute load average from /proc/loadavg.
func ParseLoadavg(procLoadavg string) (float64, error) {
	fields := strings.Fields(procLoadavg)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty /proc/loadavg")
	}
	load1, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse loadavg: %w", err)
	}
	return load1, nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
