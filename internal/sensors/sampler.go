// Package sensors samples device metrics for the telemetry loop.
//
// Every metric has its own fallback chain and never fails past its own
// boundary: on total failure it is reported as absent (a nil pointer) and the
// caller leaves that field out of the published line.
package sensors

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/exec"
	"github.com/atlas-iot/aurora/internal/logger"
	"github.com/atlas-iot/aurora/internal/sensors/parsers"
	"github.com/atlas-iot/aurora/internal/util"
	"github.com/cenkalti/backoff/v4"
)

// Reading is one sample round. Nil pointers are metrics that could not be read.
type Reading struct {
	Battery         *parsers.Battery
	CPUActive       *float64
	MemUsedPercent  *float64
	DiskUsedPercent *float64
	Uptime          *int64
	Load1           *float64

	DiskPath string
	Time     time.Time
}

// Empty reports whether no metric resolved.
func (r Reading) Empty() bool {
	return r.Battery == nil && r.CPUActive == nil && r.MemUsedPercent == nil &&
		r.DiskUsedPercent == nil && r.Uptime == nil && r.Load1 == nil
}

// Settings tune the sampler.
type Settings struct {
	DiskPath       string
	BatteryCommand string
	BatteryRetries int
	// BatteryTimeout bounds each battery attempt.
	BatteryTimeout time.Duration
	// BatteryBackoff is the fixed wait between battery attempts.
	BatteryBackoff time.Duration
	// ToolTimeout bounds the top and uptime fallbacks.
	ToolTimeout time.Duration
	// ProcRoot is where the kernel counter files live.
	ProcRoot string
}

// DefaultSettings returns the stock sampler tuning.
func DefaultSettings() Settings {
	return Settings{
		DiskPath:       config.ExpandTilde(config.DefaultDiskPath),
		BatteryCommand: config.DefaultBatteryCommand,
		BatteryRetries: config.DefaultBatteryRetries,
		BatteryTimeout: 5 * time.Second,
		BatteryBackoff: 500 * time.Millisecond,
		ToolTimeout:    5 * time.Second,
		ProcRoot:       "/proc",
	}
}

// SettingsFromConfig applies the sensors section of cfg over the defaults.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	if cfg == nil {
		return s
	}
	if cfg.Sensors.DiskPath != "" {
		s.DiskPath = cfg.Sensors.DiskPath
	}
	if cfg.Sensors.BatteryCommand != "" {
		s.BatteryCommand = cfg.Sensors.BatteryCommand
	}
	if cfg.Sensors.BatteryRetries > 0 {
		s.BatteryRetries = cfg.Sensors.BatteryRetries
	}
	return s
}

// FileReader reads a whole file. Swapped out in tests.
type FileReader func(path string) ([]byte, error)

// cpuState is the previous cumulative reading used for the next delta.
// Only the sampling goroutine touches it.
type cpuState struct {
	prev   parsers.CPUCounters
	seeded bool
}

// Sampler reads device metrics. It is not safe for concurrent use: one
// goroutine owns it and calls Sample once per round.
type Sampler struct {
	settings Settings
	runner   exec.Runner
	host     HostStats
	read     FileReader
	log      logger.Logger
	now      func() time.Time
	cpu      cpuState
}

// Option customizes a Sampler.
type Option func(*Sampler)

// WithRunner sets the runner used for battery, top and uptime.
func WithRunner(r exec.Runner) Option {
	return func(s *Sampler) { s.runner = r }
}

// WithHostStats sets the portable fallback source.
func WithHostStats(h HostStats) Option {
	return func(s *Sampler) { s.host = h }
}

// WithFileReader sets how counter files are read.
func WithFileReader(fn FileReader) Option {
	return func(s *Sampler) { s.read = fn }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) { s.log = l }
}

// WithClock sets the time source for Reading.Time.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// New creates a sampler. Without options it reads /proc, runs local tools
// and falls back to gopsutil.
func New(settings Settings, opts ...Option) *Sampler {
	if settings.ProcRoot == "" {
		settings.ProcRoot = "/proc"
	}
	if settings.BatteryRetries < 1 {
		settings.BatteryRetries = 1
	}
	s := &Sampler{
		settings: settings,
		runner:   exec.NewLocalRunner(),
		host:     NewGopsutilStats(),
		read:     os.ReadFile,
		log:      logger.NewEnvLogger("[sensors]"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample stamps the round, then reads every metric in turn.
func (s *Sampler) Sample(ctx context.Context) Reading {
	r := Reading{DiskPath: s.settings.DiskPath, Time: s.now()}
	r.Battery = s.Battery(ctx)
	r.CPUActive = s.CPUActive(ctx)
	r.MemUsedPercent = s.MemUsedPercent(ctx)
	r.DiskUsedPercent = s.DiskUsedPercent(ctx)
	r.Uptime, r.Load1 = s.UptimeLoad(ctx)
	return r
}

// Battery runs the battery status tool with a bounded number of attempts and
// a fixed wait between them. A missing tool is not retried.
func (s *Sampler) Battery(ctx context.Context) *parsers.Battery {
	name := s.settings.BatteryCommand
	attempts := s.settings.BatteryRetries

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.settings.BatteryBackoff), uint64(attempts-1)),
		ctx)

	var battery *parsers.Battery
	attempt := 0
	op := func() error {
		attempt++
		res, err := exec.RunWithTimeout(ctx, s.runner, s.settings.BatteryTimeout, name)
		if err == nil {
			err = exec.Check(name, res)
		}
		if err != nil {
			if exec.IsNotFound(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		b, err := parsers.ParseBattery(res.Stdout)
		if err != nil {
			return err
		}
		battery = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn("battery read failed (attempt %d/%d): %s, retrying in %s",
			attempt, attempts, errors.Summary(err), wait)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		err = errors.WrapWithCode(err, errors.ErrSample,
			fmt.Sprintf("battery unavailable after %d %s", attempt, util.Pluralize(attempt, "attempt", "attempts")),
			"Check that Termux:API is installed")
		s.log.Warn("%s", errors.Summary(err))
		return nil
	}
	return battery
}

// CPUActive returns the active CPU share since the previous call.
//
// The first call only seeds the baseline and returns nil. When the counters
// did not advance, or /proc/stat can't be used, a snapshot from top or
// gopsutil is used instead. A fully idle interval is a valid 0.
func (s *Sampler) CPUActive(ctx context.Context) *float64 {
	data, err := s.read(s.proc("stat"))
	if err != nil {
		s.log.Debug("/proc/stat unavailable: %v", err)
		return s.cpuSnapshot(ctx)
	}

	cur, err := parsers.ParseProcStat(string(data))
	if stderrors.Is(err, parsers.ErrNoCPULine) {
		return s.cpuSnapshot(ctx)
	}
	if err != nil {
		s.log.Warn("cpu: %v", err)
		return nil
	}

	if !s.cpu.seeded {
		s.cpu = cpuState{prev: cur, seeded: true}
		return nil
	}
	prev := s.cpu.prev
	s.cpu.prev = cur

	if pct, ok := parsers.ActivePercent(prev, cur); ok {
		return &pct
	}
	s.log.Debug("cpu counters did not advance, using snapshot")
	return s.cpuSnapshot(ctx)
}

// ResetCPU drops the CPU baseline so the next CPUActive call re-seeds.
func (s *Sampler) ResetCPU() {
	s.cpu = cpuState{}
}

func (s *Sampler) cpuSnapshot(ctx context.Context) *float64 {
	res, err := exec.RunWithTimeout(ctx, s.runner, s.settings.ToolTimeout, "top", "-b", "-n", "1")
	if err == nil && res.OK() {
		pct, perr := parsers.ParseTopCPU(string(res.Stdout))
		if perr == nil {
			return &pct
		}
		s.log.Debug("top: %v", perr)
	}

	if s.host == nil {
		return nil
	}
	pct, err := s.host.CPUPercent(ctx)
	if err != nil {
		s.log.Debug("cpu snapshot unavailable: %v", err)
		return nil
	}
	pct = clamp(pct)
	return &pct
}

// MemUsedPercent returns (total - available) / total * 100.
func (s *Sampler) MemUsedPercent(ctx context.Context) *float64 {
	data, err := s.read(s.proc("meminfo"))
	if err != nil {
		return s.memSnapshot(ctx)
	}

	info, err := parsers.ParseMeminfo(string(data))
	if err != nil {
		s.log.Warn("memory: %v", err)
		return nil
	}
	pct, ok := info.UsedPercent()
	if !ok {
		return nil
	}
	return &pct
}

func (s *Sampler) memSnapshot(ctx context.Context) *float64 {
	if s.host == nil {
		return nil
	}
	total, avail, err := s.host.Memory(ctx)
	if err != nil || total == 0 {
		return nil
	}
	pct := float64(total-min(avail, total)) / float64(total) * 100
	return &pct
}

// DiskUsedPercent returns used / total * 100 for the configured path.
func (s *Sampler) DiskUsedPercent(ctx context.Context) *float64 {
	if s.host == nil || s.settings.DiskPath == "" {
		return nil
	}
	total, used, err := s.host.Disk(ctx, s.settings.DiskPath)
	if err != nil {
		s.log.Debug("disk %s: %v", s.settings.DiskPath, err)
		return nil
	}
	if total == 0 {
		return nil
	}
	pct := clamp(float64(used) / float64(total) * 100)
	return &pct
}

// UptimeLoad returns uptime seconds and the 1-minute load average. Counter
// files are preferred, then gopsutil, then the `uptime` summary line.
func (s *Sampler) UptimeLoad(ctx context.Context) (*int64, *float64) {
	var uptime *int64
	var load1 *float64

	if data, err := s.read(s.proc("uptime")); err == nil {
		if secs, perr := parsers.ParseUptime(string(data)); perr == nil {
			uptime = &secs
		}
	}
	if data, err := s.read(s.proc("loadavg")); err == nil {
		if l, perr := parsers.ParseLoadavg(string(data)); perr == nil {
			load1 = &l
		}
	}
	if uptime != nil || load1 != nil {
		return uptime, load1
	}

	if s.host != nil {
		if up, err := s.host.Uptime(ctx); err == nil && up > 0 {
			secs := int64(up)
			uptime = &secs
		}
		if l, err := s.host.Load1(ctx); err == nil {
			load1 = &l
		}
		if uptime != nil || load1 != nil {
			return uptime, load1
		}
	}

	res, err := exec.RunWithTimeout(ctx, s.runner, s.settings.ToolTimeout, "uptime")
	if err != nil || !res.OK() {
		return nil, nil
	}
	return parsers.ParseUptimeLine(strings.TrimSpace(string(res.Stdout)))
}

func (s *Sampler) proc(name string) string {
	return filepath.Join(s.settings.ProcRoot, name)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
