package parsers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseUptimeLine extracts uptime and the 1-minute load average from the
// human-readable output of `uptime`, e.g.
//
//	10:14:03 up 3 days,  4:05,  1 user,  load average: 0.52, 0.58, 0.59
//
// Parsing is token based and tolerant: unknown parts are skipped. Either
// result may be nil. Lines without "load average" yield nothing.
func ParseUptimeLine(line string) (uptime *int64, load1 *float64) {
	before, after, ok := strings.Cut(line, "load average:")
	if !ok {
		before, after, ok = strings.Cut(line, "load averages:")
	}
	if !ok {
		return nil, nil
	}

	loads := strings.FieldsFunc(after, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(loads) > 0 {
		if f, err := strconv.ParseFloat(loads[0], 64); err == nil {
			load1 = &f
		}
	}

	upIdx := strings.Index(before, " up ")
	if upIdx < 0 {
		return nil, load1
	}

	var days, hours, minutes int64
	for _, part := range strings.Split(before[upIdx+4:], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lead := strings.Fields(part)[0]
		switch {
		case strings.Contains(part, "day"):
			if n, err := strconv.ParseInt(lead, 10, 64); err == nil {
				days += n
			}
		case strings.Contains(part, ":"):
			h, m, _ := strings.Cut(part, ":")
			hn, herr := strconv.ParseInt(strings.TrimSpace(h), 10, 64)
			mn, merr := strconv.ParseInt(strings.TrimSpace(m), 10, 64)
			if herr == nil && merr == nil {
				hours += hn
				minutes += mn
			}
		case strings.Contains(part, "min"):
			if n, err := strconv.ParseInt(lead, 10, 64); err == nil {
				minutes += n
			}
		case strings.Contains(part, "hr"):
			if n, err := strconv.ParseInt(lead, 10, 64); err == nil {
				hours += n
			}
		}
	}

	secs := days*86400 + hours*3600 + minutes*60
	return &secs, load1
}

// ParseTopCPU finds the toybox `top -b -n 1` summary line, e.g.
//
//	800%cpu  12%user   0%nice  10%sys 770%idle   0%iow   8%irq   0%sirq   0%host
//
// and returns the active share of total capacity, clamped to [0, 100].
func ParseTopCPU(output string) (float64, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.ToLower(scanner.Text())
		if !strings.Contains(line, "%cpu") || !strings.Contains(line, "%idle") {
			continue
		}

		var total, idle float64
		var hasTotal, hasIdle bool
		for _, token := range strings.Fields(line) {
			switch {
			case strings.HasSuffix(token, "%cpu"):
				v, err := strconv.ParseFloat(strings.TrimSuffix(token, "%cpu"), 64)
				if err != nil {
					return 0, fmt.Errorf("bad %%cpu token %q: %w", token, err)
				}
				total, hasTotal = v, true
			case strings.HasSuffix(token, "%idle"):
				v, err := strconv.ParseFloat(strings.TrimSuffix(token, "%idle"), 64)
				if err != nil {
					return 0, fmt.Errorf("bad %%idle token %q: %w", token, err)
				}
				idle, hasIdle = v, true
			}
		}
		if !hasTotal || !hasIdle || total <= 0 {
			return 0, fmt.Errorf("incomplete top summary: %s", line)
		}
		return clampPercent((total - idle) / total * 100), nil
	}
	return 0, fmt.Errorf("no cpu summary line in top output")
}

// Battery is the subset of termux-battery-status output the agent reports.
type Battery struct {
	Percentage  *float64 `json:"percentage"`
	Temperature *float64 `json:"temperature"`
	Status      string   `json:"status"`
	Health      string   `json:"health"`
	Plugged     string   `json:"plugged"`
}

// StatusOrUnknown returns the charging status, or "unknown" when unset.
func (b *Battery) StatusOrUnknown() string {
	if b == nil || b.Status == "" {
		return "unknown"
	}
	return b.Status
}

// ParseBattery decodes termux-battery-status JSON.
func ParseBattery(data []byte) (*Battery, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("empty battery status")
	}
	var b Battery
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("invalid battery status JSON: %w", err)
	}
	return &b, nil
}
