package lineproto

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes one line produced by Encode. Integer fields come back as
// int64, floats as float64.
func Parse(line string) (Sample, error) {
	line = strings.TrimRight(line, "\r\n")

	head, rest, ok := cutUnescaped(line, ' ')
	if !ok {
		return Sample{}, fmt.Errorf("line has no field set: %q", line)
	}

	sp := strings.LastIndexByte(rest, ' ')
	if sp < 0 {
		return Sample{}, fmt.Errorf("line has no timestamp: %q", line)
	}
	fieldSet, tsText := rest[:sp], rest[sp+1:]

	ts, err := strconv.ParseInt(tsText, 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("bad timestamp %q: %w", tsText, err)
	}

	s := Sample{Tags: map[string]string{}, Fields: map[string]interface{}{}, Time: ts}

	headParts := splitUnescaped(head, ',', false)
	s.Measurement = unescape(headParts[0])
	if s.Measurement == "" {
		return Sample{}, fmt.Errorf("line has no measurement: %q", line)
	}
	for _, part := range headParts[1:] {
		k, v, ok := cutUnescaped(part, '=')
		if !ok {
			return Sample{}, fmt.Errorf("bad tag %q", part)
		}
		s.Tags[unescape(k)] = unescape(v)
	}

	for _, part := range splitUnescaped(fieldSet, ',', true) {
		k, raw, ok := cutUnescaped(part, '=')
		if !ok {
			return Sample{}, fmt.Errorf("bad field %q", part)
		}
		v, err := parseValue(raw)
		if err != nil {
			return Sample{}, fmt.Errorf("field %q: %w", unescape(k), err)
		}
		s.Fields[unescape(k)] = v
	}
	if len(s.Fields) == 0 {
		return Sample{}, fmt.Errorf("line has no fields: %q", line)
	}
	return s, nil
}

func parseValue(raw string) (interface{}, error) {
	switch {
	case raw == "":
		return nil, fmt.Errorf("empty value")
	case raw == "true":
		return true, nil
	case raw == "false":
		return false, nil
	case strings.HasPrefix(raw, `"`):
		if len(raw) < 2 || !strings.HasSuffix(raw, `"`) {
			return nil, fmt.Errorf("unterminated string %s", raw)
		}
		return unescape(raw[1 : len(raw)-1]), nil
	case strings.HasSuffix(raw, "i"):
		return strconv.ParseInt(strings.TrimSuffix(raw, "i"), 10, 64)
	}
	return strconv.ParseFloat(raw, 64)
}

// splitUnescaped splits s on sep, skipping separators preceded by a backslash
// and, when quoted is set, separators inside double-quoted strings.
func splitUnescaped(s string, sep byte, quoted bool) []string {
	var parts []string
	start := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\':
			i++
		case quoted && c == '"':
			inQuote = !inQuote
		case c == sep && !inQuote:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// cutUnescaped is strings.Cut on the first unescaped sep.
func cutUnescaped(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
