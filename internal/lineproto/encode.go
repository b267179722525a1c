// Package lineproto encodes samples into the text line format published on
// the telemetry topics:
//
//	measurement[,tag=value...] field=value[,field=value...] timestamp
//
// Tag and field keys are written in sorted order so identical samples always
// produce identical lines.
package lineproto

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	measurementEscaper = strings.NewReplacer(`\`, `\\`, " ", `\ `, ",", `\,`)
	keyEscaper         = strings.NewReplacer(`\`, `\\`, " ", `\ `, ",", `\,`, "=", `\=`)
	stringEscaper      = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// Sample is one measurement taken at one instant.
type Sample struct {
	Measurement string
	Tags        map[string]string
	// Fields values may be bool, any integer kind, float32/float64, string, or a
	// pointer to one of those. Nil values and nil pointers are absent.
	Fields map[string]interface{}
	// Time is nanoseconds since the Unix epoch.
	Time int64
}

// Encode renders the sample as a single line. It reports false when the
// sample has no measurement or no field survives encoding; such a sample must
// not be published.
func (s Sample) Encode() (string, bool) {
	return Encode(s.Measurement, s.Tags, s.Fields, s.Time)
}

// Encode renders one line from its parts. See Sample.Encode.
func Encode(measurement string, tags map[string]string, fields map[string]interface{}, tsNs int64) (string, bool) {
	if measurement == "" {
		return "", false
	}

	fieldKeys := sortedKeys(fields)
	var fieldParts []string
	for _, k := range fieldKeys {
		if k == "" {
			continue
		}
		v, ok := formatValue(fields[k])
		if !ok {
			continue
		}
		fieldParts = append(fieldParts, keyEscaper.Replace(k)+"="+v)
	}
	if len(fieldParts) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(measurementEscaper.Replace(measurement))

	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		v := tags[k]
		if k == "" || v == "" {
			continue
		}
		b.WriteByte(',')
		b.WriteString(keyEscaper.Replace(k))
		b.WriteByte('=')
		b.WriteString(keyEscaper.Replace(v))
	}

	b.WriteByte(' ')
	b.WriteString(strings.Join(fieldParts, ","))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(tsNs, 10))
	return b.String(), true
}

// Batch encodes every sample and keeps the lines that have fields, in order.
func Batch(samples ...Sample) []string {
	lines := make([]string, 0, len(samples))
	for _, s := range samples {
		if line, ok := s.Encode(); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

// Join builds one publish payload from lines. Returns nil for no lines.
func Join(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n"))
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatValue renders a typed field value. The bool result is false for
// absent or unsupported values, which are dropped from the line.
func formatValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.FormatInt(int64(t), 10) + "i", true
	case int8:
		return strconv.FormatInt(int64(t), 10) + "i", true
	case int16:
		return strconv.FormatInt(int64(t), 10) + "i", true
	case int32:
		return strconv.FormatInt(int64(t), 10) + "i", true
	case int64:
		return strconv.FormatInt(t, 10) + "i", true
	case uint:
		return formatUint(uint64(t))
	case uint8:
		return formatUint(uint64(t))
	case uint16:
		return formatUint(uint64(t))
	case uint32:
		return formatUint(uint64(t))
	case uint64:
		return formatUint(t)
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case string:
		return `"` + stringEscaper.Replace(t) + `"`, true
	case *bool:
		if t == nil {
			return "", false
		}
		return formatValue(*t)
	case *int:
		if t == nil {
			return "", false
		}
		return formatValue(*t)
	case *int64:
		if t == nil {
			return "", false
		}
		return formatValue(*t)
	case *float64:
		if t == nil {
			return "", false
		}
		return formatValue(*t)
	case *string:
		if t == nil {
			return "", false
		}
		return formatValue(*t)
	}
	return "", false
}

func formatUint(u uint64) (string, bool) {
	if u > math.MaxInt64 {
		return "", false
	}
	return strconv.FormatUint(u, 10) + "i", true
}

// formatFloat uses the shortest representation that round-trips.
// NaN and infinities have no textual form in the format and are dropped.
func formatFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
