package lineproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	samples := []Sample{
		{
			Measurement: "cpu",
			Tags:        map[string]string{"cpu": "cpu-total"},
			Fields:      map[string]interface{}{"usage_active": 37.5},
			Time:        ts,
		},
		{
			Measurement: `odd name, really`,
			Tags:        map[string]string{"k e=y": `v,a\l ue`},
			Fields: map[string]interface{}{
				"s":     `quote " and, space = \ slash`,
				"n":     int64(-7),
				"f":     1e-9,
				"flag":  true,
				"x=y,z": 3.0,
			},
			Time: 1,
		},
		{
			Measurement: "mobile_telemetry",
			Tags:        map[string]string{"status": "DISCHARGING"},
			Fields: map[string]interface{}{
				"iteration":       int64(3),
				"battery_percent": 55.0,
			},
			Time: ts,
		},
	}

	for _, s := range samples {
		t.Run(s.Measurement, func(t *testing.T) {
			line, ok := s.Encode()
			require.True(t, ok)

			got, err := Parse(line)
			require.NoError(t, err)
			assert.Equal(t, s.Measurement, got.Measurement)
			assert.Equal(t, s.Tags, got.Tags)
			assert.Equal(t, s.Fields, got.Fields)
			assert.Equal(t, s.Time, got.Time)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"measurement only", "cpu"},
		{"no timestamp", "cpu usage=1"},
		{"bad timestamp", "cpu usage=1 soon"},
		{"bad tag", "cpu,novalue usage=1 1"},
		{"bad field", "cpu usage 1"},
		{"unterminated string", `cpu s="abc 1`},
		{"bad integer", "cpu n=12xi 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			assert.Error(t, err)
		})
	}
}
