package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProcStat(t *testing.T) {
	tests := []struct {
		name     string
		procStat string
		want     CPUCounters
		wantErr  error
		anyErr   bool
	}{
		{
			name: "aggregate line with cores",
			procStat: `cpu  100 0 50 800 50 0 0 0 0 0
cpu0 50 0 25 400 25 0 0 0 0 0
cpu1 50 0 25 400 25 0 0 0 0 0
intr 12345`,
			want: CPUCounters{Total: 1000, Idle: 850},
		},
		{
			name:     "old kernel with four fields",
			procStat: "cpu 10 20 30 40",
			want:     CPUCounters{Total: 100, Idle: 40},
		},
		{
			name:     "no aggregate line",
			procStat: "cpu0 1 2 3 4 5\nintr 1",
			wantErr:  ErrNoCPULine,
		},
		{
			name:     "empty",
			procStat: "",
			wantErr:  ErrNoCPULine,
		},
		{
			name:     "garbage values",
			procStat: "cpu  invalid data here now",
			anyErr:   true,
		},
		{
			name:     "too few fields",
			procStat: "cpu  1 2 3",
			anyErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProcStat(tt.procStat)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.anyErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActivePercent(t *testing.T) {
	tests := []struct {
		name   string
		prev   CPUCounters
		cur    CPUCounters
		want   float64
		wantOK bool
	}{
		{"quarter busy", CPUCounters{1000, 800}, CPUCounters{1400, 1100}, 25, true},
		{"fully idle is zero, not absent", CPUCounters{1000, 800}, CPUCounters{1200, 1000}, 0, true},
		{"fully busy", CPUCounters{1000, 800}, CPUCounters{1100, 800}, 100, true},
		{"idle went backwards clamps", CPUCounters{1000, 800}, CPUCounters{1100, 700}, 100, true},
		{"idle advanced more than total clamps", CPUCounters{1000, 800}, CPUCounters{1100, 950}, 0, true},
		{"no progress", CPUCounters{1000, 800}, CPUCounters{1000, 800}, 0, false},
		{"counter reset", CPUCounters{1000, 800}, CPUCounters{10, 5}, 0, false},
		{"37.5 percent", CPUCounters{0, 0}, CPUCounters{800, 500}, 37.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ActivePercent(tt.prev, tt.cur)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseMeminfo(t *testing.T) {
	t.Run("with MemAvailable", func(t *testing.T) {
		m, err := ParseMeminfo(`MemTotal:        8000000 kB
MemFree:          500000 kB
MemAvailable:    2000000 kB
Buffers:          100000 kB
Cached:          1000000 kB
SwapTotal:             0 kB`)
		require.NoError(t, err)
		assert.True(t, m.HasAvailable)

		pct, ok := m.UsedPercent()
		require.True(t, ok)
		assert.InDelta(t, 75.0, pct, 1e-9)
	})

	t.Run("without MemAvailable falls back to free+buffers+cached", func(t *testing.T) {
		m, err := ParseMeminfo(`MemTotal:        1000 kB
MemFree:          100 kB
Buffers:          100 kB
Cached:           200 kB`)
		require.NoError(t, err)
		assert.False(t, m.HasAvailable)

		pct, ok := m.UsedPercent()
		require.True(t, ok)
		assert.InDelta(t, 60.0, pct, 1e-9)
	})

	t.Run("missing MemTotal", func(t *testing.T) {
		_, err := ParseMeminfo("MemFree: 100 kB\n")
		assert.Error(t, err)
	})

	t.Run("bad number", func(t *testing.T) {
		_, err := ParseMeminfo("MemTotal: lots kB\n")
		assert.Error(t, err)
	})

	t.Run("zero total is absent", func(t *testing.T) {
		m, err := ParseMeminfo("MemTotal: 0 kB\n")
		require.NoError(t, err)
		_, ok := m.UsedPercent()
		assert.False(t, ok)
	})
}

func TestParseUptime(t *testing.T) {
	secs, err := ParseUptime("350735.47 234388.90\n")
	require.NoError(t, err)
	assert.Equal(t, int64(350735), secs)

	_, err = ParseUptime("")
	assert.Error(t, err)
	_, err = ParseUptime("soon 1")
	assert.Error(t, err)
}

func TestParseLoadavg(t *testing.T) {
	load1, err := ParseLoadavg("1.23 2.34 3.45 1/234 5678")
	require.NoError(t, err)
	assert.Equal(t, 1.23, load1)

	_, err = ParseLoadavg("")
	assert.Error(t, err)
	_, err = ParseLoadavg("x 1 2")
	assert.Error(t, err)
}
