package ui

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain(t *testing.T) {
	t.Helper()
	prev := lipgloss.ColorProfile()
	DisableColors()
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })
}

func TestSetup_NonTerminalDisablesColor(t *testing.T) {
	prev := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })
	lipgloss.SetColorProfile(termenv.ANSI)

	Setup(&bytes.Buffer{})
	assert.Equal(t, termenv.Ascii, lipgloss.ColorProfile())
}

func TestSuccessAndWarning(t *testing.T) {
	plain(t)
	var buf bytes.Buffer
	Success(&buf, "wrote %s", "config.yaml")
	Warning(&buf, "battery unavailable")

	assert.Equal(t, "✓ wrote config.yaml\n! battery unavailable\n", buf.String())
}

func TestRenderError(t *testing.T) {
	plain(t)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error gets a symbol", stderrors.New("boom"), "✗ boom\n"},
		{"structured error keeps its body", stderrors.New("✗ Missing mqtt.broker\n\n  Set AURORA_MQTT_BROKER_HOST\n"),
			"✗ Missing mqtt.broker\n\n  Set AURORA_MQTT_BROKER_HOST\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderError(tt.err))
		})
	}
}

func TestRenderBar(t *testing.T) {
	plain(t)

	tests := []struct {
		name    string
		percent float64
		width   int
		want    string
	}{
		{"half", 50, 10, "[█████░░░░░]  50%"},
		{"empty", 0, 4, "[░░░░]   0%"},
		{"clamped high", 150, 4, "[████] 100%"},
		{"clamped low", -5, 4, "[░░░░]   0%"},
		{"zero width", 50, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderBar(tt.percent, tt.width))
		})
	}
}

func TestThresholdColor(t *testing.T) {
	assert.Equal(t, ColorSuccess, thresholdColor(10))
	assert.Equal(t, ColorWarning, thresholdColor(60))
	assert.Equal(t, ColorError, thresholdColor(95))
}

func TestWatchModel(t *testing.T) {
	plain(t)
	cpu := 37.5
	snap := Snapshot{
		Round: 2,
		Time:  time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC),
		Metrics: []Metric{
			{Name: "cpu", Percent: &cpu},
			{Name: "uptime", Text: "1h0m0s"},
			{Name: "battery"},
		},
		Lines: []string{"cpu,cpu=cpu-total usage_active=37.5 1"},
	}
	m := NewWatchModel(context.Background(), "dev1", time.Second, func(ctx context.Context) Snapshot { return snap })

	require.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "sampling")
	assert.Nil(t, m.Latest())

	next, cmd := m.Update(snapshotMsg(snap))
	require.NotNil(t, cmd, "schedules the next round")
	wm := next.(WatchModel)
	require.NotNil(t, wm.Latest())

	view := wm.View()
	assert.Contains(t, view, "round #2 at 12:30:00")
	assert.Contains(t, view, "38%")
	assert.Contains(t, view, "1h0m0s")
	assert.Contains(t, view, "n/a")
	assert.Contains(t, view, "usage_active=37.5")
	assert.False(t, strings.Contains(view, "sampling"))

	next, cmd = wm.Update(nextRoundMsg{})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, snapshotMsg(snap), msg)
	assert.Contains(t, next.View(), "sampling")

	next, cmd = wm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, "", next.View())
}

func TestRenderLine(t *testing.T) {
	DisableColors()

	got := renderLine(`mobile_battery,status=CHARGING percentage=81,temperature=30.5 1700000000000000000`)
	assert.Equal(t, "mobile_battery status=CHARGING percentage=81 temperature=30.5", got)

	got = renderLine("system uptime=3600i 1")
	assert.Equal(t, "system uptime=3600", got)

	assert.Equal(t, "not a line", renderLine("not a line"))
}
