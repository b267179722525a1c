package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atlas-iot/aurora/internal/lineproto"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// spinnerFrames matches the status symbols used elsewhere in the output.
var spinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

// Metric is one row of the watch view. Percent metrics draw a bar; others
// show Text.
type Metric struct {
	Name    string
	Percent *float64
	Text    string
}

// Snapshot is everything the watch view shows for one round.
type Snapshot struct {
	Round   int64
	Time    time.Time
	Metrics []Metric
	Lines   []string
}

// SnapshotFunc takes one sample round.
type SnapshotFunc func(ctx context.Context) Snapshot

type snapshotMsg Snapshot

type nextRoundMsg struct{}

// WatchModel is the bubbletea model behind `aurora watch`: it samples every
// interval and redraws the latest round.
type WatchModel struct {
	ctx      context.Context
	sample   SnapshotFunc
	interval time.Duration
	title    string

	spinner  spinner.Model
	snap     *Snapshot
	sampling bool
	quitting bool
}

// NewWatchModel creates a watch view titled title.
func NewWatchModel(ctx context.Context, title string, interval time.Duration, sample SnapshotFunc) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)
	return WatchModel{
		ctx:      ctx,
		sample:   sample,
		interval: interval,
		title:    title,
		spinner:  sp,
		sampling: true,
	}
}

// Init starts the spinner and the first round.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.takeSample())
}

func (m WatchModel) takeSample() tea.Cmd {
	ctx, sample := m.ctx, m.sample
	return func() tea.Msg {
		return snapshotMsg(sample(ctx))
	}
}

// Update handles key presses, finished rounds and timer ticks.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case snapshotMsg:
		snap := Snapshot(msg)
		m.snap = &snap
		m.sampling = false
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return nextRoundMsg{} })

	case nextRoundMsg:
		m.sampling = true
		return m, m.takeSample()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the latest round.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	header := lipgloss.NewStyle().Bold(true).Foreground(ColorInfo).Render(m.title)
	status := Muted(fmt.Sprintf("every %s · q to quit", m.interval))
	if m.sampling {
		status = m.spinner.View() + " " + Muted("sampling")
	}
	b.WriteString(header + "  " + status + "\n\n")

	if m.snap == nil {
		return b.String()
	}

	b.WriteString(Muted(fmt.Sprintf("round #%d at %s", m.snap.Round, m.snap.Time.Format("15:04:05"))) + "\n")
	for _, metric := range m.snap.Metrics {
		var value string
		switch {
		case metric.Percent != nil:
			value = RenderBar(*metric.Percent, 24)
		case metric.Text != "":
			value = metric.Text
		default:
			value = Muted("n/a")
		}
		b.WriteString(KeyValue(metric.Name, 8, value) + "\n")
	}

	if len(m.snap.Lines) > 0 {
		b.WriteString("\n")
		for _, line := range m.snap.Lines {
			b.WriteString(renderLine(line) + "\n")
		}
	}
	return b.String()
}

// renderLine shows an encoded line as measurement, tags and fields. Lines
// that don't parse are shown as-is.
func renderLine(line string) string {
	sample, err := lineproto.Parse(line)
	if err != nil {
		return Muted(line)
	}

	parts := []string{labelStyle.Render(sample.Measurement)}
	parts = append(parts, sortedPairs(sample.Tags, func(v string) string { return v })...)
	for _, kv := range sortedPairs(sample.Fields, func(v interface{}) string { return fmt.Sprint(v) }) {
		parts = append(parts, Muted(kv))
	}
	return strings.Join(parts, " ")
}

func sortedPairs[V any](m map[string]V, format func(V) string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + format(m[k])
	}
	return out
}

// Latest returns the most recent snapshot, or nil before the first round.
func (m WatchModel) Latest() *Snapshot {
	return m.snap
}
