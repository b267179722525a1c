package agent

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atlas-iot/aurora/internal/actions"
	"github.com/atlas-iot/aurora/internal/broker"
	"github.com/atlas-iot/aurora/internal/command"
	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/logger"
	"github.com/atlas-iot/aurora/internal/sensors"
	"github.com/atlas-iot/aurora/internal/sensors/parsers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roundTime = time.Unix(1700000000, 0)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

// fixedSampler returns the same reading every round and counts calls.
type fixedSampler struct {
	mu      sync.Mutex
	reading sensors.Reading
	calls   int
}

func (s *fixedSampler) Sample(ctx context.Context) sensors.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reading
}

func (s *fixedSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type published struct {
	Topic   string
	Payload string
}

// fakePublisher records publishes and feeds scripted inbound messages.
type fakePublisher struct {
	mu    sync.Mutex
	pubs  []published
	err   error
	inbox chan broker.Message
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{inbox: make(chan broker.Message, 4)}
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.pubs = append(p.pubs, published{Topic: topic, Payload: string(payload)})
	return nil
}

func (p *fakePublisher) Messages() <-chan broker.Message { return p.inbox }

func (p *fakePublisher) Published() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.pubs...)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	payloads []string
}

func (d *recordingDispatcher) Dispatch(payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, string(payload))
}

func (d *recordingDispatcher) Payloads() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.payloads...)
}

// testConfig mirrors {broker: "test", port: 1883, client_id: "dev1", interval: 5}.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Resolve(map[string]interface{}{
		"mqtt":    map[string]interface{}{"broker": "test", "port": 1883, "client_id": "dev1"},
		"sensors": map[string]interface{}{"interval": 5},
	}, map[string]string{})
	require.NoError(t, err)
	return cfg
}

func TestRound_OnlyCPUResolved(t *testing.T) {
	cfg := testConfig(t)
	sampler := &fixedSampler{reading: sensors.Reading{CPUActive: f64(37.5), Time: roundTime}}
	pub := newFakePublisher()
	log := logger.NewBufferLogger()
	a := New(cfg, newIdentity("dev1", "phone", "abc123"), sampler, pub, log)

	out := a.Round(context.Background())

	want := "cpu,cpu=cpu-total usage_active=37.5 1700000000000000000"
	assert.Equal(t, []string{want}, out.Telemetry)
	assert.Empty(t, out.Battery)

	pubs := pub.Published()
	require.Len(t, pubs, 1)
	assert.Equal(t, "devices/dev1/telemetry", pubs[0].Topic)
	assert.Equal(t, want, pubs[0].Payload)
	assert.True(t, log.Contains("warn", "battery unavailable"))
}

func TestRound_FullReading(t *testing.T) {
	cfg := testConfig(t)
	sampler := &fixedSampler{reading: sensors.Reading{
		Battery: &parsers.Battery{
			Percentage:  f64(81),
			Temperature: f64(29.5),
			Status:      "DISCHARGING",
		},
		CPUActive:       f64(12.25),
		MemUsedPercent:  f64(63.1),
		DiskUsedPercent: f64(40),
		Uptime:          i64(3600),
		Load1:           f64(0.42),
		DiskPath:        "/data",
		Time:            roundTime,
	}}
	pub := newFakePublisher()
	a := New(cfg, newIdentity("dev1", "phone", "abc123"), sampler, pub, nil)

	a.Round(context.Background())
	out := a.Round(context.Background())

	ts := "1700000000000000000"
	assert.Equal(t, "mobile_battery,status=DISCHARGING percentage=81,temperature=29.5 "+ts, out.Battery)
	assert.Equal(t, []string{
		"mobile_telemetry,status=DISCHARGING battery_percent=81,battery_temp=29.5,iteration=2i " + ts,
		"cpu,cpu=cpu-total usage_active=12.25 " + ts,
		"mem used_percent=63.1 " + ts,
		"disk,path=/data used_percent=40 " + ts,
		"system load1=0.42,uptime=3600i " + ts,
		"temp,sensor=battery temp=29.5 " + ts,
	}, out.Telemetry)

	pubs := pub.Published()
	require.Len(t, pubs, 4)
	assert.Equal(t, "devices/dev1/sensors/battery", pubs[2].Topic)
	assert.Equal(t, out.Battery, pubs[2].Payload)
	assert.Equal(t, "devices/dev1/telemetry", pubs[3].Topic)
	assert.Equal(t, strings.Join(out.Telemetry, "\n"), pubs[3].Payload)
}

func TestRound_BatteryWithoutReadings(t *testing.T) {
	out := BuildRound(sensors.Reading{Battery: &parsers.Battery{}, Time: roundTime}, 1)

	assert.Empty(t, out.Battery, "no battery fields, no battery line")
	assert.Equal(t, []string{"mobile_telemetry,status=unknown iteration=1i 1700000000000000000"}, out.Telemetry)
}

func TestRound_NothingResolved(t *testing.T) {
	cfg := testConfig(t)
	pub := newFakePublisher()
	log := logger.NewBufferLogger()
	a := New(cfg, Identity{DeviceID: "dev1"}, &fixedSampler{reading: sensors.Reading{Time: roundTime}}, pub, log)

	out := a.Round(context.Background())

	assert.Empty(t, out.Telemetry)
	assert.Nil(t, out.Payload())
	assert.Empty(t, pub.Published())
	assert.True(t, log.Contains("warn", "no metrics"))
}

func TestRound_PublishFailureIsLogged(t *testing.T) {
	cfg := testConfig(t)
	pub := newFakePublisher()
	pub.err = stderrors.New("not connected")
	log := logger.NewBufferLogger()
	a := New(cfg, Identity{DeviceID: "dev1"}, &fixedSampler{reading: sensors.Reading{CPUActive: f64(1), Time: roundTime}}, pub, log)

	a.Round(context.Background())
	assert.True(t, log.Contains("warn", "not connected"))
}

func TestSetInterval(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, Identity{DeviceID: "dev1"}, &fixedSampler{}, newFakePublisher(), nil)
	assert.Equal(t, 5*time.Second, a.Interval())

	reg := actions.NewRegistry()
	a.RegisterActions(reg)
	require.True(t, reg.Known(SetInterval))

	require.NoError(t, reg.Execute(context.Background(), SetInterval, actions.Params{"value": 30.0}))
	assert.Equal(t, 30*time.Second, a.Interval())

	assert.Error(t, reg.Execute(context.Background(), SetInterval, actions.Params{"value": 0.0}))
	assert.Error(t, reg.Execute(context.Background(), SetInterval, actions.Params{}))
	assert.Error(t, reg.Execute(context.Background(), SetInterval, actions.Params{"value": "soon"}))
	assert.Equal(t, 30*time.Second, a.Interval())
}

func TestRun_SamplesImmediatelyAndOnTicks(t *testing.T) {
	cfg := testConfig(t)
	sampler := &fixedSampler{reading: sensors.Reading{CPUActive: f64(5), Time: roundTime}}
	pub := newFakePublisher()
	a := New(cfg, Identity{DeviceID: "dev1"}, sampler, pub, nil)
	require.NoError(t, a.SetInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, &recordingDispatcher{}) }()

	require.Eventually(t, func() bool { return sampler.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestRun_IntervalChangeTakesEffect(t *testing.T) {
	cfg := testConfig(t)
	sampler := &fixedSampler{reading: sensors.Reading{CPUActive: f64(5), Time: roundTime}}
	a := New(cfg, Identity{DeviceID: "dev1"}, sampler, newFakePublisher(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx, &recordingDispatcher{}) }()

	require.Eventually(t, func() bool { return sampler.Calls() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, a.SetInterval(10*time.Millisecond))
	require.Eventually(t, func() bool { return sampler.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"rounds follow the new interval instead of the configured 5s")
}

func TestRun_ForwardsCommands(t *testing.T) {
	cfg := testConfig(t)
	pub := newFakePublisher()
	d := &recordingDispatcher{}
	a := New(cfg, Identity{DeviceID: "dev1"}, &fixedSampler{reading: sensors.Reading{Time: roundTime}}, pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx, d) }()

	pub.inbox <- broker.Message{Topic: "devices/dev1/commands", Payload: []byte(`{"action":"vibrate"}`)}
	pub.inbox <- broker.Message{Topic: "devices/dev1/commands", Payload: []byte(`not json`)}

	require.Eventually(t, func() bool { return len(d.Payloads()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`{"action":"vibrate"}`, `not json`}, d.Payloads())
}

func TestRun_SlowCommandDoesNotDelayRounds(t *testing.T) {
	cfg := testConfig(t)
	sampler := &fixedSampler{reading: sensors.Reading{CPUActive: f64(5), Time: roundTime}}
	pub := newFakePublisher()
	a := New(cfg, Identity{DeviceID: "dev1"}, sampler, pub, nil)
	require.NoError(t, a.SetInterval(10*time.Millisecond))

	release := make(chan struct{})
	defer close(release)
	reg := actions.NewRegistry()
	reg.Register("sleep", actions.Handler{Run: func(ctx context.Context, p actions.Params) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}})
	d := command.NewDispatcher(reg, 1, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx, d) }()

	pub.inbox <- broker.Message{Payload: []byte(`{"action":"sleep"}`)}
	before := sampler.Calls()
	require.Eventually(t, func() bool { return sampler.Calls() >= before+3 }, 2*time.Second, 5*time.Millisecond)
}
