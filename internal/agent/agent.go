// Package agent runs the sample-and-publish loop and feeds inbound commands
// to the dispatcher.
package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/atlas-iot/aurora/internal/actions"
	"github.com/atlas-iot/aurora/internal/broker"
	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/logger"
	"github.com/atlas-iot/aurora/internal/sensors"
)

// SetInterval is the agent-level action that changes the sample interval.
//
//	{"action":"set_interval","value":30}
const SetInterval = "set_interval"

// publishTimeout bounds waiting for the broker to acknowledge one publish.
const publishTimeout = 10 * time.Second

// Sampler takes one sample round.
type Sampler interface {
	Sample(ctx context.Context) sensors.Reading
}

// Publisher is the broker session as the agent sees it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Messages() <-chan broker.Message
}

// Dispatcher hands a raw command payload off without waiting on it.
type Dispatcher interface {
	Dispatch(payload []byte)
}

// Agent owns the per-process session state: identity, the sampler (and with
// it the CPU baseline) and the round counter. Only the goroutine in Run
// samples, so none of that state is shared.
type Agent struct {
	identity Identity
	topics   config.TopicsConfig
	sampler  Sampler
	pub      Publisher
	log      logger.Logger

	interval atomic.Int64
	changed  chan struct{}

	iteration int64
}

// New creates an agent that samples every cfg.Sensors.Interval seconds.
func New(cfg *config.Config, id Identity, sampler Sampler, pub Publisher, log logger.Logger) *Agent {
	if log == nil {
		log = logger.Noop()
	}
	a := &Agent{
		identity: id,
		topics:   cfg.MQTT.Topics,
		sampler:  sampler,
		pub:      pub,
		log:      log,
		changed:  make(chan struct{}, 1),
	}
	a.interval.Store(int64(cfg.SampleInterval()))
	return a
}

// Identity returns the agent's identity.
func (a *Agent) Identity() Identity {
	return a.identity
}

// Interval returns the current sample interval.
func (a *Agent) Interval() time.Duration {
	return time.Duration(a.interval.Load())
}

// SetInterval changes the sample interval starting with the next wait.
func (a *Agent) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errors.New(errors.ErrCommand,
			fmt.Sprintf("Sample interval must be positive, got %s", d),
			`Send {"action":"set_interval","value":<seconds>}`)
	}
	if time.Duration(a.interval.Swap(int64(d))) == d {
		return nil
	}
	a.log.Info("sample interval set to %s", d)
	select {
	case a.changed <- struct{}{}:
	default:
	}
	return nil
}

// RegisterActions adds the agent's own actions to r.
func (a *Agent) RegisterActions(r *actions.Registry) {
	r.Register(SetInterval, actions.Handler{
		Run: func(ctx context.Context, p actions.Params) error {
			secs, err := p.Int("value", 0)
			if err != nil {
				return err
			}
			return a.SetInterval(time.Duration(secs) * time.Second)
		},
	})
}

// Run samples and publishes once immediately and then every interval until
// ctx ends. Inbound commands are handed to d for as long as Run is active.
// Returns nil on cancellation.
func (a *Agent) Run(ctx context.Context, d Dispatcher) error {
	go a.pump(ctx, d)

	a.log.Info("device %s sampling every %s", a.identity.DeviceID, a.Interval())
	a.Round(ctx)

	ticker := time.NewTicker(a.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("stopping after %d rounds", a.iteration)
			return nil
		case <-a.changed:
			ticker.Reset(a.Interval())
		case <-ticker.C:
			a.Round(ctx)
		}
	}
}

func (a *Agent) pump(ctx context.Context, d Dispatcher) {
	msgs := a.pub.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			a.log.Debug("command on %s: %s", msg.Topic, msg.Payload)
			d.Dispatch(msg.Payload)
		}
	}
}

// Round takes one sample, encodes it and publishes the result. Publish
// failures are logged and the round's data is dropped.
func (a *Agent) Round(ctx context.Context) Round {
	a.iteration++
	reading := a.sampler.Sample(ctx)
	out := BuildRound(reading, a.iteration)

	if out.Battery != "" {
		a.publish(ctx, a.topics.Sensors.Battery, []byte(out.Battery))
		a.log.Info("round #%d battery %s", out.Iteration, describeBattery(reading))
	} else {
		a.log.Warn("round #%d battery unavailable", out.Iteration)
	}

	if reading.Empty() {
		a.log.Warn("round #%d produced no metrics, nothing to publish", out.Iteration)
		return out
	}
	a.publish(ctx, a.topics.Telemetry, out.Payload())
	a.log.Debug("round #%d published %d lines", out.Iteration, len(out.Telemetry))
	return out
}

func (a *Agent) publish(ctx context.Context, topic string, payload []byte) {
	if topic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := a.pub.Publish(ctx, topic, payload); err != nil {
		a.log.Warn("%s", errors.Summary(err))
	}
}

func describeBattery(r sensors.Reading) string {
	if r.Battery == nil || r.Battery.Percentage == nil {
		return "n/a"
	}
	return fmt.Sprintf("%g%% (%s)", *r.Battery.Percentage, r.Battery.StatusOrUnknown())
}
