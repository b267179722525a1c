package agent

import (
	"github.com/atlas-iot/aurora/internal/lineproto"
	"github.com/atlas-iot/aurora/internal/sensors"
)

// Round is the encoded output of one sample round.
type Round struct {
	Iteration int64
	// Battery is the mobile_battery line for the battery topic, or "".
	Battery string
	// Telemetry lines are published together on the telemetry topic.
	Telemetry []string
}

// Payload joins the telemetry lines into one publish payload, nil when there
// are none.
func (r Round) Payload() []byte {
	return lineproto.Join(r.Telemetry)
}

// BuildRound encodes a reading. Every line is stamped with the reading's time
// so one batch describes one instant; metrics that did not resolve are left
// out, and a line left without fields is not emitted at all.
func BuildRound(r sensors.Reading, iteration int64) Round {
	ts := r.Time.UnixNano()
	out := Round{Iteration: iteration}

	var samples []lineproto.Sample
	if b := r.Battery; b != nil {
		status := b.StatusOrUnknown()
		out.Battery, _ = lineproto.Encode("mobile_battery",
			map[string]string{"status": status},
			map[string]interface{}{"percentage": b.Percentage, "temperature": b.Temperature},
			ts)

		samples = append(samples, lineproto.Sample{
			Measurement: "mobile_telemetry",
			Tags:        map[string]string{"status": status},
			Fields: map[string]interface{}{
				"iteration":       iteration,
				"battery_percent": b.Percentage,
				"battery_temp":    b.Temperature,
			},
			Time: ts,
		})
	}

	samples = append(samples,
		lineproto.Sample{
			Measurement: "cpu",
			Tags:        map[string]string{"cpu": "cpu-total"},
			Fields:      map[string]interface{}{"usage_active": r.CPUActive},
			Time:        ts,
		},
		lineproto.Sample{
			Measurement: "mem",
			Fields:      map[string]interface{}{"used_percent": r.MemUsedPercent},
			Time:        ts,
		},
		lineproto.Sample{
			Measurement: "disk",
			Tags:        map[string]string{"path": r.DiskPath},
			Fields:      map[string]interface{}{"used_percent": r.DiskUsedPercent},
			Time:        ts,
		},
		lineproto.Sample{
			Measurement: "system",
			Fields:      map[string]interface{}{"uptime": r.Uptime, "load1": r.Load1},
			Time:        ts,
		},
	)

	if r.Battery != nil {
		samples = append(samples, lineproto.Sample{
			Measurement: "temp",
			Tags:        map[string]string{"sensor": "battery"},
			Fields:      map[string]interface{}{"temp": r.Battery.Temperature},
			Time:        ts,
		})
	}

	out.Telemetry = lineproto.Batch(samples...)
	return out
}
