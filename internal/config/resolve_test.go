package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalEnv() map[string]string {
	return map[string]string{
		"AURORA_MQTT_BROKER_HOST": "broker.local",
		"AURORA_MQTT_BROKER_PORT": "1883",
		"AURORA_MQTT_CLIENT_ID":   "phone-01",
	}
}

func TestResolve_EnvOnlyDefaults(t *testing.T) {
	cfg, err := Resolve(nil, minimalEnv())
	require.NoError(t, err)

	assert.Equal(t, "broker.local", cfg.MQTT.Broker)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "phone-01", cfg.DeviceID())
	assert.Equal(t, DefaultKeepAlive, cfg.MQTT.KeepAlive)
	assert.Equal(t, 10*time.Second, cfg.StartupTimeout())
	assert.Equal(t, 10*time.Second, cfg.SampleInterval())
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout())
	assert.Equal(t, DefaultWorkers, cfg.Commands.Workers)
	assert.Equal(t, DefaultBatteryCommand, cfg.Sensors.BatteryCommand)
	assert.Equal(t, DefaultBatteryRetries, cfg.Sensors.BatteryRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.MQTT.TLS.Enabled)

	assert.Equal(t, "devices/phone-01/telemetry", cfg.MQTT.Topics.Telemetry)
	assert.Equal(t, "devices/phone-01/commands", cfg.MQTT.Topics.Commands)
	assert.Equal(t, "devices/phone-01/status", cfg.MQTT.Topics.Status)
	assert.Equal(t, "devices/phone-01/sensors/battery", cfg.MQTT.Topics.Sensors.Battery)
	assert.Equal(t, "devices/phone-01/sensors/location", cfg.MQTT.Topics.Sensors.Location)
	assert.Equal(t, "devices/phone-01/sensors/sensor", cfg.MQTT.Topics.Sensors.Sensor)

	assert.NotContains(t, cfg.Sensors.DiskPath, "~")
	assert.NotContains(t, cfg.Lock.Path, "~")
	assert.Equal(t, "aurora.lock", filepath.Base(cfg.Lock.Path))
}

func TestResolve_EnvWinsOverFile(t *testing.T) {
	file := map[string]interface{}{
		"mqtt": map[string]interface{}{
			"broker":    "file-broker",
			"port":      8883,
			"client_id": "file-device",
			"topics": map[string]interface{}{
				"telemetry": "custom/telemetry",
			},
		},
		"sensors": map[string]interface{}{
			"interval": 30,
		},
	}
	env := map[string]string{
		"AURORA_MQTT_BROKER_HOST": "env-broker",
		"AURORA_SENSORS_INTERVAL": "5",
	}

	cfg, err := Resolve(file, env)
	require.NoError(t, err)

	assert.Equal(t, "env-broker", cfg.MQTT.Broker)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, "file-device", cfg.MQTT.ClientID)
	assert.Equal(t, 5, cfg.Sensors.Interval)
	assert.Equal(t, "custom/telemetry", cfg.MQTT.Topics.Telemetry)
	assert.Equal(t, "devices/file-device/commands", cfg.MQTT.Topics.Commands)
}

func TestResolve_Placeholders(t *testing.T) {
	tests := []struct {
		name       string
		broker     interface{}
		env        map[string]string
		wantBroker string
		wantErr    bool
	}{
		{
			name:       "expanded from env",
			broker:     "${BROKER_HOST}",
			env:        map[string]string{"BROKER_HOST": "10.0.0.2"},
			wantBroker: "10.0.0.2",
		},
		{
			name:    "unresolved braces count as absent",
			broker:  "${BROKER_HOST}",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:    "leading dollar counts as absent",
			broker:  "$BROKER_HOST",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:       "env override beats placeholder",
			broker:     "${BROKER_HOST}",
			env:        map[string]string{"AURORA_MQTT_BROKER_HOST": "override"},
			wantBroker: "override",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := map[string]interface{}{
				"mqtt": map[string]interface{}{
					"broker":    tt.broker,
					"port":      1883,
					"client_id": "dev",
				},
			}
			cfg, err := Resolve(file, tt.env)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				assert.Contains(t, err.Error(), "mqtt.broker")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBroker, cfg.MQTT.Broker)
		})
	}
}

func TestResolve_PlaceholderInOptionalFallsBackToDefault(t *testing.T) {
	file := map[string]interface{}{
		"mqtt": map[string]interface{}{
			"topics": map[string]interface{}{
				"commands": "${COMMANDS_TOPIC}",
			},
		},
	}
	cfg, err := Resolve(file, minimalEnv())
	require.NoError(t, err)
	assert.Equal(t, "devices/phone-01/commands", cfg.MQTT.Topics.Commands)
}

func TestResolve_MissingRequired(t *testing.T) {
	_, err := Resolve(nil, map[string]string{"AURORA_MQTT_BROKER_PORT": "1883"})
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.ErrConfig, e.Code)
	assert.Contains(t, e.Message, "mqtt.broker (AURORA_MQTT_BROKER_HOST)")
	assert.Contains(t, e.Message, "mqtt.client_id (AURORA_MQTT_CLIENT_ID)")
	assert.NotContains(t, e.Message, "mqtt.port")
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestResolve_BlankEnvIsAbsent(t *testing.T) {
	env := minimalEnv()
	env["AURORA_MQTT_BROKER_HOST"] = "   "
	_, err := Resolve(nil, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt.broker")
}

func TestResolve_BadNumbers(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantMsg string
	}{
		{"non-numeric port", "AURORA_MQTT_BROKER_PORT", "abc", "mqtt.port must be an integer"},
		{"port out of range", "AURORA_MQTT_BROKER_PORT", "70000", "mqtt.port 70000 is out of range"},
		{"zero interval", "AURORA_SENSORS_INTERVAL", "0", "sensors.interval must be a positive"},
		{"negative interval", "AURORA_SENSORS_INTERVAL", "-3", "sensors.interval must be a positive"},
		{"fractional interval", "AURORA_SENSORS_INTERVAL", "2.5", "sensors.interval must be an integer"},
		{"zero workers", "AURORA_COMMANDS_WORKERS", "0", "commands.workers"},
		{"unknown level", "AURORA_LOG_LEVEL", "chatty", "Unknown logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := minimalEnv()
			env[tt.key] = tt.value
			_, err := Resolve(nil, env)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestResolve_TLS(t *testing.T) {
	t.Run("disabled ignores paths", func(t *testing.T) {
		env := minimalEnv()
		env["AURORA_MQTT_TLS_CA_CERT"] = "/etc/ca.pem"
		cfg, err := Resolve(nil, env)
		require.NoError(t, err)
		assert.Equal(t, TLSConfig{}, cfg.MQTT.TLS)
	})

	t.Run("enabled with all paths", func(t *testing.T) {
		env := minimalEnv()
		env["AURORA_MQTT_TLS_ENABLED"] = "yes"
		env["AURORA_MQTT_TLS_CA_CERT"] = "/etc/ca.pem"
		env["AURORA_MQTT_TLS_CLIENT_CERT"] = "/etc/client.pem"
		env["AURORA_MQTT_TLS_CLIENT_KEY"] = "/etc/client.key"
		cfg, err := Resolve(nil, env)
		require.NoError(t, err)
		assert.True(t, cfg.MQTT.TLS.Enabled)
		assert.Equal(t, "/etc/client.key", cfg.MQTT.TLS.ClientKey)
	})

	t.Run("enabled with missing key", func(t *testing.T) {
		env := minimalEnv()
		env["AURORA_MQTT_TLS_ENABLED"] = "true"
		env["AURORA_MQTT_TLS_CA_CERT"] = "/etc/ca.pem"
		env["AURORA_MQTT_TLS_CLIENT_CERT"] = "/etc/client.pem"
		_, err := Resolve(nil, env)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
		assert.Contains(t, err.Error(), "mqtt.tls.client_key")
		assert.NotContains(t, err.Error(), "mqtt.tls.ca_cert")
	})

	t.Run("bad boolean", func(t *testing.T) {
		env := minimalEnv()
		env["AURORA_MQTT_TLS_ENABLED"] = "maybe"
		_, err := Resolve(nil, env)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be a boolean")
	})
}

func TestRedacted(t *testing.T) {
	env := minimalEnv()
	env["AURORA_MQTT_PASSWORD"] = "s3cret"
	cfg, err := Resolve(nil, env)
	require.NoError(t, err)

	red := cfg.Redacted()
	assert.Equal(t, "********", red.MQTT.Password)
	assert.Equal(t, "s3cret", cfg.MQTT.Password, "original must stay intact")
}

func TestBindings_UniqueEnvNames(t *testing.T) {
	seen := make(map[string]string)
	for _, b := range Bindings() {
		if prev, ok := seen[b.Env]; ok {
			t.Fatalf("env %s bound to both %s and %s", b.Env, prev, b.Key)
		}
		seen[b.Env] = b.Key
		assert.Contains(t, b.Env, EnvPrefix)
	}
}
