package config

import (
	"fmt"

	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/logger"
)

// Validate checks a resolved config for values that parse but make no sense.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("mqtt.port %d is out of range", cfg.MQTT.Port),
			"Use a TCP port between 1 and 65535 (1883 plain, 8883 TLS).")
	}

	if cfg.MQTT.KeepAlive < 0 || cfg.MQTT.KeepAlive > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("mqtt.keepalive %d is out of range", cfg.MQTT.KeepAlive),
			"Keepalive is in seconds, between 0 and 65535.")
	}

	if cfg.MQTT.ConnectTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"mqtt.connect_timeout must be positive",
			"Set it to the number of seconds to wait for the broker at startup.")
	}

	if cfg.Sensors.Interval <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("sensors.interval must be a positive number of seconds, got %d", cfg.Sensors.Interval),
			"Set sensors.interval or AURORA_SENSORS_INTERVAL to e.g. 10.")
	}

	if cfg.Sensors.BatteryRetries < 1 {
		return errors.New(errors.ErrConfig,
			"sensors.battery_retries must be at least 1",
			"Use 1 to disable retries.")
	}

	if cfg.Commands.Workers < 1 {
		return errors.New(errors.ErrConfig,
			"commands.workers must be at least 1",
			"This caps how many remote actions may run at once.")
	}

	if cfg.Commands.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			"commands.timeout must be positive",
			"Set it to the number of seconds an action may run.")
	}

	if _, ok := logger.ParseLevel(cfg.Logging.Level); !ok {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown logging.level %q", cfg.Logging.Level),
			"Use one of: debug, info, warn, error.")
	}

	if cfg.MQTT.TLS.Enabled && (cfg.MQTT.TLS.CACert == "" || cfg.MQTT.TLS.ClientCert == "" || cfg.MQTT.TLS.ClientKey == "") {
		return errors.New(errors.ErrConfig,
			"TLS is enabled but certificate paths are incomplete",
			"Provide ca_cert, client_cert and client_key under mqtt.tls.")
	}

	return nil
}
