package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Resolve merges a decoded config file with environment overrides and
// returns a validated Config.
//
// For every recognized key the environment value wins over the file value.
// String values in the file may reference ${NAME} environment variables; any
// value that still carries a placeholder after expansion is treated as absent.
// Missing required settings (broker, port, client id), a non-numeric port, or
// incomplete TLS material produce an ErrConfig error.
func Resolve(file map[string]interface{}, env map[string]string) (*Config, error) {
	v := viper.New()

	if file != nil {
		expanded, _ := expandTree(file, env).(map[string]interface{})
		if err := v.MergeConfigMap(expanded); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't merge config file values",
				"Check the YAML structure of your config file")
		}
	}

	for _, b := range bindings {
		val, ok := env[b.Env]
		if !ok {
			continue
		}
		if val = strings.TrimSpace(val); val != "" {
			v.Set(b.Key, val)
		}
	}

	r := &resolver{v: v}
	cfg := &Config{}

	cfg.MQTT.Broker, _ = r.str("mqtt.broker")
	cfg.MQTT.ClientID, _ = r.str("mqtt.client_id")
	cfg.MQTT.Username, _ = r.str("mqtt.username")
	cfg.MQTT.Password, _ = r.str("mqtt.password")

	port, hasPort, err := r.integer("mqtt.port")
	if err != nil {
		return nil, err
	}
	cfg.MQTT.Port = port

	var missing []string
	if cfg.MQTT.Broker == "" {
		missing = append(missing, describe("mqtt.broker"))
	}
	if !hasPort {
		missing = append(missing, describe("mqtt.port"))
	}
	if cfg.MQTT.ClientID == "" {
		missing = append(missing, describe("mqtt.client_id"))
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrConfig,
			"Missing required MQTT settings: "+strings.Join(missing, ", "),
			"Set them in config.yaml or export the AURORA_* variables (a .env file works too)")
	}

	if cfg.MQTT.KeepAlive, err = r.intOr("mqtt.keepalive", DefaultKeepAlive); err != nil {
		return nil, err
	}
	if cfg.MQTT.ConnectTimeout, err = r.intOr("mqtt.connect_timeout", DefaultConnectTimeout); err != nil {
		return nil, err
	}

	deviceID := cfg.MQTT.ClientID
	cfg.MQTT.Topics = TopicsConfig{
		Telemetry: r.strOr("mqtt.topics.telemetry", fmt.Sprintf("devices/%s/telemetry", deviceID)),
		Commands:  r.strOr("mqtt.topics.commands", fmt.Sprintf("devices/%s/commands", deviceID)),
		Status:    r.strOr("mqtt.topics.status", fmt.Sprintf("devices/%s/status", deviceID)),
		Sensors: SensorTopics{
			Battery:  r.strOr("mqtt.topics.sensors.battery", fmt.Sprintf("devices/%s/sensors/battery", deviceID)),
			Location: r.strOr("mqtt.topics.sensors.location", fmt.Sprintf("devices/%s/sensors/location", deviceID)),
			Sensor:   r.strOr("mqtt.topics.sensors.sensor", fmt.Sprintf("devices/%s/sensors/sensor", deviceID)),
		},
	}

	if cfg.MQTT.TLS, err = r.tls(); err != nil {
		return nil, err
	}

	if cfg.Sensors.Interval, err = r.intOr("sensors.interval", DefaultInterval); err != nil {
		return nil, err
	}
	cfg.Sensors.DiskPath = ExpandTilde(r.strOr("sensors.disk_path", DefaultDiskPath))
	cfg.Sensors.BatteryCommand = r.strOr("sensors.battery_command", DefaultBatteryCommand)
	if cfg.Sensors.BatteryRetries, err = r.intOr("sensors.battery_retries", DefaultBatteryRetries); err != nil {
		return nil, err
	}

	if cfg.Commands.Workers, err = r.intOr("commands.workers", DefaultWorkers); err != nil {
		return nil, err
	}
	if cfg.Commands.Timeout, err = r.intOr("commands.timeout", DefaultCommandTimeout); err != nil {
		return nil, err
	}

	cfg.Logging.Level = strings.ToLower(r.strOr("logging.level", DefaultLogLevel))
	cfg.Lock.Path = ExpandTilde(r.strOr("lock.path", DefaultLockPath))

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolver reads typed values out of the merged viper tree.
type resolver struct {
	v *viper.Viper
}

// str returns the trimmed string at key. Empty or placeholder values are absent.
func (r *resolver) str(key string) (string, bool) {
	raw := r.v.Get(key)
	if raw == nil {
		return "", false
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || IsUnresolved(s) {
		return "", false
	}
	return s, true
}

func (r *resolver) strOr(key, def string) string {
	if s, ok := r.str(key); ok {
		return s
	}
	return def
}

// integer coerces the value at key to an int. A present value that isn't a
// whole number is a configuration error, not an absent value.
func (r *resolver) integer(key string) (int, bool, error) {
	s, ok := r.str(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("%s must be an integer, got %q", key, s),
			fmt.Sprintf("Fix %s in config.yaml or %s", key, envFor(key)))
	}
	return n, true, nil
}

func (r *resolver) intOr(key string, def int) (int, error) {
	n, ok, err := r.integer(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return n, nil
}

func (r *resolver) boolean(key string) (bool, error) {
	s, ok := r.str(key)
	if !ok {
		return false, nil
	}
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, errors.New(errors.ErrConfig,
		fmt.Sprintf("%s must be a boolean, got %q", key, s),
		"Use true or false")
}

// tls resolves the TLS block. When enabled, all three paths must resolve.
func (r *resolver) tls() (TLSConfig, error) {
	enabled, err := r.boolean("mqtt.tls.enabled")
	if err != nil {
		return TLSConfig{}, err
	}
	t := TLSConfig{Enabled: enabled}
	if !enabled {
		return t, nil
	}

	var missing []string
	var ok bool
	if t.CACert, ok = r.str("mqtt.tls.ca_cert"); !ok {
		missing = append(missing, describe("mqtt.tls.ca_cert"))
	}
	if t.ClientCert, ok = r.str("mqtt.tls.client_cert"); !ok {
		missing = append(missing, describe("mqtt.tls.client_cert"))
	}
	if t.ClientKey, ok = r.str("mqtt.tls.client_key"); !ok {
		missing = append(missing, describe("mqtt.tls.client_key"))
	}
	if len(missing) > 0 {
		return TLSConfig{}, errors.New(errors.ErrConfig,
			"TLS is enabled but certificate paths are missing: "+strings.Join(missing, ", "),
			"Provide CA, client certificate and key, or set mqtt.tls.enabled to false")
	}

	t.CACert = ExpandTilde(t.CACert)
	t.ClientCert = ExpandTilde(t.ClientCert)
	t.ClientKey = ExpandTilde(t.ClientKey)
	return t, nil
}

func describe(key string) string {
	if env := envFor(key); env != "" {
		return fmt.Sprintf("%s (%s)", key, env)
	}
	return key
}
