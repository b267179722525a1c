package config

import "time"

// Config is the fully resolved agent configuration.
// Built once at startup by Resolve and read-only afterwards.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt" mapstructure:"mqtt"`
	Sensors  SensorsConfig  `yaml:"sensors" mapstructure:"sensors"`
	Commands CommandsConfig `yaml:"commands" mapstructure:"commands"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Lock     LockConfig     `yaml:"lock" mapstructure:"lock"`
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	// Broker is the broker hostname or IP. Required.
	Broker string `yaml:"broker" mapstructure:"broker"`

	// Port is the broker TCP port. Required.
	Port int `yaml:"port" mapstructure:"port"`

	// ClientID doubles as the device identity used in topics and payloads. Required.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`

	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`

	// KeepAlive is the MQTT keepalive in seconds.
	KeepAlive int `yaml:"keepalive" mapstructure:"keepalive"`

	// ConnectTimeout bounds the wait for the first successful connection, in seconds.
	ConnectTimeout int `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	Topics TopicsConfig `yaml:"topics" mapstructure:"topics"`
	TLS    TLSConfig    `yaml:"tls" mapstructure:"tls"`
}

// TopicsConfig names every topic the agent publishes to or subscribes on.
type TopicsConfig struct {
	Telemetry string       `yaml:"telemetry" mapstructure:"telemetry"`
	Commands  string       `yaml:"commands" mapstructure:"commands"`
	Status    string       `yaml:"status" mapstructure:"status"`
	Sensors   SensorTopics `yaml:"sensors" mapstructure:"sensors"`
}

// SensorTopics are the per-metric sub-topics.
type SensorTopics struct {
	Battery  string `yaml:"battery" mapstructure:"battery"`
	Location string `yaml:"location" mapstructure:"location"`
	Sensor   string `yaml:"sensor" mapstructure:"sensor"`
}

// TLSConfig is all-or-nothing: when Enabled, every path must resolve.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	CACert     string `yaml:"ca_cert,omitempty" mapstructure:"ca_cert"`
	ClientCert string `yaml:"client_cert,omitempty" mapstructure:"client_cert"`
	ClientKey  string `yaml:"client_key,omitempty" mapstructure:"client_key"`
}

// SensorsConfig controls the sample loop.
type SensorsConfig struct {
	// Interval between sample rounds, in seconds.
	Interval int `yaml:"interval" mapstructure:"interval"`

	// DiskPath is the filesystem path whose usage is reported.
	DiskPath string `yaml:"disk_path" mapstructure:"disk_path"`

	// BatteryCommand prints battery status as JSON.
	BatteryCommand string `yaml:"battery_command" mapstructure:"battery_command"`

	// BatteryRetries is the number of attempts made per round.
	BatteryRetries int `yaml:"battery_retries" mapstructure:"battery_retries"`
}

// CommandsConfig bounds remote command execution.
type CommandsConfig struct {
	// Workers caps concurrently running actions.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// Timeout per action, in seconds.
	Timeout int `yaml:"timeout" mapstructure:"timeout"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// LockConfig locates the single-instance lock file.
type LockConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Defaults for optional settings.
const (
	DefaultInterval       = 10
	DefaultKeepAlive      = 60
	DefaultConnectTimeout = 10
	DefaultWorkers        = 4
	DefaultCommandTimeout = 5
	DefaultBatteryRetries = 2
	DefaultBatteryCommand = "termux-battery-status"
	DefaultDiskPath       = "~"
	DefaultLockPath       = "~/.aurora-lock/aurora.lock"
	DefaultLogLevel       = "info"
)

// SampleInterval returns the sample interval as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Sensors.Interval) * time.Second
}

// CommandTimeout returns the per-action timeout as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Commands.Timeout) * time.Second
}

// StartupTimeout returns the window allowed for the first broker connection.
func (c *Config) StartupTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Second
}

// DeviceID is the stable device identity used in topics and payloads.
func (c *Config) DeviceID() string {
	return c.MQTT.ClientID
}

// Redacted returns a copy safe for printing.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.MQTT.Password != "" {
		cp.MQTT.Password = "********"
	}
	return &cp
}
