package config

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "AURORA_"

// Binding ties a config key to the environment variable that overrides it.
type Binding struct {
	Key string
	Env string
}

// bindings lists every recognized key. Environment values win over file values
// for all of them.
var bindings = []Binding{
	{Key: "mqtt.broker", Env: EnvPrefix + "MQTT_BROKER_HOST"},
	{Key: "mqtt.port", Env: EnvPrefix + "MQTT_BROKER_PORT"},
	{Key: "mqtt.client_id", Env: EnvPrefix + "MQTT_CLIENT_ID"},
	{Key: "mqtt.username", Env: EnvPrefix + "MQTT_USERNAME"},
	{Key: "mqtt.password", Env: EnvPrefix + "MQTT_PASSWORD"},
	{Key: "mqtt.keepalive", Env: EnvPrefix + "MQTT_KEEPALIVE"},
	{Key: "mqtt.connect_timeout", Env: EnvPrefix + "MQTT_CONNECT_TIMEOUT"},
	{Key: "mqtt.topics.telemetry", Env: EnvPrefix + "MQTT_TELEMETRY_TOPIC"},
	{Key: "mqtt.topics.commands", Env: EnvPrefix + "MQTT_COMMANDS_TOPIC"},
	{Key: "mqtt.topics.status", Env: EnvPrefix + "MQTT_STATUS_TOPIC"},
	{Key: "mqtt.topics.sensors.battery", Env: EnvPrefix + "MQTT_SENSORS_BATTERY_TOPIC"},
	{Key: "mqtt.topics.sensors.location", Env: EnvPrefix + "MQTT_SENSORS_LOCATION_TOPIC"},
	{Key: "mqtt.topics.sensors.sensor", Env: EnvPrefix + "MQTT_SENSORS_SENSOR_TOPIC"},
	{Key: "mqtt.tls.enabled", Env: EnvPrefix + "MQTT_TLS_ENABLED"},
	{Key: "mqtt.tls.ca_cert", Env: EnvPrefix + "MQTT_TLS_CA_CERT"},
	{Key: "mqtt.tls.client_cert", Env: EnvPrefix + "MQTT_TLS_CLIENT_CERT"},
	{Key: "mqtt.tls.client_key", Env: EnvPrefix + "MQTT_TLS_CLIENT_KEY"},
	{Key: "sensors.interval", Env: EnvPrefix + "SENSORS_INTERVAL"},
	{Key: "sensors.disk_path", Env: EnvPrefix + "DISK_PATH"},
	{Key: "sensors.battery_command", Env: EnvPrefix + "BATTERY_COMMAND"},
	{Key: "sensors.battery_retries", Env: EnvPrefix + "BATTERY_RETRIES"},
	{Key: "commands.workers", Env: EnvPrefix + "COMMANDS_WORKERS"},
	{Key: "commands.timeout", Env: EnvPrefix + "COMMANDS_TIMEOUT"},
	{Key: "logging.level", Env: EnvPrefix + "LOG_LEVEL"},
	{Key: "lock.path", Env: EnvPrefix + "LOCK_PATH"},
}

// Bindings returns a copy of the key/environment table.
func Bindings() []Binding {
	out := make([]Binding, len(bindings))
	copy(out, bindings)
	return out
}

// envFor returns the environment variable name for key.
func envFor(key string) string {
	for _, b := range bindings {
		if b.Key == key {
			return b.Env
		}
	}
	return ""
}
