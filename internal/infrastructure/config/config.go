package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/knightpp/esp-sensor/internal/lineproto"
)

// Config is the root configuration structure for the sensor node.
// It is loaded from YAML or TOML and can be overridden by environment variables.
type Config struct {
	Node     NodeConfig     `yaml:"node" toml:"node"`
	Sensor   SensorConfig   `yaml:"sensor" toml:"sensor"`
	Bus      BusConfig      `yaml:"bus" toml:"bus"`
	Delivery DeliveryConfig `yaml:"delivery" toml:"delivery"`
	Display  DisplayConfig  `yaml:"display" toml:"display"`
	MQTT     MQTTConfig     `yaml:"mqtt" toml:"mqtt"`
	Network  NetworkConfig  `yaml:"network" toml:"network"`
	API      APIConfig      `yaml:"api" toml:"api"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	// ID names the node in tags, topics and logs. Empty means generate one.
	ID string `yaml:"id" toml:"id"`
}

// SensorConfig selects the sensor driver and sampling cadence.
type SensorConfig struct {
	// Driver is "iio", "modbus" or "simulated".
	Driver string `yaml:"driver" toml:"driver"`

	// SampleInterval is the wait between successful reads (seconds).
	SampleInterval int `yaml:"sample_interval" toml:"sample_interval"`

	// RetryInterval is the wait after a failed read (seconds).
	RetryInterval int `yaml:"retry_interval" toml:"retry_interval"`

	IIO       IIOConfig       `yaml:"iio" toml:"iio"`
	Modbus    ModbusConfig    `yaml:"modbus" toml:"modbus"`
	Simulated SimulatedConfig `yaml:"simulated" toml:"simulated"`
}

// IIOConfig contains Linux industrial-I/O sensor settings.
type IIOConfig struct {
	Device string `yaml:"device" toml:"device"`
}

// ModbusConfig contains Modbus RTU transmitter settings.
type ModbusConfig struct {
	Device   string `yaml:"device" toml:"device"`
	BaudRate int    `yaml:"baud_rate" toml:"baud_rate"`
	DataBits int    `yaml:"data_bits" toml:"data_bits"`
	Parity   string `yaml:"parity" toml:"parity"`
	StopBits int    `yaml:"stop_bits" toml:"stop_bits"`
	SlaveID  int    `yaml:"slave_id" toml:"slave_id"`
	Address  int    `yaml:"address" toml:"address"`
	Scale    int    `yaml:"scale" toml:"scale"`
	// Timeout is in milliseconds.
	Timeout int `yaml:"timeout" toml:"timeout"`
}

// SimulatedConfig contains settings for the simulated sensor.
type SimulatedConfig struct {
	Seed uint64 `yaml:"seed" toml:"seed"`
}

// BusConfig sizes the readings bus.
type BusConfig struct {
	Capacity int `yaml:"capacity" toml:"capacity"`
}

// DeliveryConfig contains remote time-series write settings.
type DeliveryConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Transport is "http" (built-in client) or "influxdb" (official client).
	Transport string `yaml:"transport" toml:"transport"`

	URL    string `yaml:"url" toml:"url"`
	Token  string `yaml:"token" toml:"token"`
	Org    string `yaml:"org" toml:"org"`
	Bucket string `yaml:"bucket" toml:"bucket"`

	Measurement string            `yaml:"measurement" toml:"measurement"`
	Tags        map[string]string `yaml:"tags" toml:"tags"`

	// Timestamp adds the sample time to each record. When false the server
	// assigns the arrival time.
	Timestamp bool `yaml:"timestamp" toml:"timestamp"`

	// RetryInterval is the wait after a failed connect (seconds).
	RetryInterval int `yaml:"retry_interval" toml:"retry_interval"`

	// Timeout bounds each network operation (seconds).
	Timeout int `yaml:"timeout" toml:"timeout"`

	BufferSize int `yaml:"buffer_size" toml:"buffer_size"`
}

// DisplayConfig contains digit display settings.
type DisplayConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Driver is "tm1637" or "console".
	Driver string `yaml:"driver" toml:"driver"`

	// ClkPin and DioPin are GPIO names as known to periph (e.g. "GPIO12").
	ClkPin string `yaml:"clk_pin" toml:"clk_pin"`
	DioPin string `yaml:"dio_pin" toml:"dio_pin"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled" toml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker" toml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth" toml:"auth"`
	QoS         int                 `yaml:"qos" toml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix" toml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect" toml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay" toml:"max_delay"`
}

// NetworkConfig contains network link settings.
type NetworkConfig struct {
	Supervisor SupervisorConfig `yaml:"supervisor" toml:"supervisor"`
}

// SupervisorConfig configures supervision of the Wi-Fi association daemon.
type SupervisorConfig struct {
	// Enabled starts and supervises the daemon. When false the link is
	// expected to be managed by the OS.
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Binary is the daemon executable. Default: /usr/sbin/wpa_supplicant
	Binary string `yaml:"binary" toml:"binary"`

	// Interface is the wireless interface, e.g. wlan0.
	Interface string `yaml:"interface" toml:"interface"`

	// ConfigFile is the daemon's network configuration.
	ConfigFile string `yaml:"config_file" toml:"config_file"`

	// RestartDelay is the wait before restarting the daemon (seconds).
	RestartDelay int `yaml:"restart_delay" toml:"restart_delay"`

	// MaxRestartAttempts limits restarts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts" toml:"max_restart_attempts"`

	// HealthCheckInterval is how often the link state is checked (seconds).
	HealthCheckInterval int `yaml:"health_check_interval" toml:"health_check_interval"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled" toml:"enabled"`
	Host     string           `yaml:"host" toml:"host"`
	Port     int              `yaml:"port" toml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts" toml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read" toml:"read"`
	Write int `yaml:"write" toml:"write"`
	Idle  int `yaml:"idle" toml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// Load reads configuration from a YAML or TOML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values (override defaults); .toml files are parsed as TOML,
//     anything else as YAML
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SENSORNODE_SECTION_KEY
// For example: SENSORNODE_DELIVERY_TOKEN, SENSORNODE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Sensor: SensorConfig{
			Driver:         "iio",
			SampleInterval: 5,
			RetryInterval:  2,
			IIO: IIOConfig{
				Device: "/sys/bus/iio/devices/iio:device0",
			},
			Modbus: ModbusConfig{
				Device:   "/dev/ttyUSB0",
				BaudRate: 9600,
				DataBits: 8,
				Parity:   "N",
				StopBits: 1,
				SlaveID:  1,
				Address:  1,
				Scale:    10,
				Timeout:  1000,
			},
		},
		Bus: BusConfig{
			Capacity: 4,
		},
		Delivery: DeliveryConfig{
			Enabled:       true,
			Transport:     "http",
			Measurement:   "dht22",
			RetryInterval: 10,
			Timeout:       10,
			BufferSize:    1024,
		},
		Display: DisplayConfig{
			Enabled: true,
			Driver:  "tm1637",
			ClkPin:  "GPIO12",
			DioPin:  "GPIO13",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:         1,
			TopicPrefix: "sensornode",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Network: NetworkConfig{
			Supervisor: SupervisorConfig{
				Binary:              "/usr/sbin/wpa_supplicant",
				Interface:           "wlan0",
				ConfigFile:          "/etc/wpa_supplicant/wpa_supplicant.conf",
				RestartDelay:        5,
				HealthCheckInterval: 30,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SENSORNODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENSORNODE_NODE_ID"); v != "" {
		cfg.Node.ID = v
	}

	// Delivery (keep the token out of the config file)
	if v := os.Getenv("SENSORNODE_DELIVERY_URL"); v != "" {
		cfg.Delivery.URL = v
	}
	if v := os.Getenv("SENSORNODE_DELIVERY_TOKEN"); v != "" {
		cfg.Delivery.Token = v
	}

	// MQTT
	if v := os.Getenv("SENSORNODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SENSORNODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SENSORNODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SENSORNODE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []string

	switch c.Sensor.Driver {
	case "iio", "modbus", "simulated":
	default:
		errs = append(errs, fmt.Sprintf("sensor.driver %q must be iio, modbus or simulated", c.Sensor.Driver))
	}
	if c.Sensor.SampleInterval < 1 {
		errs = append(errs, "sensor.sample_interval must be at least 1 second")
	}
	if c.Sensor.RetryInterval < 1 {
		errs = append(errs, "sensor.retry_interval must be at least 1 second")
	}
	if c.Sensor.Driver == "modbus" {
		if c.Sensor.Modbus.SlaveID < 1 || c.Sensor.Modbus.SlaveID > 247 {
			errs = append(errs, "sensor.modbus.slave_id must be between 1 and 247")
		}
		if c.Sensor.Modbus.Address < 0 || c.Sensor.Modbus.Address > 65534 {
			errs = append(errs, "sensor.modbus.address must be between 0 and 65534")
		}
		if c.Sensor.Modbus.Scale < 1 {
			errs = append(errs, "sensor.modbus.scale must be positive")
		}
	}

	if c.Bus.Capacity < 1 {
		errs = append(errs, "bus.capacity must be at least 1")
	}

	if c.Delivery.Enabled {
		errs = append(errs, c.validateDelivery()...)
	}

	if c.Display.Enabled {
		switch c.Display.Driver {
		case "tm1637":
			if c.Display.ClkPin == "" || c.Display.DioPin == "" {
				errs = append(errs, "display.clk_pin and display.dio_pin are required for tm1637")
			}
		case "console":
		default:
			errs = append(errs, fmt.Sprintf("display.driver %q must be tm1637 or console", c.Display.Driver))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
			errs = append(errs, "mqtt.topic_prefix must be non-empty and contain no wildcards")
		}
	}

	if s := c.Network.Supervisor; s.Enabled {
		if s.Binary == "" || s.Interface == "" {
			errs = append(errs, "network.supervisor.binary and network.supervisor.interface are required")
		}
		if s.RestartDelay < 1 {
			errs = append(errs, "network.supervisor.restart_delay must be at least 1 second")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateDelivery() []string {
	var errs []string
	d := c.Delivery

	switch d.Transport {
	case "http", "influxdb":
	default:
		errs = append(errs, fmt.Sprintf("delivery.transport %q must be http or influxdb", d.Transport))
	}
	if d.URL == "" {
		errs = append(errs, "delivery.url is required (set SENSORNODE_DELIVERY_URL environment variable)")
	} else if !strings.HasPrefix(d.URL, "http://") && !strings.HasPrefix(d.URL, "https://") {
		errs = append(errs, "delivery.url must start with http:// or https://")
	}
	if d.Org == "" {
		errs = append(errs, "delivery.org is required")
	}
	if d.Bucket == "" {
		errs = append(errs, "delivery.bucket is required")
	}
	if err := lineproto.Validate(d.Measurement); err != nil || d.Measurement == "" {
		errs = append(errs, fmt.Sprintf("delivery.measurement %q is not a valid identifier", d.Measurement))
	}
	for k, v := range d.Tags {
		if err := lineproto.Validate(k); err != nil {
			errs = append(errs, fmt.Sprintf("delivery.tags key %q: %v", k, err))
		}
		if err := lineproto.Validate(v); err != nil {
			errs = append(errs, fmt.Sprintf("delivery.tags[%s] value %q: %v", k, v, err))
		}
	}
	if d.RetryInterval < 1 {
		errs = append(errs, "delivery.retry_interval must be at least 1 second")
	}
	if d.Timeout < 1 {
		errs = append(errs, "delivery.timeout must be at least 1 second")
	}
	if d.BufferSize < 64 {
		errs = append(errs, "delivery.buffer_size must be at least 64 bytes")
	}
	return errs
}

// GetSampleInterval returns the sensor sample interval as a Duration.
func (c *Config) GetSampleInterval() time.Duration {
	return time.Duration(c.Sensor.SampleInterval) * time.Second
}

// GetSensorRetryInterval returns the wait after a failed sensor read.
func (c *Config) GetSensorRetryInterval() time.Duration {
	return time.Duration(c.Sensor.RetryInterval) * time.Second
}

// GetDeliveryRetryInterval returns the wait after a failed connect.
func (c *Config) GetDeliveryRetryInterval() time.Duration {
	return time.Duration(c.Delivery.RetryInterval) * time.Second
}

// GetDeliveryTimeout returns the per-operation network timeout.
func (c *Config) GetDeliveryTimeout() time.Duration {
	return time.Duration(c.Delivery.Timeout) * time.Second
}

// GetModbusTimeout returns the Modbus response timeout.
func (c *Config) GetModbusTimeout() time.Duration {
	return time.Duration(c.Sensor.Modbus.Timeout) * time.Millisecond
}

// GetRestartDelay returns the link supervisor restart delay.
func (c *Config) GetRestartDelay() time.Duration {
	return time.Duration(c.Network.Supervisor.RestartDelay) * time.Second
}

// GetHealthCheckInterval returns the link supervisor health check interval.
func (c *Config) GetHealthCheckInterval() time.Duration {
	return time.Duration(c.Network.Supervisor.HealthCheckInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
