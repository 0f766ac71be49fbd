// Package config loads the feeder configuration from YAML, .env and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/feeder/internal/schedule"
)

const DefaultPath = "feeder.yaml"

// Store medium kinds.
const (
	MediumMemory = "memory"
	MediumFile   = "file"
	MediumBadger = "badger"
)

// Actuator kinds.
const (
	ActuatorLog  = "log"
	ActuatorMQTT = "mqtt"
)

type Config struct {
	DeviceID      string        `yaml:"device_id"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	Debounce      time.Duration `yaml:"debounce_window"`
	UTCOffset     int           `yaml:"utc_offset_hours"`
	DueSoonWindow time.Duration `yaml:"due_soon_window"`
	FedWindow     time.Duration `yaml:"fed_window"`
	PollOnStart   bool          `yaml:"poll_on_start"`
	LogLevel      string        `yaml:"log_level"`

	TimeService TimeServiceConfig `yaml:"time_service"`
	Dispense    DispenseConfig    `yaml:"dispense"`
	Store       StoreConfig       `yaml:"store"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Influx      InfluxConfig      `yaml:"influx"`

	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	HistoryPath string `yaml:"history_path"`
}

type TimeServiceConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	Settle           time.Duration `yaml:"settle"`
	BreakerFailures  int           `yaml:"breaker_failures"`
	BreakerOpenFor   time.Duration `yaml:"breaker_open_for"`
	BreakerResetEach time.Duration `yaml:"breaker_interval"`
}

type DispenseConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
	Duty        int           `yaml:"duty"`
	Actuator    string        `yaml:"actuator"`
}

type StoreConfig struct {
	Medium string `yaml:"medium"`
	Path   string `yaml:"path"`
}

type MQTTConfig struct {
	Host        string `yaml:"host"` // empty disables MQTT
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

func (m MQTTConfig) Enabled() bool { return strings.TrimSpace(m.Host) != "" }

type InfluxConfig struct {
	URL           string        `yaml:"url"` // empty disables telemetry
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

func (i InfluxConfig) Enabled() bool { return strings.TrimSpace(i.URL) != "" }

// Default returns a configuration that runs standalone: file store, dry-run
// actuator, no broker, no telemetry.
func Default() *Config {
	return &Config{
		DeviceID:      "feeder-1",
		PollInterval:  30 * time.Second,
		Debounce:      60 * time.Second,
		UTCOffset:     0,
		DueSoonWindow: 5 * time.Minute,
		FedWindow:     10 * time.Minute,
		PollOnStart:   true,
		LogLevel:      "info",
		TimeService: TimeServiceConfig{
			Host:            "time.nist.gov",
			Port:            13,
			DialTimeout:     5 * time.Second,
			ReadTimeout:     3 * time.Second,
			Settle:          100 * time.Millisecond,
			BreakerFailures: 3,
			BreakerOpenFor:  2 * time.Minute,
		},
		Dispense: DispenseConfig{
			SettleDelay: 200 * time.Millisecond,
			Duty:        100,
			Actuator:    ActuatorLog,
		},
		Store: StoreConfig{
			Medium: MediumFile,
			Path:   "data/feeder.rec",
		},
		MQTT: MQTTConfig{
			Port:        1883,
			ClientID:    "feeder",
			TopicPrefix: "feeder",
		},
		Influx: InfluxConfig{
			Org:           "feeder",
			Bucket:        "feeding",
			BatchSize:     10,
			FlushInterval: time.Second,
		},
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		HistoryPath: "data/history.db",
	}
}

// Load reads path (a missing file means defaults), then a .env next to it
// if present, then environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		// existing environment variables win over .env
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DeviceID = getenv("FEEDER_DEVICE_ID", c.DeviceID)
	c.PollInterval = getenvDuration("FEEDER_POLL_INTERVAL", c.PollInterval)
	c.Debounce = getenvDuration("FEEDER_DEBOUNCE_WINDOW", c.Debounce)
	c.UTCOffset = getenvInt("FEEDER_UTC_OFFSET_HOURS", c.UTCOffset)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	c.TimeService.Host = getenv("TIME_SERVICE_HOST", c.TimeService.Host)
	c.TimeService.Port = getenvInt("TIME_SERVICE_PORT", c.TimeService.Port)

	c.Dispense.SettleDelay = getenvDuration("DISPENSE_SETTLE_DELAY", c.Dispense.SettleDelay)
	c.Dispense.Duty = getenvInt("DISPENSE_DUTY", c.Dispense.Duty)
	c.Dispense.Actuator = getenv("ACTUATOR", c.Dispense.Actuator)

	c.Store.Medium = getenv("STORE_MEDIUM", c.Store.Medium)
	c.Store.Path = getenv("STORE_PATH", c.Store.Path)

	c.MQTT.Host = getenv("RABBITMQ_HOST", c.MQTT.Host)
	c.MQTT.Port = getenvInt("RABBITMQ_PORT", c.MQTT.Port)
	c.MQTT.User = getenv("RABBITMQ_USER", c.MQTT.User)
	c.MQTT.Password = getenv("RABBITMQ_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = getenv("RABBITMQ_CLIENTID", c.MQTT.ClientID)

	c.Influx.URL = getenv("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = getenv("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = getenv("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = getenv("INFLUX_BUCKET", c.Influx.Bucket)

	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getenv("GRPC_ADDR", c.GRPCAddr)
	c.HistoryPath = getenv("HISTORY_PATH", c.HistoryPath)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.DeviceID) == "" || strings.ContainsAny(c.DeviceID, "/+#") {
		add("device_id %q: must be non-empty and free of MQTT wildcards", c.DeviceID)
	}
	if c.PollInterval <= 0 {
		add("poll_interval %v: must be positive", c.PollInterval)
	}
	if c.Debounce < schedule.DefaultDebounce {
		add("debounce_window %v: must be at least %v", c.Debounce, schedule.DefaultDebounce)
	}
	// one automatic feed per matching minute
	if c.PollInterval >= c.Debounce {
		add("poll_interval %v must be shorter than debounce_window %v", c.PollInterval, c.Debounce)
	}
	if c.PollInterval > time.Minute {
		add("poll_interval %v: longer than a minute can miss the feeding minute", c.PollInterval)
	}
	if c.UTCOffset < -12 || c.UTCOffset > 14 {
		add("utc_offset_hours %d: want -12..14", c.UTCOffset)
	}
	if c.TimeService.Port < 1 || c.TimeService.Port > 65535 {
		add("time_service.port %d: out of range", c.TimeService.Port)
	}
	if c.Dispense.Duty < 1 || c.Dispense.Duty > 100 {
		add("dispense.duty %d: want 1..100", c.Dispense.Duty)
	}
	if c.Dispense.SettleDelay < 0 {
		add("dispense.settle_delay %v: negative", c.Dispense.SettleDelay)
	}

	switch c.Dispense.Actuator {
	case ActuatorLog:
	case ActuatorMQTT:
		if !c.MQTT.Enabled() {
			add("dispense.actuator %q requires mqtt.host", ActuatorMQTT)
		}
	default:
		add("dispense.actuator %q: want %s or %s", c.Dispense.Actuator, ActuatorLog, ActuatorMQTT)
	}

	switch c.Store.Medium {
	case MediumMemory:
	case MediumFile, MediumBadger:
		if strings.TrimSpace(c.Store.Path) == "" {
			add("store.path: required for medium %q", c.Store.Medium)
		}
	default:
		add("store.medium %q: want %s, %s or %s", c.Store.Medium, MediumMemory, MediumFile, MediumBadger)
	}

	if c.MQTT.Enabled() && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		add("mqtt.port %d: out of range", c.MQTT.Port)
	}
	if c.Influx.Enabled() && (c.Influx.Org == "" || c.Influx.Bucket == "") {
		add("influx: org and bucket are required when url is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Redacted is safe to log.
func (c Config) Redacted() Config {
	if c.MQTT.Password != "" {
		c.MQTT.Password = "***"
	}
	if c.Influx.Token != "" {
		c.Influx.Token = "***"
	}
	return c
}

// YAML renders the redacted configuration.
func (c *Config) YAML() string {
	b, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return err.Error()
	}
	return string(b)
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

// getenvDuration accepts Go durations ("45s") or bare milliseconds.
func getenvDuration(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return d
}
