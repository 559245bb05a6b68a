package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env        string           `mapstructure:"env"`
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Kiosk      KioskConfig      `mapstructure:"kiosk"`
	Inactivity InactivityConfig `mapstructure:"inactivity"`
	Flow       FlowConfig       `mapstructure:"flow"`
	Devices    DevicesConfig    `mapstructure:"devices"`
	Fallback   FallbackConfig   `mapstructure:"fallback"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

type BackendConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`
	Breaker BreakerConfig     `mapstructure:"breaker"`
	// RoomCacheTTL bounds how long a successful room lookup is reused.
	RoomCacheTTL time.Duration `mapstructure:"room_cache_ttl"`
}

type BreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type KioskConfig struct {
	CodeLength        int     `mapstructure:"code_length"`
	RegimeObligatoire float64 `mapstructure:"regime_obligatoire"`
}

// InactivityConfig durations are whole seconds; the supervisor counts ticks.
type InactivityConfig struct {
	InitialDelay     int           `mapstructure:"initial_delay"`
	TimeoutDuration  int           `mapstructure:"timeout_duration"`
	WarningThreshold int           `mapstructure:"warning_threshold"`
	DisabledRoutes   []string      `mapstructure:"disabled_routes"`
	Tick             time.Duration `mapstructure:"tick"`
}

type FlowConfig struct {
	ConfirmDelay       time.Duration `mapstructure:"confirm_delay"`
	InvalidCodeDelay   time.Duration `mapstructure:"invalid_code_delay"`
	CardValidatedDelay time.Duration `mapstructure:"card_validated_delay"`
	PaymentDoneDelay   time.Duration `mapstructure:"payment_done_delay"`
}

type DevicesConfig struct {
	CardReadDelay time.Duration `mapstructure:"card_read_delay"`
	PaymentDelay  time.Duration `mapstructure:"payment_delay"`
}

type FallbackConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type RedisConfig struct {
	URL            string `mapstructure:"url"`
	Channel        string `mapstructure:"channel"`
	CommandChannel string `mapstructure:"command_channel"`
	KioskID        string `mapstructure:"kiosk_id"`
	PoolSize       int    `mapstructure:"pool_size"`
}

type DispatcherConfig struct {
	QueueSize     int           `mapstructure:"queue_size"`
	Workers       int           `mapstructure:"workers"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// apiProfile is the backend endpoint and timeout used by each environment.
type apiProfile struct {
	BaseURL string
	Timeout time.Duration
}

var apiProfiles = map[string]apiProfile{
	"development": {BaseURL: "http://localhost:8000/api", Timeout: 15 * time.Second},
	"test":        {BaseURL: "https://preprod-api.votre-domaine.com/api", Timeout: 10 * time.Second},
	"production":  {BaseURL: "https://api.votre-domaine.com/api", Timeout: 8 * time.Second},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.shutdown_grace", 10*time.Second)

	v.SetDefault("backend.headers", map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"X-App-Version": "1.0.0",
	})
	v.SetDefault("backend.breaker.max_failures", 5)
	v.SetDefault("backend.breaker.timeout", 30*time.Second)
	v.SetDefault("backend.room_cache_ttl", 5*time.Minute)

	v.SetDefault("kiosk.code_length", 6)
	v.SetDefault("kiosk.regime_obligatoire", 6.0)

	v.SetDefault("inactivity.initial_delay", 5)
	v.SetDefault("inactivity.timeout_duration", 30)
	v.SetDefault("inactivity.warning_threshold", 10)
	v.SetDefault("inactivity.disabled_routes", []string{"/"})
	v.SetDefault("inactivity.tick", time.Second)

	v.SetDefault("flow.confirm_delay", 3*time.Second)
	v.SetDefault("flow.invalid_code_delay", time.Second)
	v.SetDefault("flow.card_validated_delay", 3*time.Second)
	v.SetDefault("flow.payment_done_delay", 3*time.Second)

	v.SetDefault("devices.card_read_delay", 1500*time.Millisecond)
	v.SetDefault("devices.payment_delay", 2*time.Second)

	v.SetDefault("fallback.enabled", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "kiosk.events")
	v.SetDefault("redis.command_channel", "kiosk.commands")
	v.SetDefault("redis.kiosk_id", "")
	v.SetDefault("redis.pool_size", 4)

	v.SetDefault("dispatcher.queue_size", 64)
	v.SetDefault("dispatcher.workers", 2)
	v.SetDefault("dispatcher.retry_attempts", 3)
	v.SetDefault("dispatcher.retry_delay", 500*time.Millisecond)
	v.SetDefault("dispatcher.job_timeout", 10*time.Second)

	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// LoadConfig reads config.yaml from path (or . and ./config when empty),
// overlays KIOSK_* environment variables and applies the environment's API profile.
// A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("KIOSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	profile, ok := apiProfiles[config.Env]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q", config.Env)
	}
	config.Backend.BaseURL = profile.BaseURL
	if v.IsSet("backend.base_url") {
		config.Backend.BaseURL = v.GetString("backend.base_url")
	}
	config.Backend.Timeout = profile.Timeout
	if v.IsSet("backend.timeout") {
		config.Backend.Timeout = v.GetDuration("backend.timeout")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Kiosk.CodeLength <= 0:
		return fmt.Errorf("kiosk.code_length must be positive")
	case c.Backend.Timeout <= 0:
		return fmt.Errorf("backend.timeout must be positive")
	case c.Inactivity.InitialDelay < 0 || c.Inactivity.TimeoutDuration <= 0:
		return fmt.Errorf("inactivity delays must be positive")
	case c.Inactivity.Tick <= 0:
		return fmt.Errorf("inactivity.tick must be positive")
	}
	return nil
}
