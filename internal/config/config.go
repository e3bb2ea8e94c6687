package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the optional YAML file layered between defaults and the environment.
const ConfigPathEnvVar = "CONFIG_PATH"

const defaultConfigPath = "config.yaml"

// Config holds all service settings. Values come from built-in defaults, an
// optional YAML file, and environment variables, in increasing priority.
type Config struct {
	HTTPAddr        string        `koanf:"http_addr" env:"HTTP_ADDR" validate:"required"`
	LogLevel        string        `koanf:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `koanf:"log_format" env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`

	// Model configuration.
	AppRoot        string `koanf:"app_root" env:"APP_ROOT" validate:"required"`
	ModelPath      string `koanf:"model_path" env:"MODEL_PATH"`
	ModelCacheSize int    `koanf:"model_cache_size" env:"MODEL_CACHE_SIZE" validate:"gte=0"`

	// Session configuration.
	SessionStore           string        `koanf:"session_store" env:"SESSION_STORE" validate:"oneof=memory badger sqlite"`
	SessionPath            string        `koanf:"session_path" env:"SESSION_PATH" validate:"required_unless=SessionStore memory"`
	SessionTTL             time.Duration `koanf:"session_ttl" env:"SESSION_TTL" validate:"gt=0"`
	SessionCookieName      string        `koanf:"session_cookie_name" env:"SESSION_COOKIE_NAME" validate:"required"`
	SessionCookieSecure    bool          `koanf:"session_cookie_secure" env:"SESSION_COOKIE_SECURE"`
	SessionCleanupInterval time.Duration `koanf:"session_cleanup_interval" env:"SESSION_CLEANUP_INTERVAL" validate:"gt=0"`

	// Opt-in rate limiting on the form endpoint. Zero requests disables it.
	RateLimitRequests int           `koanf:"rate_limit_requests" env:"RATE_LIMIT_REQUESTS" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" env:"RATE_LIMIT_WINDOW" validate:"gt=0"`

	// Conversion event stream (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	KafkaBrokers       []string      `koanf:"kafka_brokers" env:"KAFKA_BROKERS"`
	KafkaEnabled       bool          `koanf:"-"`
	KafkaTopic         string        `koanf:"kafka_topic" env:"KAFKA_TOPIC" validate:"required"`
	BatchSize          int           `koanf:"batch_size" env:"BATCH_SIZE" validate:"min=1,max=1000"`
	BatchFlushInterval time.Duration `koanf:"batch_flush_interval" env:"BATCH_FLUSH_INTERVAL" validate:"gt=0"`
	EventBufferSize    int           `koanf:"event_buffer_size" env:"EVENT_BUFFER_SIZE" validate:"min=1"`
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:               ":8080",
		LogLevel:               "info",
		LogFormat:              "json",
		ShutdownTimeout:        10 * time.Second,
		AppRoot:                ".",
		ModelCacheSize:         1000,
		SessionStore:           "memory",
		SessionPath:            "data/sessions",
		SessionTTL:             14 * 24 * time.Hour,
		SessionCookieName:      "sessionid",
		SessionCleanupInterval: 10 * time.Minute,
		RateLimitRequests:      0,
		RateLimitWindow:        time.Minute,
		KafkaTopic:             "temperature-conversions",
		BatchSize:              50,
		BatchFlushInterval:     500 * time.Millisecond,
		EventBufferSize:        1024,
	}
}

// Load reads configuration from defaults, the optional config file, and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := sharedcfg.EnvOrDefault(ConfigPathEnvVar, defaultConfigPath)
	explicit := os.Getenv(ConfigPathEnvVar) != ""
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("invalid %s: %w", ConfigPathEnvVar, err)
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if raw, ok := k.Get("kafka_brokers").(string); ok {
		if err := k.Set("kafka_brokers", sharedcfg.ParseBrokers(raw)); err != nil {
			return nil, fmt.Errorf("parse KAFKA_BROKERS: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	if k.Exists("kafka_enabled") {
		cfg.KafkaEnabled = k.Bool("kafka_enabled")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Error messages name the environment
// variable that controls the offending field.
func (c *Config) Validate() error {
	var errs []error

	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set"))
	}

	return errors.Join(errs...)
}

func fieldError(fe validator.FieldError) error {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", name)
	case "required_unless":
		return fmt.Errorf("%s is required unless SESSION_STORE is memory", name)
	case "oneof":
		return fmt.Errorf("invalid %s: must be one of %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Errorf("invalid %s: must be a positive duration", name)
	case "gte":
		return fmt.Errorf("invalid %s: must not be negative", name)
	case "min", "max":
		if name == "BATCH_SIZE" {
			return fmt.Errorf("invalid %s: must be 1-1000", name)
		}
		return fmt.Errorf("invalid %s: must be at least 1", name)
	default:
		return fmt.Errorf("invalid %s", name)
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("env"); name != "" {
				return name
			}
			return f.Name
		})
	})
	return validate
}

// envKeys maps environment variable names to koanf paths, derived from the
// Config struct tags.
var envKeys = func() map[string]string {
	keys := map[string]string{"KAFKA_ENABLED": "kafka_enabled"}
	t := reflect.TypeOf(Config{})
	for i := range t.NumField() {
		f := t.Field(i)
		if name, path := f.Tag.Get("env"), f.Tag.Get("koanf"); name != "" && path != "" && path != "-" {
			keys[name] = path
		}
	}
	return keys
}()

// envTransform keeps only known, non-empty variables so unrelated environment
// entries and blank values never override defaults.
func envTransform(key, value string) (string, any) {
	path, ok := envKeys[key]
	if !ok || value == "" {
		return "", nil
	}
	return path, value
}
