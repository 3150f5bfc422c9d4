// Package config loads the clearing house configuration from an optional YAML
// file layered under environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel   string        `yaml:"log_level"`
	AdminToken string        `yaml:"admin_token"`
	Server     Server        `yaml:"server"`
	Identity   Identity      `yaml:"identity"`
	DAPS       DAPS          `yaml:"daps"`
	Storage    Storage       `yaml:"storage"`
	Redis      RedisConfig   `yaml:"redis"`
	Kafka      KafkaConfig   `yaml:"kafka"`
	Keyring    KeyringConfig `yaml:"keyring"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	BackendTimeout  time.Duration `yaml:"backend_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Identity is stamped on every response header.
type Identity struct {
	SenderAgent     string `yaml:"sender_agent"`
	IssuerConnector string `yaml:"issuer_connector"`
	ModelVersion    string `yaml:"model_version"`
}

// DAPS configures bearer token validation. Exactly one of Secret or
// PublicKeyFile is expected.
type DAPS struct {
	Secret        string `yaml:"secret"`
	PublicKeyFile string `yaml:"public_key_file"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// Storage selects the process and document backends.
type Storage struct {
	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"database_url"`
}

// RedisConfig configures the keyring store. An empty URL keeps the keyring in
// the storage backend: postgres, or memory.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures the receipt stream. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// KeyringConfig holds the master secret used to derive per-type keys and the
// doc types registered for every pid at startup.
type KeyringConfig struct {
	MasterSecret   string   `yaml:"master_secret"`
	DefaultDocType string   `yaml:"default_doc_type"`
	GlobalDocTypes []string `yaml:"global_doc_types"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: Server{
			Addr:            ":8000",
			RequestTimeout:  30 * time.Second,
			BackendTimeout:  5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Identity: Identity{
			ModelVersion: "4.0.0",
		},
		Storage: Storage{Backend: StorageMemory},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "clearinghouse.receipts"},
		Keyring: KeyringConfig{
			DefaultDocType: "IDS_MESSAGE",
			GlobalDocTypes: []string{"IDS_MESSAGE"},
		},
	}
}

// FromEnv builds a Config from defaults, the YAML file named by
// CH_CONFIG_FILE (if any) and environment overrides, then validates it.
func FromEnv() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CH_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("CH_LOG_LEVEL", &c.LogLevel)
	str("CH_ADMIN_TOKEN", &c.AdminToken)
	str("CH_ADDR", &c.Server.Addr)
	dur("CH_REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	dur("CH_BACKEND_TIMEOUT", &c.Server.BackendTimeout)
	dur("CH_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	str("CH_SENDER_AGENT", &c.Identity.SenderAgent)
	str("CH_ISSUER_CONNECTOR", &c.Identity.IssuerConnector)
	str("CH_MODEL_VERSION", &c.Identity.ModelVersion)
	str("CH_DAPS_SECRET", &c.DAPS.Secret)
	str("CH_DAPS_PUBLIC_KEY_FILE", &c.DAPS.PublicKeyFile)
	str("CH_DAPS_ISSUER", &c.DAPS.Issuer)
	str("CH_DAPS_AUDIENCE", &c.DAPS.Audience)
	str("CH_STORAGE", &c.Storage.Backend)
	str("CH_DATABASE_URL", &c.Storage.DatabaseURL)
	str("CH_REDIS_URL", &c.Redis.URL)
	list("CH_KAFKA_BROKERS", &c.Kafka.Brokers)
	str("CH_KAFKA_TOPIC", &c.Kafka.Topic)
	str("CH_KEYRING_MASTER_SECRET", &c.Keyring.MasterSecret)
	str("CH_DEFAULT_DOC_TYPE", &c.Keyring.DefaultDocType)
	list("CH_GLOBAL_DOC_TYPES", &c.Keyring.GlobalDocTypes)

	return errors.Join(errs...)
}

// Validate reports every startup misconfiguration at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr is required"))
	}
	if c.Server.BackendTimeout <= 0 {
		errs = append(errs, errors.New("backend timeout must be positive"))
	}
	if c.Identity.SenderAgent == "" || c.Identity.IssuerConnector == "" {
		errs = append(errs, errors.New("identity sender_agent and issuer_connector are required"))
	}
	if c.Identity.ModelVersion == "" {
		errs = append(errs, errors.New("identity model_version is required"))
	}
	switch {
	case c.DAPS.Secret == "" && c.DAPS.PublicKeyFile == "":
		errs = append(errs, errors.New("daps secret or public_key_file is required"))
	case c.DAPS.Secret != "" && c.DAPS.PublicKeyFile != "":
		errs = append(errs, errors.New("daps secret and public_key_file are mutually exclusive"))
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("storage database_url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	if len(c.Keyring.MasterSecret) < 32 {
		errs = append(errs, errors.New("keyring master_secret must be at least 32 bytes"))
	}
	if c.Keyring.DefaultDocType == "" {
		errs = append(errs, errors.New("keyring default_doc_type is required"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
