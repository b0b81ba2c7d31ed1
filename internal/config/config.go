package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the server configuration.
type Config struct {
	HTTPAddr            string   `yaml:"http_addr"`
	Storage             string   `yaml:"storage"`
	DatabaseURL         string   `yaml:"database_url"`
	JWTSecret           string   `yaml:"jwt_secret"`
	KafkaBrokers        []string `yaml:"kafka_brokers"`
	KafkaTopic          string   `yaml:"kafka_topic"`
	RecomputeOnBackdate bool     `yaml:"cashbook_recompute_on_backdate"`
	Company             Company  `yaml:"company"`
	POD                 POD      `yaml:"pod"`
}

// Company is printed on every document.
type Company struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Currency string `yaml:"currency"`
}

// POD configures proof-of-delivery file storage.
type POD struct {
	StorageRoot string `yaml:"storage_root"`
	MaxBytes    int64  `yaml:"max_bytes"`
}

// Load reads defaults, then the YAML file named by LEDGER_CONFIG, then
// environment overrides, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:   ":8080",
		Storage:    StorageMemory,
		KafkaTopic: "ledger.changes",
		Company: Company{
			Name:     "Transport Ledger",
			Currency: "INR",
		},
		POD: POD{
			StorageRoot: filepath.FromSlash("var/pod"),
			MaxBytes:    10 << 20,
		},
	}

	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.Storage = strings.ToLower(getenvDefault("STORAGE", cfg.Storage))
	cfg.JWTSecret = getenvDefault("AUTH_JWT_SECRET", cfg.JWTSecret)
	if brokers := splitCSV(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	cfg.KafkaTopic = getenvDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.RecomputeOnBackdate = getenvBoolDefault("CASHBOOK_RECOMPUTE_ON_BACKDATE", cfg.RecomputeOnBackdate)
	cfg.Company.Name = getenvDefault("COMPANY_NAME", cfg.Company.Name)
	cfg.Company.Address = getenvDefault("COMPANY_ADDRESS", cfg.Company.Address)
	cfg.Company.Currency = getenvDefault("CURRENCY", cfg.Company.Currency)
	cfg.POD.StorageRoot = getenvDefault("POD_STORAGE_ROOT", cfg.POD.StorageRoot)
	cfg.POD.MaxBytes = getenvInt64Default("POD_MAX_BYTES", cfg.POD.MaxBytes)
}

// Validate reports configuration that cannot start a server.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL or PG_DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	if c.HTTPAddr == "" {
		return errors.New("config: http addr required")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("config: kafka topic required when brokers are set")
	}
	if c.POD.StorageRoot == "" {
		return errors.New("config: pod storage root required")
	}
	if c.POD.MaxBytes <= 0 {
		return errors.New("config: pod max bytes must be positive")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
