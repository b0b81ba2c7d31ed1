package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"LEDGER_CONFIG", "HTTP_ADDR", "DATABASE_URL", "PG_DSN", "STORAGE", "AUTH_JWT_SECRET",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "CASHBOOK_RECOMPUTE_ON_BACKDATE", "COMPANY_NAME",
	"COMPANY_ADDRESS", "CURRENCY", "POD_STORAGE_ROOT", "POD_MAX_BYTES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, StorageMemory, cfg.Storage)
	require.Equal(t, "INR", cfg.Company.Currency)
	require.False(t, cfg.RecomputeOnBackdate)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9090"
storage: postgres
database_url: postgres://file
kafka_brokers: [k1:9092, k2:9092]
cashbook_recompute_on_backdate: true
company:
  name: Sharma Roadlines
  address: Nagpur
pod:
  max_bytes: 2048
`), 0o600))
	t.Setenv("LEDGER_CONFIG", path)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("KAFKA_TOPIC", "changes")
	t.Setenv("POD_MAX_BYTES", "bogus")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, StoragePostgres, cfg.Storage)
	require.Equal(t, "postgres://env", cfg.DatabaseURL)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "changes", cfg.KafkaTopic)
	require.True(t, cfg.RecomputeOnBackdate)
	require.Equal(t, "Sharma Roadlines", cfg.Company.Name)
	require.Equal(t, "INR", cfg.Company.Currency)
	require.Equal(t, int64(2048), cfg.POD.MaxBytes)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PG_DSN", "postgres://dsn")
	t.Setenv("STORAGE", "Postgres")
	t.Setenv("KAFKA_BROKERS", " a:1, ,b:2 ")
	t.Setenv("CASHBOOK_RECOMPUTE_ON_BACKDATE", "true")
	t.Setenv("CURRENCY", "USD")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres://dsn", cfg.DatabaseURL)
	require.Equal(t, StoragePostgres, cfg.Storage)
	require.Equal(t, []string{"a:1", "b:2"}, cfg.KafkaBrokers)
	require.True(t, cfg.RecomputeOnBackdate)
	require.Equal(t, "USD", cfg.Company.Currency)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without dsn", env: map[string]string{"STORAGE": "postgres"}},
		{name: "unknown storage", env: map[string]string{"STORAGE": "sqlite"}},
		{name: "non-positive pod size", env: map[string]string{"POD_MAX_BYTES": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}
