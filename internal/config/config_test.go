package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendDynamo, cfg.Store.Backend)
	require.Equal(t, "ActivityTypeIndex", cfg.Dynamo.ActivityTypeIndex)
	require.Equal(t, 12*time.Hour, cfg.AutoClose.MaxOpen)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: postgres
  page_size: 25
postgres:
  url: postgres://file
autoclose:
  max_open: 8h
`), 0o600))

	t.Setenv("ACTIVITIES_POSTGRES_URL", "postgres://env")
	t.Setenv("ACTIVITIES_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, cfg.Store.Backend)
	require.Equal(t, 25, cfg.Store.PageSize)
	require.Equal(t, "postgres://env", cfg.Postgres.URL)
	require.Equal(t, 8*time.Hour, cfg.AutoClose.MaxOpen)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:     StoreConfig{Backend: BackendMemory},
			AutoClose: AutoCloseConfig{Mode: "direct", Interval: time.Minute},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Store.Backend = "cassandra"
	require.ErrorContains(t, cfg.Validate(), "store.backend")

	cfg = valid()
	cfg.Store.Backend = BackendDynamo
	require.ErrorContains(t, cfg.Validate(), "dynamo.table")

	cfg = valid()
	cfg.Auth = AuthConfig{Enabled: true, JWTSecret: "short"}
	require.ErrorContains(t, cfg.Validate(), "jwt_secret")

	cfg = valid()
	cfg.Kafka.Enabled = true
	require.ErrorContains(t, cfg.Validate(), "kafka.brokers")

	cfg = valid()
	cfg.AutoClose.Mode = "email"
	require.ErrorContains(t, cfg.Validate(), "autoclose.mode")

	cfg = valid()
	cfg.AutoClose.Interval = 0
	require.ErrorContains(t, cfg.Validate(), "autoclose.interval")
}
