package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsRunDry(t *testing.T) {
	cfg, err := Load(nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, "EU", cfg.Warehouse.Region)
	assert.Equal(t, time.Minute, cfg.Maintainer.Interval)
	assert.Equal(t, "schemas/", cfg.Registry.Prefix)
	assert.True(t, cfg.DryRun(), "maintainer side effects are off unless enabled")
}

func TestEnvironmentOverrides(t *testing.T) {
	cfg, err := Load(nil, env(map[string]string{
		"DATABASE_URL":        "postgres://u:p@db:5432/metadata",
		"SCHEMA_BUCKET_NAME":  "schemas-bucket",
		"BIGQUERY_REGION":     "US",
		"WAREHOUSE_PROJECT":   "gametuner-warehouse",
		"RUN_MAINTAINER":      "true",
		"JSON_LOGS":           "1",
		"METADATA_ADDR":       ":9090",
		"MAINTAINER_INTERVAL": "5m",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/metadata", cfg.DatabaseURL)
	assert.Equal(t, "schemas-bucket", cfg.Registry.Bucket)
	assert.Equal(t, "US", cfg.Warehouse.Region)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Maintainer.Interval)
	assert.True(t, cfg.Log.JSON)
	assert.False(t, cfg.DryRun())
}

func TestFileThenEnvThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
log:
  level: debug
warehouse:
  project: from-file
  region: EU
registry:
  bucket: file-bucket
maintainer:
  run: true
  interval: 30s
`), 0o600))

	fs := pflag.NewFlagSet("metadata", pflag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--addr", ":7100"}))

	cfg, err := Load(flags, env(map[string]string{"WAREHOUSE_PROJECT": "from-env", "METADATA_ADDR": ":7050"}))
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.Addr)
	assert.Equal(t, "from-env", cfg.Warehouse.Project)
	assert.Equal(t, "file-bucket", cfg.Registry.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Maintainer.Interval)
	assert.False(t, cfg.DryRun())
}

func TestValidateRequiresCollaboratorsWhenRunning(t *testing.T) {
	_, err := Load(nil, env(map[string]string{"RUN_MAINTAINER": "true"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse.project")
	assert.Contains(t, err.Error(), "registry.bucket")

	_, err = Load(nil, env(map[string]string{"RUN_MAINTAINER": "true", "DRY_RUN": "true"}))
	assert.NoError(t, err)

	_, err = Load(nil, env(map[string]string{"RUN_MAINTAINER": "yes please"}))
	assert.Error(t, err)

	_, err = Load(nil, env(map[string]string{"LOG_LEVEL": "loud"}))
	assert.Error(t, err)
}
