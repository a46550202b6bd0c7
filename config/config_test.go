package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/config"
)

var keys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_HOST", "HTTP_PORT", "DB_PATH",
	"REFERENCE_DATA_PATH", "PAYROLL_WORKERS", "CORS_ORIGINS",
}

// clearEnv blanks every key for the test; viper treats empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "payroll.db", cfg.DB.Path)
	assert.Equal(t, "reference.yaml", cfg.Reference.Path)
	assert.Equal(t, 8, cfg.Payroll.Workers)
	assert.False(t, cfg.App.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PAYROLL_WORKERS", "2")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 2, cfg.Payroll.Workers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
}

func TestLoad_DotEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DB_PATH=/tmp/from-file.db\nHTTP_PORT=7000\n"), 0o600))
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-file.db", cfg.DB.Path)
	assert.Equal(t, 7001, cfg.HTTP.Port)
}

func TestLoad_MalformedDotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("DB-PATH=/tmp/x.db\n"), 0o600))

	_, err := config.Load(path)
	assert.ErrorContains(t, err, "bad.env")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown environment", "APP_ENV", "qa"},
		{"port out of range", "HTTP_PORT", "70000"},
		{"no workers", "PAYROLL_WORKERS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
