/*
Package config loads the service configuration.

PURPOSE:
  Collects every runtime knob of the payroll service in one struct. Values
  come from the process environment, optionally seeded from a .env file.
  Environment variables always win over the file.

KEYS:
  APP_ENV               development | staging | production   (development)
  LOG_LEVEL             trace | debug | info | warn | error  (info)
  HTTP_HOST             listen host                          (0.0.0.0)
  HTTP_PORT             listen port                          (8080)
  DB_PATH               SQLite file, ":memory:" for scratch  (payroll.db)
  REFERENCE_DATA_PATH   tax brackets / withholding YAML      (reference.yaml)
  PAYROLL_WORKERS       parallel run computations            (8)
  CORS_ORIGINS          comma-separated allowed origins      (*)

SEE ALSO:
  - logger/logger.go: Consumes Env and LogLevel
  - cmd/server/main.go: Wires the config into the service
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	DB        DBConfig
	Reference ReferenceConfig
	Payroll   PayrollConfig
}

type AppConfig struct {
	Env      string
	LogLevel string
}

func (c AppConfig) IsProduction() bool { return c.Env == "production" }

type HTTPConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// Addr returns the listen address (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DBConfig struct {
	Path string
}

type ReferenceConfig struct {
	Path string
}

type PayrollConfig struct {
	Workers int
}

var validEnvs = map[string]bool{"development": true, "staging": true, "production": true}

// Load reads envFiles (missing files are ignored, default ".env") into the
// environment and builds the config from it.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      strings.ToLower(v.GetString("APP_ENV")),
			LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
		},
		HTTP: HTTPConfig{
			Host:        v.GetString("HTTP_HOST"),
			Port:        v.GetInt("HTTP_PORT"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		DB:        DBConfig{Path: v.GetString("DB_PATH")},
		Reference: ReferenceConfig{Path: v.GetString("REFERENCE_DATA_PATH")},
		Payroll:   PayrollConfig{Workers: v.GetInt("PAYROLL_WORKERS")},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DB_PATH", "payroll.db")
	v.SetDefault("REFERENCE_DATA_PATH", "reference.yaml")
	v.SetDefault("PAYROLL_WORKERS", 8)
	v.SetDefault("CORS_ORIGINS", "*")
}

func (c *Config) Validate() error {
	var errs []error
	if !validEnvs[c.App.Env] {
		errs = append(errs, fmt.Errorf("APP_ENV: unknown environment %q", c.App.Env))
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT: %d out of range", c.HTTP.Port))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("DB_PATH: required"))
	}
	if c.Reference.Path == "" {
		errs = append(errs, errors.New("REFERENCE_DATA_PATH: required"))
	}
	if c.Payroll.Workers < 1 {
		errs = append(errs, fmt.Errorf("PAYROLL_WORKERS: must be at least 1, got %d", c.Payroll.Workers))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
