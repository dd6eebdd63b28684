package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for all environment overrides.
const EnvPrefix = "PREPORT"

// Env carries settings that belong to the environment rather than the
// pipeline file: credentials, metrics wiring, log level. Flags beat env,
// env beats defaults.
type Env struct {
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	MetricsBackend string   `envconfig:"METRICS_BACKEND" default:"none"`
	PushgatewayURL string   `envconfig:"PUSHGATEWAY_URL" default:"http://localhost:9091"`
	DatadogTags    []string `envconfig:"DATADOG_TAGS"`
	StorageDSN     string   `envconfig:"STORAGE_DSN"`
}

// LoadEnv reads PREPORT_* variables into an Env.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}
