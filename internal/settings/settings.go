// Package settings loads process-level configuration from the environment.
package settings

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Settings holds the knobs that are not part of a collection configuration.
type Settings struct {
	// MinifyJSON writes compact JSON instead of indented output.
	MinifyJSON bool `env:"MEASUREMENTS_MINIFY_JSON" envDefault:"false"`

	// S3 output (targets of the form s3://bucket/key)
	S3Region          string `env:"MEASUREMENTS_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"MEASUREMENTS_S3_ENDPOINT"` // optional, e.g. MinIO
	S3PathStyle       bool   `env:"MEASUREMENTS_S3_PATH_STYLE" envDefault:"false"`
	S3AccessKeyID     string `env:"MEASUREMENTS_S3_ACCESS_KEY_ID"`     // optional, falls back to the default chain
	S3SecretAccessKey string `env:"MEASUREMENTS_S3_SECRET_ACCESS_KEY"` // optional
	S3SessionToken    string `env:"MEASUREMENTS_S3_SESSION_TOKEN"`     // optional
}

// Load reads Settings from the process environment.
func Load() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("load settings from environment: %w", err)
	}
	return s, nil
}

// LoadFrom reads Settings from the given variables instead of the process
// environment.
func LoadFrom(vars map[string]string) (Settings, error) {
	var s Settings
	if err := env.Parse(&s, env.Options{Environment: vars}); err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}
