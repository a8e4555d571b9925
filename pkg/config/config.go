// Package config loads labour-actor's configuration: labouractor.yaml
// parsed with gopkg.in/yaml.v3, environment variable expansion, built-in
// defaults merged with user overrides via dario.cat/mergo, and secrets
// resolved from environment variables named in the file.
package config

import (
	"time"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// Config is the resolved, validated configuration used throughout the
// service. It is the primary object returned by Initialize.
type Config struct {
	configDir string

	HTTPPort         string
	AllowedWSOrigins []string

	InternalAuthSecret string
	InternalUserPrefix string

	WebhookSecret    string
	WebhookTolerance time.Duration

	PhaseThresholds             domain.PhaseThresholds
	AnnouncementCooldownSeconds int

	MaxRetryAttempts       int
	MaxProjectorErrorCount int
	BatchSize              int
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Stats summarizes the resolved configuration for startup logging.
type Stats struct {
	AllowedWSOrigins int
	MaxRetryAttempts int
	BatchSize        int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() Stats {
	return Stats{
		AllowedWSOrigins: len(c.AllowedWSOrigins),
		MaxRetryAttempts: c.MaxRetryAttempts,
		BatchSize:        c.BatchSize,
	}
}
