package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps: load labouractor.yaml, expand environment variables, merge
// built-in defaults with user overrides, resolve secrets from the
// environment variables named in config, validate, return.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"allowed_ws_origins", stats.AllowedWSOrigins,
		"max_retry_attempts", stats.MaxRetryAttempts,
		"batch_size", stats.BatchSize)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadLabourActorYAML()
	if err != nil {
		return nil, NewLoadError("labouractor.yaml", err)
	}

	system := builtinSystemDefaults()
	if yamlCfg.System != nil {
		if err := mergo.Merge(&system, yamlCfg.System, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge system config: %w", err)
		}
	}

	internalAuthSecretEnv := "INTERNAL_AUTH_SECRET"
	internalUserPrefix := DefaultInternalUserPrefix
	if system.InternalAuth != nil {
		if system.InternalAuth.SharedSecretEnv != "" {
			internalAuthSecretEnv = system.InternalAuth.SharedSecretEnv
		}
		if system.InternalAuth.UserPrefix != "" {
			internalUserPrefix = system.InternalAuth.UserPrefix
		}
	}

	webhookSecretEnv := "WEBHOOK_SECRET"
	webhookTolerance := DefaultWebhookToleranceSeconds
	if system.Webhook != nil {
		if system.Webhook.SecretEnv != "" {
			webhookSecretEnv = system.Webhook.SecretEnv
		}
		if system.Webhook.ToleranceSeconds != 0 {
			webhookTolerance = system.Webhook.ToleranceSeconds
		}
	}

	thresholds := resolvePhaseThresholds(system.PhaseThresholds)

	pm := system.ProcessManager
	if pm == nil {
		pm = &ProcessManagerYAMLConfig{
			MaxRetryAttempts:       DefaultMaxRetryAttempts,
			MaxProjectorErrorCount: DefaultMaxProjectorErrorCount,
			BatchSize:              DefaultBatchSize,
		}
	}

	cooldown := system.AnnouncementCooldownSeconds
	if cooldown == 0 {
		cooldown = DefaultAnnouncementCooldownSeconds
	}

	httpPort := system.HTTPPort
	if httpPort == "" {
		httpPort = DefaultHTTPPort
	}

	return &Config{
		configDir:                   configDir,
		HTTPPort:                    httpPort,
		AllowedWSOrigins:            system.AllowedWSOrigins,
		InternalAuthSecret:          os.Getenv(internalAuthSecretEnv),
		InternalUserPrefix:          internalUserPrefix,
		WebhookSecret:               os.Getenv(webhookSecretEnv),
		WebhookTolerance:            time.Duration(webhookTolerance) * time.Second,
		PhaseThresholds:             thresholds,
		AnnouncementCooldownSeconds: cooldown,
		MaxRetryAttempts:            pm.MaxRetryAttempts,
		MaxProjectorErrorCount:      pm.MaxProjectorErrorCount,
		BatchSize:                   pm.BatchSize,
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadLabourActorYAML() (*YAMLConfig, error) {
	var cfg YAMLConfig
	if err := l.loadYAML("labouractor.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePhaseThresholds converts YAML overrides into domain.PhaseThresholds,
// falling back to domain.DefaultPhaseThresholds field by field.
func resolvePhaseThresholds(yamlThresholds *PhaseThresholdsYAMLConfig) domain.PhaseThresholds {
	t := domain.DefaultPhaseThresholds
	if yamlThresholds == nil {
		return t
	}
	if yamlThresholds.WindowSize != 0 {
		t.WindowSize = yamlThresholds.WindowSize
	}
	if yamlThresholds.ActiveDurationSeconds != 0 {
		t.ActiveDuration = yamlThresholds.ActiveDurationSeconds
	}
	if yamlThresholds.ActiveIntensity != 0 {
		t.ActiveIntensity = yamlThresholds.ActiveIntensity
	}
	if yamlThresholds.TransitionDurationSeconds != 0 {
		t.TransitionDuration = yamlThresholds.TransitionDurationSeconds
	}
	if yamlThresholds.TransitionIntensity != 0 {
		t.TransitionIntensity = yamlThresholds.TransitionIntensity
	}
	return t
}
