package config

// YAMLConfig represents the complete labouractor.yaml file structure.
type YAMLConfig struct {
	System *SystemYAMLConfig `yaml:"system"`
}

// SystemYAMLConfig groups system-wide infrastructure settings: the HTTP/WS
// edge, internal-service auth, webhook verification, phase-progression
// thresholds, and process-manager retry/batch tuning.
type SystemYAMLConfig struct {
	HTTPPort         string              `yaml:"http_port,omitempty"`
	AllowedWSOrigins []string            `yaml:"allowed_ws_origins,omitempty"`
	InternalAuth     *InternalAuthConfig `yaml:"internal_auth,omitempty"`
	Webhook          *WebhookYAMLConfig  `yaml:"webhook,omitempty"`
	PhaseThresholds  *PhaseThresholdsYAMLConfig `yaml:"phase_thresholds,omitempty"`

	AnnouncementCooldownSeconds int                   `yaml:"announcement_cooldown_seconds,omitempty"`
	ProcessManager              *ProcessManagerYAMLConfig `yaml:"process_manager,omitempty"`
}

// InternalAuthConfig configures the X-Service-ID / X-Internal-Auth
// middleware: the shared secret is read from an environment variable named
// by SharedSecretEnv, never written to YAML directly.
type InternalAuthConfig struct {
	SharedSecretEnv string `yaml:"shared_secret_env,omitempty"`
	UserPrefix      string `yaml:"user_prefix,omitempty"`
}

// WebhookYAMLConfig configures the stripe-signature HMAC verifier.
type WebhookYAMLConfig struct {
	SecretEnv        string `yaml:"secret_env,omitempty"`
	ToleranceSeconds int    `yaml:"tolerance_seconds,omitempty"`
}

// PhaseThresholdsYAMLConfig overrides domain.DefaultPhaseThresholds.
type PhaseThresholdsYAMLConfig struct {
	WindowSize            int     `yaml:"window_size,omitempty"`
	ActiveDurationSeconds float64 `yaml:"active_duration_seconds,omitempty"`
	ActiveIntensity       float64 `yaml:"active_intensity,omitempty"`
	TransitionDurationSeconds float64 `yaml:"transition_duration_seconds,omitempty"`
	TransitionIntensity   float64 `yaml:"transition_intensity,omitempty"`
}

// ProcessManagerYAMLConfig tunes the process manager's retry and batch
// behavior.
type ProcessManagerYAMLConfig struct {
	MaxRetryAttempts       int `yaml:"max_retry_attempts,omitempty"`
	MaxProjectorErrorCount int `yaml:"max_projector_error_count,omitempty"`
	BatchSize              int `yaml:"batch_size,omitempty"`
}
