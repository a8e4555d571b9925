package config

const (
	// DefaultHTTPPort is used when neither YAML nor HTTP_PORT sets one.
	DefaultHTTPPort = "8080"

	// DefaultInternalUserPrefix marks a principal's user_id as Internal even
	// when it arrived over the normal bearer-token path.
	DefaultInternalUserPrefix = "svc_"

	// DefaultWebhookToleranceSeconds bounds how old (or future-dated) a
	// signed webhook timestamp may be.
	DefaultWebhookToleranceSeconds = 300

	// DefaultAnnouncementCooldownSeconds is the minimum gap between
	// user-posted announcements.
	DefaultAnnouncementCooldownSeconds = 300

	// DefaultMaxRetryAttempts bounds dispatch attempts per pending effect.
	DefaultMaxRetryAttempts = 6

	// DefaultMaxProjectorErrorCount is the error budget before a faulted
	// projector is skipped.
	DefaultMaxProjectorErrorCount = 5

	// DefaultBatchSize caps every events_since fetch.
	DefaultBatchSize = 10000
)

// builtinSystemDefaults returns the built-in system defaults applied before
// any YAML override.
func builtinSystemDefaults() SystemYAMLConfig {
	return SystemYAMLConfig{
		HTTPPort:                    DefaultHTTPPort,
		AnnouncementCooldownSeconds: DefaultAnnouncementCooldownSeconds,
		InternalAuth: &InternalAuthConfig{
			SharedSecretEnv: "INTERNAL_AUTH_SECRET",
			UserPrefix:      DefaultInternalUserPrefix,
		},
		Webhook: &WebhookYAMLConfig{
			SecretEnv:        "WEBHOOK_SECRET",
			ToleranceSeconds: DefaultWebhookToleranceSeconds,
		},
		PhaseThresholds: &PhaseThresholdsYAMLConfig{
			WindowSize:                4,
			ActiveDurationSeconds:     60,
			ActiveIntensity:           6,
			TransitionDurationSeconds: 90,
			TransitionIntensity:       8,
		},
		ProcessManager: &ProcessManagerYAMLConfig{
			MaxRetryAttempts:       DefaultMaxRetryAttempts,
			MaxProjectorErrorCount: DefaultMaxProjectorErrorCount,
			BatchSize:              DefaultBatchSize,
		},
	}
}
