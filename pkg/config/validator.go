package config

import (
	"fmt"
	"strconv"
)

// Validator validates configuration comprehensively with clear error
// messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation, fail-fast.
func (v *Validator) ValidateAll() error {
	if err := v.validateHTTPPort(); err != nil {
		return fmt.Errorf("http port validation failed: %w", err)
	}
	if err := v.validatePhaseThresholds(); err != nil {
		return fmt.Errorf("phase threshold validation failed: %w", err)
	}
	if err := v.validateProcessManager(); err != nil {
		return fmt.Errorf("process manager validation failed: %w", err)
	}
	if err := v.validateSecrets(); err != nil {
		return fmt.Errorf("secret validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateHTTPPort() error {
	port := v.cfg.HTTPPort
	if port == "" {
		return NewValidationError("http_port", ErrMissingRequiredField)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return NewValidationError("http_port", fmt.Errorf("%w: %s", ErrInvalidValue, port))
	}
	return nil
}

func (v *Validator) validatePhaseThresholds() error {
	t := v.cfg.PhaseThresholds
	if t.WindowSize < 1 {
		return NewValidationError("phase_thresholds.window_size", fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, t.WindowSize))
	}
	if t.TransitionDuration <= t.ActiveDuration {
		return NewValidationError("phase_thresholds.transition_duration_seconds",
			fmt.Errorf("%w: transition duration (%v) must exceed active duration (%v)", ErrInvalidValue, t.TransitionDuration, t.ActiveDuration))
	}
	if t.TransitionIntensity <= t.ActiveIntensity {
		return NewValidationError("phase_thresholds.transition_intensity",
			fmt.Errorf("%w: transition intensity (%v) must exceed active intensity (%v)", ErrInvalidValue, t.TransitionIntensity, t.ActiveIntensity))
	}
	return nil
}

func (v *Validator) validateProcessManager() error {
	if v.cfg.MaxRetryAttempts < 1 {
		return NewValidationError("process_manager.max_retry_attempts", fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, v.cfg.MaxRetryAttempts))
	}
	if v.cfg.MaxProjectorErrorCount < 1 {
		return NewValidationError("process_manager.max_projector_error_count", fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, v.cfg.MaxProjectorErrorCount))
	}
	if v.cfg.BatchSize < 1 {
		return NewValidationError("process_manager.batch_size", fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, v.cfg.BatchSize))
	}
	return nil
}

// validateSecrets rejects outright nonsensical values only. A missing
// secret is a startup misconfiguration the operator must fix, surfaced by
// the loader's logging rather than failed here.
func (v *Validator) validateSecrets() error {
	if v.cfg.WebhookTolerance <= 0 {
		return NewValidationError("webhook.tolerance_seconds", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if v.cfg.InternalUserPrefix == "" {
		return NewValidationError("internal_auth.user_prefix", ErrMissingRequiredField)
	}
	return nil
}
