package config

import (
	"fmt"
	"log/slog"

	domainErrors "archgraph/internal/core/errors"

	"github.com/gobwas/glob"
)

var validRoles = map[string]bool{
	"orchestration":  true,
	"analytics":      true,
	"infrastructure": true,
	"tests":          true,
	"other":          true,
}

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	checks := []func(*Config) error{
		validateVersion,
		validatePaths,
		validateHistory,
		validateTopology,
		validateSemantic,
		validateWatch,
		validateObservability,
		validateLogging,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return domainErrors.Wrap(err, domainErrors.CodeValidationError, "invalid config")
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validatePaths(cfg *Config) error {
	if cfg.Paths.StateDir == "" {
		return fmt.Errorf("paths.state_dir must not be empty")
	}
	if cfg.Paths.SelfMap == "" {
		return fmt.Errorf("paths.self_map must not be empty")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.File == "" {
		return fmt.Errorf("history.file must not be empty")
	}
	if cfg.History.Window < 1 {
		return fmt.Errorf("history.window must be >= 1, got %d", cfg.History.Window)
	}
	return nil
}

func validateTopology(cfg *Config) error {
	if cfg.Topology.Centers < 1 {
		return fmt.Errorf("topology.centers must be >= 1, got %d", cfg.Topology.Centers)
	}
	if cfg.Topology.MaxDepth < 0 {
		return fmt.Errorf("topology.max_depth must be >= 0 (0 disables the cap), got %d", cfg.Topology.MaxDepth)
	}
	if cfg.Topology.MemberLimit < 1 {
		return fmt.Errorf("topology.member_limit must be >= 1, got %d", cfg.Topology.MemberLimit)
	}
	return nil
}

func validateSemantic(cfg *Config) error {
	if cfg.Semantic.ViolationLimit < 1 {
		return fmt.Errorf("semantic.violation_limit must be >= 1, got %d", cfg.Semantic.ViolationLimit)
	}
	for i, o := range cfg.Semantic.Overrides {
		ref := fmt.Sprintf("semantic.overrides[%d]", i)
		if o.Pattern == "" {
			return fmt.Errorf("%s.pattern must not be empty", ref)
		}
		if !validRoles[o.Role] {
			return fmt.Errorf("%s.role %q must be one of: orchestration, analytics, infrastructure, tests, other", ref, o.Role)
		}
		if _, err := glob.Compile(o.Pattern, '/'); err != nil {
			return fmt.Errorf("%s.pattern %q: %w", ref, o.Pattern, err)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MinInterval < 0 {
		return fmt.Errorf("watch.min_interval must not be negative")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0,1], got %v", cfg.Observability.SampleRate)
	}
	if cfg.Observability.Enabled && cfg.Observability.Address == "" {
		return fmt.Errorf("observability.address must not be empty when observability is enabled")
	}
	return nil
}

func validateLogging(cfg *Config) error {
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a logging.level value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %q", level)
}
