package config

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Validate ignore patterns are well-formed globs
	for i, pattern := range cfg.Scan.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("scan.ignore[%d]: invalid glob pattern %q", i, pattern)
		}
	}

	// A rate cap with no burst allowance would never admit a rebuild
	if cfg.Watch.RebuildsPerSecond > 0 && cfg.Watch.Burst == 0 {
		return fmt.Errorf("watch: burst must be at least 1 when rebuilds_per_second is set")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
