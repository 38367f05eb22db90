package config

import (
	"fmt"
	"strings"

	"tonegrid/internal/reading"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if _, err := reading.ParseLayout(c.Input.Layout); err != nil {
		errs = append(errs, ValidationError{
			Field:   "input.layout",
			Message: err.Error(),
		})
	}

	if c.Model.BasePath == "" {
		errs = append(errs, ValidationError{
			Field:   "model.base_path",
			Message: "required",
		})
	}
	if c.Model.UserDataDir == "" {
		errs = append(errs, ValidationError{
			Field:   "model.user_data_dir",
			Message: "required",
		})
	}

	if c.Learning.Capacity <= 0 {
		errs = append(errs, ValidationError{
			Field:   "learning.capacity",
			Message: "must be positive",
		})
	}
	if c.Learning.HalfLifeSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "learning.half_life_sec",
			Message: "must be positive",
		})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", c.Logging.Format),
		})
	}
	switch c.Logging.Output {
	case "stdout", "stderr", "file":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", c.Logging.Output),
		})
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "required when output is \"file\"",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
