package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ConfigError reports a bad or missing configuration value. It is fatal at
// startup and never recovered.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err carries a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

var validate = validator.New()

// validateStruct runs struct-tag validation and converts the first failure
// into a ConfigError naming the offending field.
func validateStruct(prefix string, s any) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return &ConfigError{
				Field: prefix + fe.Namespace(),
				Err:   fmt.Errorf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &ConfigError{Field: prefix, Err: err}
	}
	return nil
}
