package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// Validate checks cfg against its struct tags and the store settings the
// tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	switch cfg.Store.Type {
	case "github":
		owner, name, ok := strings.Cut(cfg.Store.Repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("Config.Store.Repo: expected owner/name, got %q", cfg.Store.Repo)
		}
	case "proxy":
		if err := validate.Var(cfg.Store.ProxyURL, "url"); err != nil {
			return fmt.Errorf("Config.Store.ProxyURL: not a valid URL: %q", cfg.Store.ProxyURL)
		}
	}
	return nil
}

// formatValidationError reports the first failing field with its tag.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
