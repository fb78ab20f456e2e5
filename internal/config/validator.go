package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidateConfig validates the configuration. Errors are ordered by path.
func ValidateConfig(config *Config) []ValidationError {
	var errors []ValidationError

	if len(config.Profiles) == 0 {
		errors = append(errors, ValidationError{
			Path:    "profiles",
			Message: "at least one profile is required",
		})
	}

	for name, profile := range config.Profiles {
		path := fmt.Sprintf("profiles.%s", name)

		if profile.BaseURL != "" && !strings.Contains(profile.BaseURL, "://") {
			errors = append(errors, ValidationError{
				Path:    path + ".baseUrl",
				Message: "baseUrl must be an absolute URL",
			})
		}

		if profile.Format != "" && !stringInSlice(profile.Format, Formats) {
			errors = append(errors, ValidationError{
				Path:    path + ".format",
				Message: fmt.Sprintf("format must be one of: %s", strings.Join(Formats, ", ")),
			})
		}

		if profile.Timeout != "" {
			if _, err := parseDurationString(profile.Timeout); err != nil {
				errors = append(errors, ValidationError{
					Path:    path + ".timeout",
					Message: err.Error(),
				})
			}
		}

		if profile.Auth != nil {
			if profile.Auth.Username == "" {
				errors = append(errors, ValidationError{
					Path:    path + ".auth.username",
					Message: "username is required",
				})
			}
			if profile.Auth.Scheme != "" && !stringInSlice(profile.Auth.Scheme, AuthSchemes) {
				errors = append(errors, ValidationError{
					Path:    path + ".auth.scheme",
					Message: fmt.Sprintf("scheme must be one of: %s", strings.Join(AuthSchemes, ", ")),
				})
			}
		}
	}

	sort.Slice(errors, func(i, j int) bool {
		return errors[i].Path < errors[j].Path
	})

	return errors
}

// GetProfileNames returns the profile names in sorted order
func GetProfileNames(config *Config) []string {
	names := make([]string, 0, len(config.Profiles))
	for name := range config.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
