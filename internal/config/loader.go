package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level configuration
type Config struct {
	Profiles map[string]Profile `yaml:"profiles" json:"profiles"`
}

// Profile holds request defaults applied before command-line flags
type Profile struct {
	BaseURL         string            `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Accept          string            `yaml:"accept,omitempty" json:"accept,omitempty"`
	Format          string            `yaml:"format,omitempty" json:"format,omitempty"`
	Timeout         string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	FollowRedirects *bool             `yaml:"followRedirects,omitempty" json:"followRedirects,omitempty"`
	Auth            *Auth             `yaml:"auth,omitempty" json:"auth,omitempty"`
	Vars            map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// Auth represents profile credentials
type Auth struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Scheme   string `yaml:"scheme,omitempty" json:"scheme,omitempty"`
}

// Valid body formats and auth schemes
var (
	Formats     = []string{"json", "form", "multipart"}
	AuthSchemes = []string{"basic", "digest"}
)

// LoadConfig loads a configuration file. YAML and JSON are both accepted.
func LoadConfig(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML (a superset of JSON)
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if errs := ValidateConfig(&config); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config file %s: %w", filepath.Base(path), errs[0])
	}

	return &config, nil
}

// GetProfile returns the named profile
func (c *Config) GetProfile(name string) (Profile, error) {
	profile, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile not found: %s", name)
	}
	return profile, nil
}

// TimeoutDuration parses the profile timeout. An empty timeout is zero.
func (p Profile) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	return parseDurationString(p.Timeout)
}

// ResolveURL expands variables in rawURL and joins relative URLs to the
// profile's base URL. Absolute URLs are returned unchanged.
func (p Profile) ResolveURL(rawURL string) string {
	rawURL = ProcessEnvironment(rawURL, p.Vars)
	if p.BaseURL == "" || strings.Contains(rawURL, "://") {
		return rawURL
	}
	base := ProcessEnvironment(p.BaseURL, p.Vars)
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rawURL, "/")
}

// ResolvedHeaders returns the profile headers with variables expanded
func (p Profile) ResolvedHeaders() map[string]string {
	return ProcessEnvironmentInMap(p.Headers, p.Vars)
}

// parseDurationString parses durations such as "500ms", "5s" or a bare
// number of seconds
func parseDurationString(duration string) (time.Duration, error) {
	duration = strings.TrimSpace(duration)
	if duration == "" {
		return 0, fmt.Errorf("duration cannot be empty")
	}

	d, err := time.ParseDuration(duration)
	if err != nil {
		seconds, parseErr := strconv.ParseFloat(duration, 64)
		if parseErr != nil {
			return 0, fmt.Errorf("invalid duration format '%s': %w", duration, err)
		}
		d = time.Duration(seconds * float64(time.Second))
	}

	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", duration)
	}

	return d, nil
}

// stringInSlice checks if a string is in a slice
func stringInSlice(str string, slice []string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// ProcessEnvironment replaces {{name}} placeholders with values from env
func ProcessEnvironment(input string, env map[string]string) string {
	result := input

	for key, value := range env {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}

	return result
}

// ProcessEnvironmentInMap processes placeholders in every map value
func ProcessEnvironmentInMap(input map[string]string, env map[string]string) map[string]string {
	result := make(map[string]string)

	for key, value := range input {
		result[key] = ProcessEnvironment(value, env)
	}

	return result
}
