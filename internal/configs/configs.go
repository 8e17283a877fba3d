/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures the client by reading operating system environment variables,
including the running environment, the backend base URL, the streaming
endpoint, and the token cookie location.
*/
package configs

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// AppConfig contains all configuration parameters required for the client to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Settings
	Environment string

	// Backend Endpoints
	APIBaseURL string
	WSURL      string

	// Token Persistence
	TokenCookieFile string
}

// LoadConfig reads and parses the client configuration from environment variables.
// It provides default values for each configuration item and performs necessary validation.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// --- Backend Endpoints ---
	cfg.APIBaseURL = os.Getenv("API_BASE_URL")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	if err := validateURL(cfg.APIBaseURL, "API_BASE_URL", "http", "https"); err != nil {
		return nil, err
	}

	cfg.WSURL = os.Getenv("WS_URL")
	if cfg.WSURL == "" {
		cfg.WSURL = "ws://localhost:8080/connect"
	}
	if err := validateURL(cfg.WSURL, "WS_URL", "ws", "wss"); err != nil {
		return nil, err
	}

	// --- Token Persistence ---
	cfg.TokenCookieFile = os.Getenv("TOKEN_COOKIE_FILE")
	if cfg.TokenCookieFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory for default TOKEN_COOKIE_FILE: %w", err)
		}
		cfg.TokenCookieFile = filepath.Join(home, ".ttlmoa", "cookie.json")
	}

	return cfg, nil
}

// validateURL checks that the value parses as a URL with one of the allowed schemes.
func validateURL(value, name string, schemes ...string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s environment variable: %w", name, err)
	}

	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}

	return fmt.Errorf("%s must use one of the schemes %v, got %q", name, schemes, parsed.Scheme)
}
