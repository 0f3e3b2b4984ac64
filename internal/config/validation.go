package config

import (
	"fmt"
	"strings"
)

// supportedModels is the allow-list for the configured chat model.
var supportedModels = map[string]bool{
	"gemini-2.0-flash": true,
	"gemini-2.5-flash": true,
}

// Validate checks the configuration and fails fast with a sentinel-wrapped
// error on the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	model := strings.TrimPrefix(c.ModelName, "googleai/")
	if !supportedModels[model] {
		return fmt.Errorf("%w: %q (supported: gemini-2.0-flash, gemini-2.5-flash)", ErrInvalidModelName, c.ModelName)
	}

	switch c.StorageBackend {
	case BackendMemory, BackendFile:
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresHost) == "" {
			return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
		if strings.TrimSpace(c.PostgresDBName) == "" {
			return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
		}
	default:
		return fmt.Errorf("%w: %q (supported: memory, file, postgres)", ErrInvalidStorageBackend, c.StorageBackend)
	}

	return nil
}

// ValidateServe adds the checks that only apply when running the HTTP
// server: the JWT secret must be present and long enough for HS256.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: set OMNI_JWT_SECRET", ErrMissingJWTSecret)
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("%w: need at least %d characters", ErrInvalidJWTSecret, minJWTSecretLength)
	}
	return nil
}
