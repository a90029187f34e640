package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseConfig() *Config {
	return &Config{
		Env:            "development",
		Port:           "8375",
		JWTSecret:      "secure-secret-at-least-32-chars-long",
		StorageBackend: "memory",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid development config", func(_ *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown storage backend", func(c *Config) { c.StorageBackend = "dynamo" }, true},
		{"redis backend", func(c *Config) { c.StorageBackend = "redis" }, false},
		{"sqlite backend", func(c *Config) { c.StorageBackend = "sqlite" }, false},
		{"upload url without preset", func(c *Config) { c.UploadURL = "https://upload.example/v1" }, true},
		{"upload url with preset", func(c *Config) {
			c.UploadURL = "https://upload.example/v1"
			c.UploadPreset = "unsigned"
		}, false},
		{"production with default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "your-secret-key-change-in-production"
		}, true},
		{"production with short secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "short"
		}, true},
		{"production with strong secret", func(c *Config) { c.Env = "production" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
