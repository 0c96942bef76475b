package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/file-broker/pkg/filebroker/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, config.StrategyPlaceholder, cfg.Strategy)
	assert.Equal(t, config.StorageMemory, cfg.StorageType)
	assert.Equal(t, "file-broker", cfg.Bucket)
}

func TestLoadWithOption(t *testing.T) {
	cfg, err := config.Load(func(c *config.ServerConfig) error {
		c.Strategy = config.StrategyVersioned
		c.Bucket = "custom-bucket"
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, config.StrategyVersioned, cfg.Strategy)
	assert.Equal(t, "custom-bucket", cfg.Bucket)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.ServerConfig)
	}{
		{"EmptyPort", func(c *config.ServerConfig) { c.Port = "" }},
		{"UnknownStrategy", func(c *config.ServerConfig) { c.Strategy = "copy-on-write" }},
		{"UnknownStorageType", func(c *config.ServerConfig) { c.StorageType = "postgres" }},
		{"EmptyBucket", func(c *config.ServerConfig) { c.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(func(c *config.ServerConfig) error {
				tt.mutate(c)
				return nil
			})
			assert.Error(t, err)
		})
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BROKER_STRATEGY", "versioned")
	t.Setenv("STORAGE_BUCKET", "env-bucket")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_USE_PATH_STYLE", "true")

	cfg, err := config.Load(config.WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, config.StrategyVersioned, cfg.Strategy)
	assert.Equal(t, "env-bucket", cfg.Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
	assert.True(t, cfg.S3.UsePathStyle)

	// Unset variables leave the defaults in place.
	assert.Equal(t, config.StorageMemory, cfg.StorageType)
}

func TestBuildService(t *testing.T) {
	for _, strategy := range []string{config.StrategyPlaceholder, config.StrategyVersioned} {
		t.Run(strategy, func(t *testing.T) {
			cfg, err := config.Load(func(c *config.ServerConfig) error {
				c.Strategy = strategy
				return nil
			})
			require.NoError(t, err)

			svc, err := cfg.BuildService(context.Background())
			require.NoError(t, err)
			require.NotNil(t, svc)
		})
	}
}
