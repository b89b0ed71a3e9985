package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("S3_BUCKET_NAME", "")
	t.Setenv("S3_ENDPOINT", "")
	t.Setenv("S3_ACCESS_KEY_ID", "")
	t.Setenv("S3_SECRET_ACCESS_KEY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal("development", cfg.Environment)
	assert.Equal(8080, cfg.Port)
	assert.NotEmpty(cfg.JWTSecret)
	assert.NotEmpty(cfg.DatabaseDSN)
	assert.NotEmpty(cfg.S3Endpoint)
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "not-a-number")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigParsesOrigins(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}
