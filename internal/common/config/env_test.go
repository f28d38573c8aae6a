package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"API_BASE_URL", "ENVIRONMENT", "LOG_LEVEL", "REGION", "AWS_REGION", "AWS_LAMBDA_FUNCTION_NAME",
		"STORE_BACKEND", "SQLITE_PATH", "PROFILE_ID", "DYNAMODB_TABLE_NAME", "TOKEN_SOURCE", "ACCESS_TOKEN",
		"TOKEN_SECRET_ID", "TOKEN_CACHE", "HTTP_TIMEOUT", "SYNC_INTERVAL", "LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "https://bank.example.com")

	cfg, err := LoadFromEnv()

	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "./data/pocketbank.db", cfg.SQLitePath)
	assert.Equal(t, "ap-northeast-1", cfg.AWSRegion)
	assert.Equal(t, TokenSourceEnv, cfg.TokenSource)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "default", cfg.ProfileID)
	assert.False(t, cfg.IsProd())
	assert.False(t, cfg.IsLambda())
}

func TestLoadFromEnvLambda(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "https://bank.example.com")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "syncer")
	t.Setenv("REGION", "eu")

	cfg, err := LoadFromEnv()

	require.NoError(t, err)
	assert.True(t, cfg.IsLambda())
	assert.Equal(t, "/tmp/pocketbank.db", cfg.SQLitePath)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
}

func TestLoadFromEnvReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "dynamodb")
	t.Setenv("TOKEN_SOURCE", "secretsmanager")
	t.Setenv("HTTP_TIMEOUT", "soon")

	_, err := LoadFromEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_BASE_URL")
	assert.Contains(t, err.Error(), "DYNAMODB_TABLE_NAME")
	assert.Contains(t, err.Error(), "TOKEN_SECRET_ID")
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
}

func TestValidateUnknownValues(t *testing.T) {
	cfg := &Config{
		APIBaseURL:   "https://bank.example.com",
		StoreBackend: "postgres",
		TokenSource:  "keychain",
		HTTPTimeout:  time.Second,
		SyncInterval: time.Minute,
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.Contains(t, err.Error(), "keychain")
}
