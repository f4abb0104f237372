package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadConfig_Defaults(t *testing.T) {
	unset(t, "SERVER_PORT", "DB_HOST", "DB_USE_SSL", "JWT_SECRET", "JWT_TTL",
		"BCRYPT_COST", "TASKS_FILE", "EVENTS_BACKEND", "LOG_FORMAT")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.False(t, cfg.Database.UseSSL)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, bcrypt.DefaultCost, cfg.Auth.BcryptCost)
	assert.Equal(t, "tasks.csv", cfg.Tasks.File)
	assert.Empty(t, cfg.Events.Backend)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("JWT_SECRET", "  s3cret ")
	t.Setenv("JWT_TTL", "5m")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("TASKS_FILE", "/tmp/tasks.csv")
	t.Setenv("EVENTS_BACKEND", "RabbitMQ")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 4, cfg.Auth.BcryptCost)
	assert.Equal(t, "/tmp/tasks.csv", cfg.Tasks.File)
	assert.Equal(t, "rabbitmq", cfg.Events.Backend)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("JWT_TTL", "-1m")
	t.Setenv("DB_USE_SSL", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Database.UseSSL)
}

// unset clears keys for the duration of the test. t.Setenv restores the
// previous values on cleanup.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
