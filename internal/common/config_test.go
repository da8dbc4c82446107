package common

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary config file
	tempFile, err := os.CreateTemp("", "config.env")
	if err != nil {
		t.Fatalf("Failed to create temporary config file: %v", err)
	}
	defer os.Remove(tempFile.Name())

	configData := []byte(`
PORT=:8080
ENVIRONMENT=development
VERSION=1.2.0
POSTGRES_HOST=localhost
POSTGRES_USER=testuser
POSTGRES_PASSWORD=testpassword
POSTGRES_DB=testdb
MAIL_HOST=smtp.example.com
MAIL_PORT=587
MAIL_SENDER=sender@example.com
MODERATOR_EMAIL=moderator@example.com
RABBITMQ_HOST=rabbitmq.example.com
CONTENT_DIR=content/blog
CACHE_BACKEND=redis
CAPTCHA_TIMEOUT=3s
COMMENT_RATE_LIMIT=3
COMMENT_RATE_WINDOW=10m
MODERATION_BANNED_TERMS=casino, Crypto Giveaway ,
TRUSTED_ORIGINS=http://localhost:3000,https://www.narkinsbuilders.com
TRUSTED_PROXIES=10.0.0.0/8,127.0.0.1
`)
	if _, err := tempFile.Write(configData); err != nil {
		t.Fatalf("Failed to write test configuration to temporary file: %v", err)
	}

	config, err := LoadConfig(tempFile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	assert.Equal(t, ":8080", config.Port)
	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "1.2.0", config.Version)
	assert.Equal(t, "localhost", config.DB.Host)
	assert.Equal(t, "5432", config.DB.Port)
	assert.Equal(t, "testuser", config.DB.User)
	assert.Equal(t, "testdb", config.DB.Name)
	assert.Equal(t, 587, config.Mail.Port)
	assert.Equal(t, "moderator@example.com", config.Mail.Moderator)
	assert.Equal(t, "rabbitmq.example.com", config.RabbitMQ.Host)
	assert.Equal(t, "content/blog", config.Content.Dir)
	assert.Equal(t, ".cache/blog", config.Content.CacheDir)
	assert.Equal(t, "redis", config.Content.CacheBackend)
	assert.Equal(t, 3*time.Second, config.Captcha.Timeout)
	assert.Equal(t, 3, config.Moderation.RateLimit)
	assert.Equal(t, 10*time.Minute, config.Moderation.RateWindow)
	assert.Equal(t, 70, config.Moderation.ApproveThreshold)
	assert.Equal(t, []string{"casino", "crypto giveaway"}, config.Moderation.BannedTermList())
	assert.Equal(t, []string{"http://localhost:3000", "https://www.narkinsbuilders.com"}, config.TrustedOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, config.TrustedProxies)
	assert.True(t, config.Limiter.Enabled)
	assert.Equal(t, 20, config.Limiter.Burst)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("does-not-exist.env")
	assert.Error(t, err)
}
