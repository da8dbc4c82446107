package common

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`
	Version     string `mapstructure:"VERSION"`

	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`
	TrustedOrigins []string `mapstructure:"TRUSTED_ORIGINS"`
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	DB         DBConfig         `mapstructure:",squash"`
	Mail       MailConfig       `mapstructure:",squash"`
	RabbitMQ   RabbitMQConfig   `mapstructure:",squash"`
	Redis      RedisConfig      `mapstructure:",squash"`
	Content    ContentConfig    `mapstructure:",squash"`
	Captcha    CaptchaConfig    `mapstructure:",squash"`
	Moderation ModerationConfig `mapstructure:",squash"`
	Limiter    LimiterConfig    `mapstructure:",squash"`
}

type DBConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     string `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	Name     string `mapstructure:"POSTGRES_DB"`
}

type MailConfig struct {
	Host      string `mapstructure:"MAIL_HOST"`
	Port      int    `mapstructure:"MAIL_PORT"`
	User      string `mapstructure:"MAIL_USER"`
	Password  string `mapstructure:"MAIL_PASSWORD"`
	Sender    string `mapstructure:"MAIL_SENDER"`
	Moderator string `mapstructure:"MODERATOR_EMAIL"`
}

type RabbitMQConfig struct {
	Host     string `mapstructure:"RABBITMQ_HOST"`
	Port     string `mapstructure:"RABBITMQ_PORT"`
	User     string `mapstructure:"RABBITMQ_USER"`
	Password string `mapstructure:"RABBITMQ_PASSWORD"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type ContentConfig struct {
	Dir             string `mapstructure:"CONTENT_DIR"`
	CacheDir        string `mapstructure:"CACHE_DIR"`
	CacheBackend    string `mapstructure:"CACHE_BACKEND"`
	RebuildWorkers  int    `mapstructure:"REBUILD_WORKERS"`
	RebuildSchedule string `mapstructure:"REBUILD_SCHEDULE"`
	Watch           bool   `mapstructure:"WATCH_CONTENT"`
}

type CaptchaConfig struct {
	VerifyURL string        `mapstructure:"CAPTCHA_VERIFY_URL"`
	Secret    string        `mapstructure:"CAPTCHA_SECRET"`
	Timeout   time.Duration `mapstructure:"CAPTCHA_TIMEOUT"`
}

type ModerationConfig struct {
	RateLimit        int           `mapstructure:"COMMENT_RATE_LIMIT"`
	RateWindow       time.Duration `mapstructure:"COMMENT_RATE_WINDOW"`
	ApproveThreshold int           `mapstructure:"MODERATION_APPROVE_THRESHOLD"`
	RejectThreshold  int           `mapstructure:"MODERATION_REJECT_THRESHOLD"`
	BannedTerms      string        `mapstructure:"MODERATION_BANNED_TERMS"`
	MaxLinks         int           `mapstructure:"MODERATION_MAX_LINKS"`
}

// BannedTermList splits the comma separated MODERATION_BANNED_TERMS value.
func (c ModerationConfig) BannedTermList() []string {
	var terms []string
	for _, t := range strings.Split(c.BannedTerms, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			terms = append(terms, strings.ToLower(t))
		}
	}
	return terms
}

type LimiterConfig struct {
	Enabled           bool    `mapstructure:"LIMITER_ENABLED"`
	RequestsPerSecond float64 `mapstructure:"REQUESTS_PER_SECOND"`
	Burst             int     `mapstructure:"REQUESTS_BURST"`
}

var configDefaults = map[string]any{
	"PORT":                         ":4000",
	"ENVIRONMENT":                  "development",
	"VERSION":                      "1.0.0",
	"TLS_CERT_FILE":                "",
	"TLS_KEY_FILE":                 "",
	"TRUSTED_ORIGINS":              "",
	"TRUSTED_PROXIES":              "",
	"POSTGRES_HOST":                "localhost",
	"POSTGRES_PORT":                "5432",
	"POSTGRES_USER":                "",
	"POSTGRES_PASSWORD":            "",
	"POSTGRES_DB":                  "",
	"MAIL_HOST":                    "",
	"MAIL_PORT":                    587,
	"MAIL_USER":                    "",
	"MAIL_PASSWORD":                "",
	"MAIL_SENDER":                  "",
	"MODERATOR_EMAIL":              "",
	"RABBITMQ_HOST":                "localhost",
	"RABBITMQ_PORT":                "5672",
	"RABBITMQ_USER":                "guest",
	"RABBITMQ_PASSWORD":            "guest",
	"REDIS_ADDR":                   "localhost:6379",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"CONTENT_DIR":                  "content/blog",
	"CACHE_DIR":                    ".cache/blog",
	"CACHE_BACKEND":                "file",
	"REBUILD_WORKERS":              0,
	"REBUILD_SCHEDULE":             "@every 30m",
	"WATCH_CONTENT":                false,
	"CAPTCHA_VERIFY_URL":           "https://challenges.cloudflare.com/turnstile/v0/siteverify",
	"CAPTCHA_SECRET":               "",
	"CAPTCHA_TIMEOUT":              "5s",
	"COMMENT_RATE_LIMIT":           5,
	"COMMENT_RATE_WINDOW":          "1h",
	"MODERATION_APPROVE_THRESHOLD": 70,
	"MODERATION_REJECT_THRESHOLD":  20,
	"MODERATION_BANNED_TERMS":      "",
	"MODERATION_MAX_LINKS":         2,
	"LIMITER_ENABLED":              true,
	"REQUESTS_PER_SECOND":          10,
	"REQUESTS_BURST":               20,
}

// LoadConfig reads an env-formatted file at path. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
