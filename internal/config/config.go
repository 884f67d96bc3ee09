package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Links     LinksConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host         string
	Port         string
	PoolSize     int
	MinIdleConns int
}

// LinksConfig параметры жизненного цикла ссылок.
// Валидируются один раз при старте, а не на каждый запрос.
type LinksConfig struct {
	ShortCodeLength   int
	DefaultExpiryDays int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.BaseURL = viper.GetString("BASE_URL")
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")
	cfg.Redis.PoolSize = viper.GetInt("REDIS_POOL_SIZE")
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 100
	}
	cfg.Redis.MinIdleConns = viper.GetInt("REDIS_MIN_IDLE_CONNS")
	if cfg.Redis.MinIdleConns == 0 {
		cfg.Redis.MinIdleConns = 10
	}

	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}

	cfg.Links.ShortCodeLength = viper.GetInt("SHORT_CODE_LENGTH")
	if cfg.Links.ShortCodeLength == 0 {
		cfg.Links.ShortCodeLength = 6
	}
	cfg.Links.DefaultExpiryDays = viper.GetInt("DEFAULT_EXPIRY_DAYS")
	if cfg.Links.DefaultExpiryDays == 0 {
		cfg.Links.DefaultExpiryDays = 1
	}

	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	if err := cfg.Links.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет параметры ссылок на валидность
func (c LinksConfig) Validate() error {
	if c.ShortCodeLength <= 0 {
		return fmt.Errorf("SHORT_CODE_LENGTH must be a positive integer, got %d", c.ShortCodeLength)
	}
	// Длина кода ограничена длиной строкового представления UUID
	if c.ShortCodeLength > 32 {
		return fmt.Errorf("SHORT_CODE_LENGTH must be at most 32, got %d", c.ShortCodeLength)
	}
	if c.DefaultExpiryDays <= 0 {
		return fmt.Errorf("DEFAULT_EXPIRY_DAYS must be a positive integer, got %d", c.DefaultExpiryDays)
	}
	return nil
}
