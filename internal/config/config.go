package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL        string        `mapstructure:"API_BASE_URL"`
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	APITimeout        time.Duration `mapstructure:"API_TIMEOUT"`
	APIRateLimitRPS   float64       `mapstructure:"API_RATE_LIMIT_RPS"`
	APIRateLimitBurst int           `mapstructure:"API_RATE_LIMIT_BURST"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit         string        `mapstructure:"BODY_LIMIT"`
	CORSOrigins       []string      `mapstructure:"-"`
}

var keys = []string{
	"API_BASE_URL",
	"PORT",
	"ENV",
	"LOG_LEVEL",
	"API_TIMEOUT",
	"API_RATE_LIMIT_RPS",
	"API_RATE_LIMIT_BURST",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT",
	"BODY_LIMIT",
	"CORS_ORIGINS",
}

// Load reads the configuration from the environment and an optional .env
// file in the working directory. API_BASE_URL is required.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "3001")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("API_RATE_LIMIT_RPS", 50)
	v.SetDefault("API_RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// CORS_ORIGINS is comma separated, blanks dropped.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level returns the zerolog level named by LOG_LEVEL.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration is usable before the server or a
// command starts.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.LogLevel)
		}
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %s", c.APITimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.APIRateLimitRPS < 0 || c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limits must be positive (API_RATE_LIMIT_RPS=%v, RATE_LIMIT_RPS=%v)", c.APIRateLimitRPS, c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 || c.APIRateLimitBurst <= 0 {
		return fmt.Errorf("burst sizes must be positive (API_RATE_LIMIT_BURST=%d, RATE_LIMIT_BURST=%d)", c.APIRateLimitBurst, c.RateLimitBurst)
	}
	return nil
}
