package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	AnalysisProvider string
	OpenAIAPIKey     string
	OpenAIModel      string

	AnalysisAttempts       int
	AnalysisAttemptTimeout time.Duration
	AnalysisInitialDelay   time.Duration
	AnalysisMaxDelay       time.Duration

	HealingWindow     time.Duration
	SeverityFloor     float64
	QueueMaxAge       time.Duration
	QueueRetryDelay   time.Duration
	LeaseTTL          time.Duration
	PracticeSetSize   int
	GrowthCacheTTL    time.Duration
	AnalysisLanguages []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FORGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "SkillForge API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("analysis.provider", "openai")
	v.SetDefault("analysis.attempts", 4)
	v.SetDefault("analysis.attempt_timeout", "10s")
	v.SetDefault("analysis.initial_delay", "1s")
	v.SetDefault("analysis.max_delay", "8s")
	v.SetDefault("analysis.languages", "python,javascript,typescript,go,java")
	v.SetDefault("healing.window", "336h")
	v.SetDefault("healing.severity_floor", 0.1)
	v.SetDefault("queue.max_age", "1h")
	v.SetDefault("queue.retry_delay", "30s")
	v.SetDefault("lease.ttl", "30s")
	v.SetDefault("practice.set_size", 5)
	v.SetDefault("growth.cache_ttl", "5m")

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		AnalysisProvider: strings.ToLower(v.GetString("analysis.provider")),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIModel:      v.GetString("openai_model"),
		AnalysisAttempts: v.GetInt("analysis.attempts"),
		SeverityFloor:    v.GetFloat64("healing.severity_floor"),
		PracticeSetSize:  v.GetInt("practice.set_size"),
	}

	durations["analysis.attempt_timeout"] = &cfg.AnalysisAttemptTimeout
	durations["analysis.initial_delay"] = &cfg.AnalysisInitialDelay
	durations["analysis.max_delay"] = &cfg.AnalysisMaxDelay
	durations["healing.window"] = &cfg.HealingWindow
	durations["queue.max_age"] = &cfg.QueueMaxAge
	durations["queue.retry_delay"] = &cfg.QueueRetryDelay
	durations["lease.ttl"] = &cfg.LeaseTTL
	durations["growth.cache_ttl"] = &cfg.GrowthCacheTTL

	for key, target := range durations {
		raw := v.GetString(key)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		*target = parsed
	}

	for _, language := range strings.Split(v.GetString("analysis.languages"), ",") {
		language = strings.ToLower(strings.TrimSpace(language))
		if language != "" {
			cfg.AnalysisLanguages = append(cfg.AnalysisLanguages, language)
		}
	}

	if cfg.AnalysisAttempts <= 0 {
		cfg.AnalysisAttempts = 4
	}
	if cfg.PracticeSetSize <= 0 {
		cfg.PracticeSetSize = 5
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}
