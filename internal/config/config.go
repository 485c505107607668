package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port" env:"PORT"`
		ShutdownTimeout string `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
		File  string `yaml:"file" env:"LOG_FILE"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Quiz struct {
		Duration     string  `yaml:"duration" env:"QUIZ_DURATION"`
		TickInterval string  `yaml:"tickInterval" env:"QUIZ_TICK_INTERVAL"`
		TopK         int     `yaml:"topK" env:"QUIZ_TOP_K"`
		BasePoints   int     `yaml:"basePoints" env:"QUIZ_BASE_POINTS"`
		Floor        float64 `yaml:"floor" env:"QUIZ_FLOOR"`
	} `yaml:"quiz"`
	Rooms struct {
		Retention     string `yaml:"retention" env:"ROOMS_RETENTION"`
		SweepInterval string `yaml:"sweepInterval" env:"ROOMS_SWEEP_INTERVAL"`
	} `yaml:"rooms"`
	Results struct {
		TTL string `yaml:"ttl" env:"RESULTS_TTL"`
	} `yaml:"results"`
}

// Load reads YAML config from path, then applies environment overrides. An empty path
// means environment only.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
