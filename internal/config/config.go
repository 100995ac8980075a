// Package config loads the settings shared by every voting binary.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Redis     RedisConfig     `koanf:"redis"`
	Dev       DevConfig       `koanf:"dev"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Consumer  ConsumerConfig  `koanf:"consumer"`
	Simulator SimulatorConfig `koanf:"simulator"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
	// Origin is the base URL the page loader resolves /vote against.
	// Empty means the origin of the incoming page request.
	Origin          string        `koanf:"origin"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

// DevConfig mirrors the frontend dev server settings: which Host headers
// are accepted and where unmatched routes are proxied.
type DevConfig struct {
	Enabled      bool     `koanf:"enabled"`
	AllowedHosts []string `koanf:"allowed_hosts"`
	ViteURL      string   `koanf:"vite_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

type ConsumerConfig struct {
	Addr           string        `koanf:"addr"`
	ReportInterval time.Duration `koanf:"report_interval"`
}

type SimulatorConfig struct {
	APIURL         string        `koanf:"api_url"`
	Interval       time.Duration `koanf:"interval"`
	Projects       []string      `koanf:"projects"`
	Users          int           `koanf:"users"`
	UpdateEvery    int           `koanf:"update_every"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Validate checks the settings every binary relies on.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.Origin != "" {
		if err := validateAbsURL(c.HTTP.Origin); err != nil {
			errs = append(errs, fmt.Errorf("http.origin: %w", err))
		}
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.topic is required when kafka is enabled"))
		}
	}
	if c.Dev.ViteURL != "" {
		if err := validateAbsURL(c.Dev.ViteURL); err != nil {
			errs = append(errs, fmt.Errorf("dev.vite_url: %w", err))
		}
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit values must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}

func validateAbsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}
