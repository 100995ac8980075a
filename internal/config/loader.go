package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix namespaces environment overrides. Sections are separated by
	// a double underscore: VOTING_KAFKA__GROUP_ID -> kafka.group_id.
	EnvPrefix = "VOTING_"

	DefaultConfigFile = "voting.yaml"
)

// listKeys hold comma separated values when set from the environment.
var listKeys = map[string]bool{
	"kafka.brokers":        true,
	"dev.allowed_hosts":    true,
	"cors.allowed_origins": true,
	"simulator.projects":   true,
}

// TunnelHost is the development tunnel allowed to reach the dev server.
const TunnelHost = "1d2f-134-151-22-125.ngrok-free.app"

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"addr":       "http.addr",
	"origin":     "http.origin",
	"db":         "database.path",
	"log-level":  "log.level",
	"log-format": "log.format",
	"kafka":      "kafka.enabled",
	"brokers":    "kafka.brokers",
	"topic":      "kafka.topic",
	"group-id":   "kafka.group_id",
	"redis-url":  "redis.url",
	"dev":        "dev.enabled",
	"vite-url":   "dev.vite_url",
	"api-url":    "simulator.api_url",
	"interval":   "simulator.interval",
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":                 ":8080",
		"http.origin":               "",
		"http.shutdown_timeout":     "5s",
		"log.level":                 "info",
		"log.format":                "text",
		"database.path":             "community.db",
		"kafka.enabled":             false,
		"kafka.brokers":             []string{"localhost:9092"},
		"kafka.topic":               "votes",
		"kafka.group_id":            "vote-processor-group",
		"redis.url":                 "redis://localhost:6379/0",
		"dev.enabled":               false,
		"dev.allowed_hosts":         []string{TunnelHost},
		"dev.vite_url":              "",
		"cors.allowed_origins":      []string{"http://localhost:5173"},
		"ratelimit.rps":             10.0,
		"ratelimit.burst":           20,
		"consumer.addr":             ":8081",
		"consumer.report_interval":  "5s",
		"simulator.api_url":         "http://localhost:8080",
		"simulator.interval":        "500ms",
		"simulator.projects":        []string{"Community Garden", "Park Cleanup", "Library Renovation"},
		"simulator.update_every":    5,
		"simulator.users":           20,
		"simulator.request_timeout": "10s",
	}
}

// Load builds the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// RegisterFlags adds the flags understood by Load to a command's flag set.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("addr", "", "HTTP listen address")
	flags.String("origin", "", "Base URL the voting page loads /vote from")
	flags.String("db", "", "Path to the SQLite database")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (text|json)")
	flags.Bool("kafka", false, "Publish/consume vote events through Kafka")
	flags.StringSlice("brokers", nil, "Kafka brokers")
	flags.String("topic", "", "Kafka topic")
	flags.String("group-id", "", "Kafka consumer group")
	flags.String("redis-url", "", "Redis URL for live tallies")
	flags.Bool("dev", false, "Enable dev server host checks and proxying")
	flags.String("vite-url", "", "Frontend dev server to proxy unmatched routes to")
	flags.String("api-url", "", "Voting API the simulator talks to")
	flags.Duration("interval", 0, "Simulator tick interval")
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func envValue(key, value string) (string, interface{}) {
	key = envKey(key)
	if !listKeys[key] {
		return key, value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}
