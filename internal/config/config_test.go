package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "community.db", cfg.Database.Path)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "vote-processor-group", cfg.Kafka.GroupID)
	assert.Equal(t, []string{TunnelHost}, cfg.Dev.AllowedHosts)
	assert.Equal(t, 500*time.Millisecond, cfg.Simulator.Interval)
	assert.Equal(t, 5, cfg.Simulator.UpdateEvery)
}

func TestLoad_Precedence(t *testing.T) {
	dir := chdirTemp(t)

	cfgPath := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
http:
  addr: ":9000"
database:
  path: file.db
kafka:
  topic: from-file
  group_id: file-group
dev:
  allowed_hosts:
    - example.test
`), 0o644))

	t.Setenv("VOTING_DATABASE__PATH", "env.db")
	t.Setenv("VOTING_KAFKA__GROUP_ID", "env-group")
	t.Setenv("VOTING_KAFKA__BROKERS", "a:9092,b:9092")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--db", "flag.db"}))

	cfg, err := Load(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr, "file overrides default")
	assert.Equal(t, "from-file", cfg.Kafka.Topic)
	assert.Equal(t, "env-group", cfg.Kafka.GroupID, "env overrides file")
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "flag.db", cfg.Database.Path, "flag overrides env")
	assert.Equal(t, []string{"example.test"}, cfg.Dev.AllowedHosts)
}

func TestLoad_UnchangedFlagsDoNotOverride(t *testing.T) {
	chdirTemp(t)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdirTemp(t)

	_, err := Load("does-not-exist.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.yaml")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			HTTP:     HTTPConfig{Addr: ":8080"},
			Database: DatabaseConfig{Path: "x.db"},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing addr", mutate: func(c *Config) { c.HTTP.Addr = "" }, errSubstr: "http.addr"},
		{name: "relative origin", mutate: func(c *Config) { c.HTTP.Origin = "/api" }, errSubstr: "http.origin"},
		{name: "missing db", mutate: func(c *Config) { c.Database.Path = " " }, errSubstr: "database.path"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "votes" }, errSubstr: "kafka.brokers"},
		{name: "bad vite url", mutate: func(c *Config) { c.Dev.ViteURL = "localhost" }, errSubstr: "dev.vite_url"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimit.RPS = -1 }, errSubstr: "ratelimit"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, errSubstr: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoad_EnvLists(t *testing.T) {
	chdirTemp(t)

	t.Setenv("VOTING_CORS__ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("VOTING_SIMULATOR__PROJECTS", "Garden,Library Renovation")
	t.Setenv("VOTING_KAFKA__TOPIC", "a,b")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"Garden", "Library Renovation"}, cfg.Simulator.Projects)
	assert.Equal(t, "a,b", cfg.Kafka.Topic, "scalar keys keep their commas")
	assert.Equal(t, 20, cfg.Simulator.Users)
}

func TestEnvValue(t *testing.T) {
	key, val := envValue("VOTING_KAFKA__BROKERS", "a:9092,b:9092")
	assert.Equal(t, "kafka.brokers", key)
	assert.Equal(t, []string{"a:9092", "b:9092"}, val)

	key, val = envValue("VOTING_HTTP__ADDR", ":9000")
	assert.Equal(t, "http.addr", key)
	assert.Equal(t, ":9000", val)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "kafka.group_id", envKey("VOTING_KAFKA__GROUP_ID"))
	assert.Equal(t, "http.addr", envKey("VOTING_HTTP__ADDR"))
}
