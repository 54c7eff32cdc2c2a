package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestSizeBytesAndDuration(t *testing.T) {
	var v struct {
		A SizeBytes `yaml:"a"`
		B SizeBytes `yaml:"b"`
		C Duration  `yaml:"c"`
		D Duration  `yaml:"d"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 64KiB\nb: 1024\nc: 250ms\nd: 1.5\n"), &v))
	assert.Equal(t, int64(64*1024), v.A.Int64())
	assert.Equal(t, int64(1024), v.B.Int64())
	assert.Equal(t, 250*time.Millisecond, v.C.Duration())
	assert.Equal(t, 1500*time.Millisecond, v.D.Duration())

	assert.Error(t, yaml.Unmarshal([]byte("a: lots\n"), &v))
	assert.Error(t, yaml.Unmarshal([]byte("c: soon\n"), &v))
}

func TestParseConfigFlags(t *testing.T) {
	f, err := ParseConfigFlags([]string{"-addr", "127.0.0.1:9000", "-db", "/tmp/x"})
	require.NoError(t, err)
	assert.True(t, f.Set["addr"])
	assert.True(t, f.Set["db"])
	assert.False(t, f.Set["config"])

	_, err = ParseConfigFlags([]string{"-nope"})
	assert.Error(t, err)
}

func TestLayering(t *testing.T) {
	path := writeFile(t, `
server:
  port: 7000
  db_path: /from/file
logging:
  level: debug
ticker:
  cron: "*/5 * * * *"
channels:
  - name: Late Night Talk
    category: Talk
`)
	flags, err := ParseConfigFlags([]string{"-config", path, "-db", "/from/flag"})
	require.NoError(t, err)

	eff, err := LoadEffectiveConfig(flags, envMap(map[string]string{
		"CHATTERBOX_SERVER_PORT":  "7100",
		"CHATTERBOX_RATE_RPS":     "5",
		"CHATTERBOX_CORS_ORIGINS": "https://a.example, https://b.example",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"defaults", "config", "env", "flags"}, eff.Sources)

	c := eff.Config
	assert.Equal(t, 7100, c.Server.Port)
	assert.Equal(t, defaultLivePort, c.Server.LivePort)
	assert.Equal(t, "/from/flag", eff.DBPath)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, "*/5 * * * *", c.Ticker.Cron)
	assert.True(t, c.Ticker.Enabled)
	assert.Equal(t, 5.0, c.Security.RateLimit.RPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Security.CORS.AllowedOrigins)
	assert.Equal(t, "0.0.0.0:7100", eff.Addr)
	assert.Equal(t, "0.0.0.0:8081", c.LiveAddr())

	require.NoError(t, ValidateConfig(eff))
	require.Len(t, c.Channels, 1)
	assert.Equal(t, "Late Night Talk", c.Channels[0].Name)
}

func TestMissingExplicitConfigFails(t *testing.T) {
	flags, err := ParseConfigFlags([]string{"-config", filepath.Join(t.TempDir(), "absent.yaml")})
	require.NoError(t, err)
	_, err = LoadEffectiveConfig(flags, envMap(nil))
	assert.Error(t, err)
}

func TestMissingDefaultConfigIsFine(t *testing.T) {
	flags := Flags{Config: filepath.Join(t.TempDir(), "absent.yaml"), Set: map[string]bool{}}

	eff, err := LoadEffectiveConfig(flags, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"defaults"}, eff.Sources)
	require.NoError(t, ValidateConfig(eff))

	c := eff.Config
	assert.Equal(t, defaultQueueCapacity, c.Ingest.QueueCapacity)
	assert.Greater(t, c.Ingest.Workers, 0)
	assert.Equal(t, SizeBytes(defaultMaxBodyBytes), c.Session.MaxBodyBytes)
	assert.Equal(t, defaultPingInterval, c.Feed.PingInterval.Duration())
	assert.NotEmpty(t, c.Channels)
}

func TestEnvMalformedValuesSkipped(t *testing.T) {
	c := Default()
	used := ApplyEnv(c, envMap(map[string]string{
		"CHATTERBOX_QUEUE_CAPACITY":        "many",
		"CHATTERBOX_SESSION_FETCH_TIMEOUT": "3s",
		"CHATTERBOX_ADDR":                  "10.0.0.1:9999",
		"CHATTERBOX_TICKER_ENABLED":        "no",
	}))
	assert.True(t, used)
	assert.Equal(t, 0, c.Ingest.QueueCapacity)
	assert.Equal(t, 3*time.Second, c.Session.FetchTimeout.Duration())
	assert.Equal(t, "10.0.0.1:9999", c.Addr())
	assert.False(t, c.Ticker.Enabled)

	assert.False(t, ApplyEnv(Default(), envMap(nil)))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty db":     func(c *Config) { c.Server.DBPath = "" },
		"bad cron":     func(c *Config) { c.Ticker.Cron = "whenever" },
		"same ports":   func(c *Config) { c.Server.LivePort = c.Server.Port },
		"port range":   func(c *Config) { c.Server.Port = 70000 },
		"negative rps": func(c *Config) { c.Security.RateLimit.RPS = -1 },
		"bad channel":  func(c *Config) { c.Channels = append(c.Channels, models.ChannelInfo{ID: "Bad Id!"}) },
		"dup channel": func(c *Config) {
			c.Channels = append(c.Channels, models.ChannelInfo{ID: "fans"}, models.ChannelInfo{ID: "fans"})
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, ValidateConfig(EffectiveConfigResult{Config: c}))
		})
	}

	// a bad cron is fine while the ticker is off
	c := Default()
	c.Ticker.Enabled = false
	c.Ticker.Cron = "whenever"
	assert.NoError(t, ValidateConfig(EffectiveConfigResult{Config: c}))
}
