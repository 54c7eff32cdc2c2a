package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Logging  LoggingConfig        `yaml:"logging"`
	Ingest   IngestConfig         `yaml:"ingest"`
	Feed     FeedConfig           `yaml:"feed"`
	Session  SessionConfig        `yaml:"session"`
	Ticker   TickerConfig         `yaml:"ticker"`
	Security SecurityConfig       `yaml:"security"`
	Channels []models.ChannelInfo `yaml:"channels"`
}

// ServerConfig holds the listener and storage settings.
type ServerConfig struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	LivePort int    `yaml:"live_port"`
	DBPath   string `yaml:"db_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// IngestConfig controls the write queue and its workers.
type IngestConfig struct {
	QueueCapacity        int       `yaml:"queue_capacity"`
	Workers              int       `yaml:"workers"`
	MaxPooledBufferBytes SizeBytes `yaml:"max_pooled_buffer_bytes"`
	// BlockingEnqueue makes writers wait for queue space instead of
	// failing fast with 429.
	BlockingEnqueue bool     `yaml:"blocking_enqueue"`
	DrainTimeout    Duration `yaml:"drain_timeout"`
}

// FeedConfig holds live fan-out and websocket settings.
type FeedConfig struct {
	MailboxSize  int      `yaml:"mailbox_size"`
	SendBuffer   int      `yaml:"send_buffer"`
	PingInterval Duration `yaml:"ping_interval"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// SessionConfig bounds reads and writes made on behalf of a session.
type SessionConfig struct {
	FetchTimeout    Duration  `yaml:"fetch_timeout"`
	DispatchTimeout Duration  `yaml:"dispatch_timeout"`
	InflightWait    Duration  `yaml:"inflight_wait"`
	HistoryLimit    int       `yaml:"history_limit"`
	MaxBodyBytes    SizeBytes `yaml:"max_body_bytes"`
}

// TickerConfig schedules the highlight ticker.
type TickerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	TopN    int    `yaml:"top_n"`
}

type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64KB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	v, err := parseSizeBytes(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func parseSizeBytes(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
