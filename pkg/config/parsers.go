package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr     string
	LiveAddr string
	DB       string
	Config   string
	Set      map[string]bool
}

// EffectiveConfigResult is the merged configuration plus where it came from.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	// Sources lists the layers that contributed, lowest precedence first.
	Sources []string
}

// ParseConfigFlags parses args (without the program name).
func ParseConfigFlags(args []string) (Flags, error) {
	fs := flag.NewFlagSet("chatterbox", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "HTTP API listen address")
	liveAddr := fs.String("live-addr", ":8081", "websocket listen address")
	db := fs.String("db", defaultDBPath, "Pebble DB path")
	cfg := fs.String("config", "./config.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addr, LiveAddr: *liveAddr, DB: *db, Config: *cfg, Set: set}, nil
}

// ParseConfigFile decodes the config file on top of base. A missing file
// is only an error when -config was given explicitly.
func ParseConfigFile(flags Flags, base *Config) (*Config, bool, error) {
	path := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(path, base)
	if err != nil {
		if os.IsNotExist(err) && !flags.Set["config"] && os.Getenv("CHATTERBOX_CONFIG") == "" {
			return base, false, nil
		}
		return nil, false, errors.Wrap(err, "load config file")
	}
	return cfg, true, nil
}

func parseList(v string) []string {
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitAddr(v string) (string, int, bool) {
	h, p, err := net.SplitHostPort(v)
	if err != nil {
		return "", 0, false
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, false
	}
	return h, port, true
}

// ApplyEnv overrides cfg with CHATTERBOX_* variables read through getenv.
// It reports whether any variable was set. Malformed values are logged and
// skipped.
func ApplyEnv(cfg *Config, getenv func(string) string) bool {
	used := false
	get := func(key string) string {
		v := strings.TrimSpace(getenv("CHATTERBOX_" + key))
		if v != "" {
			used = true
		}
		return v
	}
	atoi := func(key string, dst *int) {
		if v := get(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else {
				logger.Warn("config_env_invalid", "key", key, "value", v)
			}
		}
	}
	dur := func(key string, dst *Duration) {
		if v := get(key); v != "" {
			if d, err := parseDuration(v); err == nil {
				*dst = d
			} else {
				logger.Warn("config_env_invalid", "key", key, "value", v)
			}
		}
	}
	size := func(key string, dst *SizeBytes) {
		if v := get(key); v != "" {
			if s, err := parseSizeBytes(v); err == nil {
				*dst = s
			} else {
				logger.Warn("config_env_invalid", "key", key, "value", v)
			}
		}
	}

	// server
	if v := get("ADDR"); v != "" {
		if h, p, ok := splitAddr(v); ok {
			cfg.Server.Address, cfg.Server.Port = h, p
		} else {
			cfg.Server.Address = v
		}
	} else {
		if v := get("SERVER_ADDRESS"); v != "" {
			cfg.Server.Address = v
		}
		atoi("SERVER_PORT", &cfg.Server.Port)
	}
	atoi("LIVE_PORT", &cfg.Server.LivePort)
	if v := get("DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}

	// logging
	if v := get("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// ingest
	atoi("QUEUE_CAPACITY", &cfg.Ingest.QueueCapacity)
	atoi("INGEST_WORKERS", &cfg.Ingest.Workers)
	size("QUEUE_MAX_POOLED_BUFFER_BYTES", &cfg.Ingest.MaxPooledBufferBytes)
	if v := get("QUEUE_BLOCKING"); v != "" {
		cfg.Ingest.BlockingEnqueue = parseBool(v)
	}
	dur("INGEST_DRAIN_TIMEOUT", &cfg.Ingest.DrainTimeout)

	// feed
	atoi("FEED_MAILBOX_SIZE", &cfg.Feed.MailboxSize)
	atoi("FEED_SEND_BUFFER", &cfg.Feed.SendBuffer)
	dur("FEED_PING_INTERVAL", &cfg.Feed.PingInterval)
	dur("FEED_WRITE_TIMEOUT", &cfg.Feed.WriteTimeout)

	// session
	dur("SESSION_FETCH_TIMEOUT", &cfg.Session.FetchTimeout)
	dur("SESSION_DISPATCH_TIMEOUT", &cfg.Session.DispatchTimeout)
	dur("SESSION_INFLIGHT_WAIT", &cfg.Session.InflightWait)
	atoi("SESSION_HISTORY_LIMIT", &cfg.Session.HistoryLimit)
	size("SESSION_MAX_BODY_BYTES", &cfg.Session.MaxBodyBytes)

	// ticker
	if v := get("TICKER_ENABLED"); v != "" {
		cfg.Ticker.Enabled = parseBool(v)
	}
	if v := get("TICKER_CRON"); v != "" {
		cfg.Ticker.Cron = v
	}
	atoi("TICKER_TOP_N", &cfg.Ticker.TopN)

	// security
	if v := get("CORS_ORIGINS"); v != "" {
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := get("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Security.RateLimit.RPS = f
		} else {
			logger.Warn("config_env_invalid", "key", "RATE_RPS", "value", v)
		}
	}
	atoi("RATE_BURST", &cfg.Security.RateLimit.Burst)
	return used
}

// applyFlags copies explicitly set flags onto cfg.
func applyFlags(cfg *Config, flags Flags) {
	if flags.Set["addr"] {
		if h, p, ok := splitAddr(flags.Addr); ok {
			cfg.Server.Address, cfg.Server.Port = h, p
		}
	}
	if flags.Set["live-addr"] {
		if h, p, ok := splitAddr(flags.LiveAddr); ok {
			if h != "" {
				cfg.Server.Address = h
			}
			cfg.Server.LivePort = p
		}
	}
	if flags.Set["db"] {
		cfg.Server.DBPath = flags.DB
	}
}

// LoadEffectiveConfig layers defaults, the config file, the environment and
// explicit flags, each overriding the one before.
func LoadEffectiveConfig(flags Flags, getenv func(string) string) (EffectiveConfigResult, error) {
	res := EffectiveConfigResult{Sources: []string{"defaults"}}

	cfg, found, err := ParseConfigFile(flags, Default())
	if err != nil {
		return res, err
	}
	if found {
		res.Sources = append(res.Sources, "config")
	}
	if ApplyEnv(cfg, getenv) {
		res.Sources = append(res.Sources, "env")
	}
	if len(flags.Set) > 0 {
		applyFlags(cfg, flags)
		res.Sources = append(res.Sources, "flags")
	}

	res.Config = cfg
	res.Addr = cfg.Addr()
	res.DBPath = cfg.Server.DBPath
	return res, nil
}
