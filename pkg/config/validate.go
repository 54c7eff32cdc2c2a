package config

import (
	"runtime"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/channel"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
)

// ValidateConfig fills in defaults on eff.Config and fails fast on values
// the server cannot run with.
func ValidateConfig(eff EffectiveConfigResult) error {
	c := eff.Config
	if c == nil {
		return errors.New("effective config is nil")
	}
	if strings.TrimSpace(c.Server.DBPath) == "" {
		return errors.New("database path is empty: set -db, CHATTERBOX_DB_PATH or server.db_path")
	}
	for name, p := range map[string]int{"server.port": c.Server.Port, "server.live_port": c.Server.LivePort} {
		if p < 0 || p > 65535 {
			return errors.Errorf("%s out of range: %d", name, p)
		}
	}
	if c.Server.Port != 0 && c.Server.Port == c.Server.LivePort {
		return errors.New("server.port and server.live_port must differ")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	// ingest
	if c.Ingest.QueueCapacity <= 0 {
		c.Ingest.QueueCapacity = defaultQueueCapacity
	}
	maxWorkers := runtime.NumCPU() * 2
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = runtime.NumCPU()
	} else if c.Ingest.Workers > maxWorkers {
		logger.Warn("worker_count_capped", "requested", c.Ingest.Workers, "capped_to", maxWorkers)
		c.Ingest.Workers = maxWorkers
	}
	if c.Ingest.MaxPooledBufferBytes <= 0 {
		c.Ingest.MaxPooledBufferBytes = defaultMaxPooledBufferBytes
	}
	if c.Ingest.DrainTimeout <= 0 {
		c.Ingest.DrainTimeout = Duration(defaultDrainTimeout)
	}

	// feed
	if c.Feed.MailboxSize <= 0 {
		c.Feed.MailboxSize = defaultMailboxSize
	}
	if c.Feed.SendBuffer <= 0 {
		c.Feed.SendBuffer = defaultSendBuffer
	}
	if c.Feed.PingInterval <= 0 {
		c.Feed.PingInterval = Duration(defaultPingInterval)
	}
	if c.Feed.WriteTimeout <= 0 {
		c.Feed.WriteTimeout = Duration(defaultWriteTimeout)
	}

	// session
	if c.Session.FetchTimeout <= 0 {
		c.Session.FetchTimeout = Duration(defaultFetchTimeout)
	}
	if c.Session.DispatchTimeout <= 0 {
		c.Session.DispatchTimeout = Duration(defaultDispatchTimeout)
	}
	if c.Session.InflightWait <= 0 {
		c.Session.InflightWait = Duration(defaultInflightWait)
	}
	if c.Session.HistoryLimit <= 0 {
		c.Session.HistoryLimit = defaultHistoryLimit
	}
	if c.Session.MaxBodyBytes <= 0 {
		c.Session.MaxBodyBytes = defaultMaxBodyBytes
	}

	// ticker
	if c.Ticker.Cron == "" {
		c.Ticker.Cron = defaultTickerCron
	}
	if c.Ticker.TopN <= 0 {
		c.Ticker.TopN = defaultTickerTopN
	}
	if c.Ticker.Enabled && !gronx.New().IsValid(c.Ticker.Cron) {
		return errors.Errorf("invalid ticker.cron: %q is not a valid cron expression", c.Ticker.Cron)
	}

	// security
	if c.Security.RateLimit.RPS < 0 {
		return errors.Errorf("security.rate_limit.rps must not be negative: %v", c.Security.RateLimit.RPS)
	}
	if c.Security.RateLimit.RPS == 0 {
		c.Security.RateLimit.RPS = defaultRateRPS
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = defaultRateBurst
	}

	// catalogue
	if len(c.Channels) == 0 {
		c.Channels = append(c.Channels, channel.DefaultRooms...)
	}
	if _, err := channel.NewCatalogue(c.Channels); err != nil {
		return errors.Wrap(err, "channels")
	}
	return nil
}
