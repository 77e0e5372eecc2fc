package store

import (
	"time"

	"commitcrawl/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	// AppName is the process role, e.g. "crawl" or "serve"
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	MaxIdle     time.Duration
	LogSQL      bool
	SlowQueryMs int

	// Boot knobs
	ConnectRetries int           // ping attempts before giving up; default 6
	PingTimeout    time.Duration // per attempt; default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
	Table   string
}

// FromConfig reads CORE_LEDGER_* and CORE_MIRROR_*
func FromConfig(cfg config.Conf, app string) Config {
	pg := cfg.Prefix("CORE_LEDGER_")
	ch := cfg.Prefix("CORE_MIRROR_")
	return Config{
		AppName: app,
		PG: PGConfig{
			Enabled:        pg.MayBool("ENABLED", false),
			URL:            pg.MayString("URL", ""),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 4)),
			MaxIdle:        pg.MayDuration("MAX_IDLE", time.Minute),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 250),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 6),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		CH: CHConfig{
			Enabled: ch.MayBool("ENABLED", false),
			URL:     ch.MayString("URL", ""),
			Table:   ch.MayString("TABLE", "commits"),
		},
	}
}
