package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SPREADBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SPREADBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── MEXC ──
	setStr(&cfg.Mexc.ContractHost, "SPREADBOT_MEXC_CONTRACT_HOST")
	setStr(&cfg.Mexc.SpotHost, "SPREADBOT_MEXC_SPOT_HOST")
	setStr(&cfg.Mexc.WsURL, "SPREADBOT_MEXC_WS_URL")

	// ── DexScreener ──
	setStr(&cfg.DexScreener.BaseURL, "SPREADBOT_DEXSCREENER_BASE_URL")
	setInt(&cfg.DexScreener.BatchSize, "SPREADBOT_DEXSCREENER_BATCH_SIZE")
	setDuration(&cfg.DexScreener.SearchCacheTTL, "SPREADBOT_DEXSCREENER_SEARCH_CACHE_TTL")

	// ── Scanner ──
	setFloat64(&cfg.Scanner.MinSpreadPercent, "SPREADBOT_SCANNER_MIN_SPREAD_PERCENT")
	setFloat64(&cfg.Scanner.MaxSpreadPercent, "SPREADBOT_SCANNER_MAX_SPREAD_PERCENT")
	setFloat64(&cfg.Scanner.MinLiquidityUSD, "SPREADBOT_SCANNER_MIN_LIQUIDITY_USD")
	setFloat64(&cfg.Scanner.MinVolume24hUSD, "SPREADBOT_SCANNER_MIN_VOLUME_24H_USD")
	setFloat64(&cfg.Scanner.MinFDVUSD, "SPREADBOT_SCANNER_MIN_FDV_USD")
	setInt(&cfg.Scanner.MinTxns24h, "SPREADBOT_SCANNER_MIN_TXNS_24H")
	setFloat64(&cfg.Scanner.MinTurnoverRatio, "SPREADBOT_SCANNER_MIN_TURNOVER_RATIO")
	setFloat64(&cfg.Scanner.TotalFeesPercent, "SPREADBOT_SCANNER_TOTAL_FEES_PERCENT")
	setFloat64(&cfg.Scanner.MinNetProfit, "SPREADBOT_SCANNER_MIN_NET_PROFIT")
	setFloat64(&cfg.Scanner.MinBookDepthUSD, "SPREADBOT_SCANNER_MIN_BOOK_DEPTH_USD")
	setDuration(&cfg.Scanner.Cooldown, "SPREADBOT_SCANNER_COOLDOWN")
	setDuration(&cfg.Scanner.ScanInterval, "SPREADBOT_SCANNER_SCAN_INTERVAL")
	setInt(&cfg.Scanner.ChainConcurrency, "SPREADBOT_SCANNER_CHAIN_CONCURRENCY")
	setStringSlice(&cfg.Scanner.Blacklist, "SPREADBOT_SCANNER_BLACKLIST")

	// ── Discovery ──
	setStr(&cfg.Discovery.CacheFile, "SPREADBOT_DISCOVERY_CACHE_FILE")
	setDuration(&cfg.Discovery.LookupDelay, "SPREADBOT_DISCOVERY_LOOKUP_DELAY")
	setInt(&cfg.Discovery.SaveEvery, "SPREADBOT_DISCOVERY_SAVE_EVERY")

	// ── Tracker ──
	setFloat64(&cfg.Tracker.ClosureThreshold, "SPREADBOT_TRACKER_CLOSURE_THRESHOLD")
	setFloat64(&cfg.Tracker.WinThreshold, "SPREADBOT_TRACKER_WIN_THRESHOLD")
	setFloat64(&cfg.Tracker.LoseThreshold, "SPREADBOT_TRACKER_LOSE_THRESHOLD")
	setDuration(&cfg.Tracker.CheckInterval, "SPREADBOT_TRACKER_CHECK_INTERVAL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "SPREADBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "SPREADBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "SPREADBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "SPREADBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "SPREADBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "SPREADBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "SPREADBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "SPREADBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SPREADBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "SPREADBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SPREADBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SPREADBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SPREADBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SPREADBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SPREADBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SPREADBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SPREADBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SPREADBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SPREADBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SPREADBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SPREADBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SPREADBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SPREADBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SPREADBOT_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "SPREADBOT_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "SPREADBOT_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.HistoryHours, "SPREADBOT_ARCHIVE_HISTORY_HOURS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SPREADBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SPREADBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SPREADBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SPREADBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SPREADBOT_MODE")
	setStr(&cfg.LogLevel, "SPREADBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
