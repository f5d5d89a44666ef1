// Package config defines the top-level configuration for the spread bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SPREADBOT_* environment
// variables.
type Config struct {
	Mexc        MexcConfig        `toml:"mexc"`
	DexScreener DexScreenerConfig `toml:"dexscreener"`
	Scanner     ScannerConfig     `toml:"scanner"`
	Discovery   DiscoveryConfig   `toml:"discovery"`
	Tracker     TrackerConfig     `toml:"tracker"`
	Validator   ValidatorConfig   `toml:"validator"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Archive     ArchiveConfig     `toml:"archive"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// MexcConfig holds MEXC futures API endpoints.
type MexcConfig struct {
	ContractHost string `toml:"contract_host"`
	SpotHost     string `toml:"spot_host"`
	WsURL        string `toml:"ws_url"`
}

// DexScreenerConfig holds DEX quote source parameters.
type DexScreenerConfig struct {
	BaseURL        string   `toml:"base_url"`
	BatchSize      int      `toml:"batch_size"`       // max addresses per batch lookup
	SearchCacheTTL duration `toml:"search_cache_ttl"` // TTL for cached search results
}

// ScannerConfig holds the spread detection thresholds and loop timing.
type ScannerConfig struct {
	MinSpreadPercent float64     `toml:"min_spread_percent"`
	MaxSpreadPercent float64     `toml:"max_spread_percent"`
	MinLiquidityUSD  float64     `toml:"min_liquidity_usd"`
	MinVolume24hUSD  float64     `toml:"min_volume_24h_usd"`
	MinFDVUSD        float64     `toml:"min_fdv_usd"`
	MinTxns24h       int         `toml:"min_txns_24h"`
	MinTurnoverRatio float64     `toml:"min_turnover_ratio"` // 24h volume / liquidity
	TotalFeesPercent float64     `toml:"total_fees_percent"` // taker in + out + slippage
	MinNetProfit     float64     `toml:"min_net_profit"`
	MinBookDepthUSD  float64     `toml:"min_book_depth_usd"` // 0 disables the depth check
	Cooldown         duration    `toml:"cooldown"`
	ScanInterval     duration    `toml:"scan_interval"`
	ChainConcurrency int         `toml:"chain_concurrency"` // parallel batch lookups across chains
	Blacklist        []string    `toml:"blacklist"`
	Score            ScoreConfig `toml:"score"`
}

// ScoreConfig holds the quality score weighting policy. The weights are a
// tunable heuristic, not a fixed law; they only need to sum to something
// positive.
type ScoreConfig struct {
	LiquidityWeight float64 `toml:"liquidity_weight"`
	NetProfitWeight float64 `toml:"net_profit_weight"`
	WinRateWeight   float64 `toml:"win_rate_weight"`
	// LiquidityNorm is the liquidity (USD) that counts as a full score.
	LiquidityNorm float64 `toml:"liquidity_norm"`
	// NetProfitNorm is the net profit (%) that counts as a full score.
	NetProfitNorm float64 `toml:"net_profit_norm"`
}

// DiscoveryConfig holds pair discovery parameters.
type DiscoveryConfig struct {
	CacheFile        string   `toml:"cache_file"`
	LookupDelay      duration `toml:"lookup_delay"` // pause between external searches
	SaveEvery        int      `toml:"save_every"`   // persist cache after this many finds
	MajorMinLiqUSD   float64  `toml:"major_min_liquidity_usd"`
	MinTurnoverRatio float64  `toml:"min_turnover_ratio"`
}

// TrackerConfig holds signal closure parameters.
type TrackerConfig struct {
	ClosureThreshold float64  `toml:"closure_threshold"`
	WinThreshold     float64  `toml:"win_threshold"`
	LoseThreshold    float64  `toml:"lose_threshold"`
	CheckInterval    duration `toml:"check_interval"`
}

// ValidatorConfig holds the token validation bands.
type ValidatorConfig struct {
	MajorRatioMin   float64 `toml:"major_ratio_min"`
	MajorRatioMax   float64 `toml:"major_ratio_max"`
	AltcoinRatioMin float64 `toml:"altcoin_ratio_min"`
	AltcoinRatioMax float64 `toml:"altcoin_ratio_max"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Leaving Addr empty disables
// the quote cache entirely.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds the retention/export schedule. Disabled when Enabled
// is false or no S3 bucket is configured.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
	HistoryHours  int      `toml:"history_hours"` // price history kept hot in the DB
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Mexc: MexcConfig{
			ContractHost: "https://contract.mexc.com",
			SpotHost:     "https://api.mexc.com",
			WsURL:        "wss://contract.mexc.com/edge",
		},
		DexScreener: DexScreenerConfig{
			BaseURL:        "https://api.dexscreener.com",
			BatchSize:      30,
			SearchCacheTTL: duration{60 * time.Second},
		},
		Scanner: ScannerConfig{
			MinSpreadPercent: 4.0,
			MaxSpreadPercent: 30.0,
			MinLiquidityUSD:  150_000,
			MinVolume24hUSD:  150_000,
			MinFDVUSD:        3_000_000,
			MinTxns24h:       300,
			MinTurnoverRatio: 0.05,
			// taker entry + taker exit + estimated slippage
			TotalFeesPercent: (0.0005*2 + 0.005) * 100,
			MinNetProfit:     3.0,
			MinBookDepthUSD:  10_000,
			Cooldown:         duration{5 * time.Minute},
			ScanInterval:     duration{1 * time.Second},
			ChainConcurrency: 4,
			Blacklist: []string{
				// Wrapped versions that cause false signals
				"WETH", "WBTC", "WBNB", "WSOL", "WMATIC", "WAVAX",
				// Stablecoins
				"USDT", "USDC", "DAI", "BUSD", "TUSD", "USDP", "FRAX",
				// Common fakes
				"ETH2", "BTC2", "SOL2",
			},
			Score: ScoreConfig{
				LiquidityWeight: 0.3,
				NetProfitWeight: 0.5,
				WinRateWeight:   0.2,
				LiquidityNorm:   1_000_000,
				NetProfitNorm:   10.0,
			},
		},
		Discovery: DiscoveryConfig{
			CacheFile:        "known_pairs.json",
			LookupDelay:      duration{200 * time.Millisecond},
			SaveEvery:        5,
			MajorMinLiqUSD:   100_000,
			MinTurnoverRatio: 0.02,
		},
		Tracker: TrackerConfig{
			ClosureThreshold: 2.0,
			WinThreshold:     3.5,
			LoseThreshold:    -3.5,
			CheckInterval:    duration{20 * time.Second},
		},
		Validator: ValidatorConfig{
			MajorRatioMin:   0.97,
			MajorRatioMax:   1.03,
			AltcoinRatioMin: 0.7,
			AltcoinRatioMax: 1.3,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "spreadbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "",
			Region:         "us-east-1",
			Bucket:         "spreadbot-data",
			UseSSL:         true,
			ForcePathStyle: false,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{24 * time.Hour},
			RetentionDays: 90,
			HistoryHours:  24,
		},
		Notify: NotifyConfig{
			Events: []string{"signal_detected", "signal_closed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"track":   true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, track, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Scanner.MinSpreadPercent <= 0 {
		errs = append(errs, "scanner: min_spread_percent must be positive")
	}
	if c.Scanner.MaxSpreadPercent <= c.Scanner.MinSpreadPercent {
		errs = append(errs, "scanner: max_spread_percent must exceed min_spread_percent")
	}
	if c.Scanner.ChainConcurrency <= 0 {
		errs = append(errs, "scanner: chain_concurrency must be positive")
	}
	if c.DexScreener.BatchSize <= 0 {
		errs = append(errs, "dexscreener: batch_size must be positive")
	}

	if c.Validator.MajorRatioMin >= c.Validator.MajorRatioMax {
		errs = append(errs, "validator: major_ratio_min must be below major_ratio_max")
	}
	if c.Validator.AltcoinRatioMin >= c.Validator.AltcoinRatioMax {
		errs = append(errs, "validator: altcoin_ratio_min must be below altcoin_ratio_max")
	}

	if c.Tracker.ClosureThreshold <= 0 {
		errs = append(errs, "tracker: closure_threshold must be positive")
	}
	if c.Tracker.WinThreshold <= c.Tracker.LoseThreshold {
		errs = append(errs, "tracker: win_threshold must exceed lose_threshold")
	}

	needsDB := c.Mode == "scan" || c.Mode == "track" || c.Mode == "full"
	if needsDB && c.Database.DSN == "" && c.Database.Host == "" {
		errs = append(errs, "database: dsn or host must be set for mode "+c.Mode)
	}

	if c.Archive.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "archive: s3 bucket must be set when archiving is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
