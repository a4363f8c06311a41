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
// built-in defaults, applies LAUNCHPAD_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the defaults and
// environment are used alone. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LAUNCHPAD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Protocol ──
	setStr(&cfg.Protocol.AdminAddress, "LAUNCHPAD_PROTOCOL_ADMIN_ADDRESS")
	setStr(&cfg.Protocol.PrivateKey, "LAUNCHPAD_PROTOCOL_PRIVATE_KEY")
	setStr(&cfg.Protocol.EncryptedKeyPath, "LAUNCHPAD_PROTOCOL_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Protocol.KeyPassword, "LAUNCHPAD_PROTOCOL_KEY_PASSWORD")
	setInt(&cfg.Protocol.MaxSlotsPerBid, "LAUNCHPAD_PROTOCOL_MAX_SLOTS_PER_BID")

	// ── Store ──
	setStr(&cfg.Store.Backend, "LAUNCHPAD_STORE_BACKEND")
	setStr(&cfg.Store.Coordination, "LAUNCHPAD_STORE_COORDINATION")
	setDuration(&cfg.Store.LockTTL, "LAUNCHPAD_STORE_LOCK_TTL")
	setDuration(&cfg.Store.ProductCacheTTL, "LAUNCHPAD_STORE_PRODUCT_CACHE_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "LAUNCHPAD_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "LAUNCHPAD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LAUNCHPAD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LAUNCHPAD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LAUNCHPAD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LAUNCHPAD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LAUNCHPAD_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LAUNCHPAD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LAUNCHPAD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LAUNCHPAD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LAUNCHPAD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LAUNCHPAD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LAUNCHPAD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LAUNCHPAD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LAUNCHPAD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LAUNCHPAD_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "LAUNCHPAD_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LAUNCHPAD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LAUNCHPAD_S3_REGION")
	setStr(&cfg.S3.Bucket, "LAUNCHPAD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LAUNCHPAD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LAUNCHPAD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LAUNCHPAD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LAUNCHPAD_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "LAUNCHPAD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LAUNCHPAD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LAUNCHPAD_SERVER_CORS_ORIGINS")
	setDuration(&cfg.Server.MaxSkew, "LAUNCHPAD_SERVER_MAX_SKEW")
	setInt(&cfg.Server.RateLimit, "LAUNCHPAD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "LAUNCHPAD_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LAUNCHPAD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LAUNCHPAD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LAUNCHPAD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LAUNCHPAD_NOTIFY_EVENTS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "LAUNCHPAD_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "LAUNCHPAD_ARCHIVE_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "LAUNCHPAD_MODE")
	setStr(&cfg.LogLevel, "LAUNCHPAD_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
