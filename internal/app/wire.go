package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/launchpad/internal/blob/s3"
	"github.com/alanyoungcy/launchpad/internal/cache/redis"
	"github.com/alanyoungcy/launchpad/internal/config"
	"github.com/alanyoungcy/launchpad/internal/crypto"
	"github.com/alanyoungcy/launchpad/internal/domain"
	"github.com/alanyoungcy/launchpad/internal/notify"
	"github.com/alanyoungcy/launchpad/internal/server/handler"
	"github.com/alanyoungcy/launchpad/internal/service"
	"github.com/alanyoungcy/launchpad/internal/store/memory"
	"github.com/alanyoungcy/launchpad/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Ledger and audit log
	Ledger domain.Ledger
	Audit  domain.AuditStore

	// Coordination
	Locks       domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	Replays     domain.ReplayGuard
	Cache       domain.ProductCache // nil without redis

	// Archive is nil unless the archive loop runs.
	Archiver *s3blob.CampaignArchiver

	Notifier *notify.Notifier
	Service  *service.LaunchService

	// Health checks reported by /api/health.
	Checks map[string]handler.Pinger
}

// pingFunc adapts a health function to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Pinger)}

	// --- Ledger ---
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Ledger = postgres.NewLedger(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient
	default:
		logger.WarnContext(ctx, "using in-memory ledger; state is lost on restart")
		deps.Ledger = memory.NewLedger()
		deps.Audit = memory.NewAuditStore()
	}

	// --- Coordination ---
	switch cfg.Store.Coordination {
	case config.CoordinationRedis:
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		streamMaxLen := int64(10000)
		if cfg.Redis.StreamMaxLen > 0 {
			streamMaxLen = cfg.Redis.StreamMaxLen
		}
		deps.Locks = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBusWithMaxLen(redisClient, streamMaxLen)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Replays = redis.NewReplayGuard(redisClient)
		deps.Cache = redis.NewProductCache(redisClient, cfg.Store.ProductCacheTTL.Duration)
		deps.Checks["redis"] = redisClient
	default:
		deps.Locks = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
		deps.RateLimiter = memory.NewRateLimiter()
		deps.Replays = memory.NewReplayGuard()
	}

	// --- S3 archive ---
	if cfg.ArchiveEnabled() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewCampaignArchiver(
			deps.Ledger,
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Audit,
			logger,
		)
		deps.Checks["s3"] = pingFunc(s3Client.Health)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Lifecycle service ---
	svc := service.NewLaunchService(deps.Ledger, deps.Locks, domain.SystemClock{}, logger).
		WithSignalBus(deps.SignalBus).
		WithAudit(deps.Audit).
		WithNotifier(deps.Notifier).
		WithLockTTL(cfg.Store.LockTTL.Duration)
	if deps.Cache != nil {
		svc = svc.WithCache(deps.Cache)
	}
	deps.Service = svc

	return deps, cleanup, nil
}

// resolveAdmin returns the protocol admin address. An explicit admin_address
// wins; otherwise the address is derived from the operator key.
func resolveAdmin(cfg config.ProtocolConfig, logger *slog.Logger) (common.Address, error) {
	keyCfg := crypto.KeyConfig{
		RawPrivateKey:    cfg.PrivateKey,
		EncryptedKeyPath: cfg.EncryptedKeyPath,
		KeyPassword:      cfg.KeyPassword,
	}

	if cfg.AdminAddress != "" {
		admin, err := domain.ParseAddress(cfg.AdminAddress)
		if err != nil {
			return common.Address{}, fmt.Errorf("protocol admin_address: %w", err)
		}
		if keyCfg.Configured() {
			if signer, err := crypto.LoadSigner(keyCfg); err == nil && signer.Address() != admin {
				logger.Warn("operator key does not match admin_address; using admin_address",
					slog.String("admin", admin.Hex()),
					slog.String("key_address", signer.Address().Hex()),
				)
			}
		}
		return admin, nil
	}

	if !keyCfg.Configured() {
		return common.Address{}, fmt.Errorf("protocol: no admin_address or operator key configured")
	}
	signer, err := crypto.LoadSigner(keyCfg)
	if err != nil {
		return common.Address{}, fmt.Errorf("protocol: load operator key: %w", err)
	}
	return signer.Address(), nil
}
