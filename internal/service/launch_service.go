package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// DefaultLockTTL bounds how long a crashed holder can block a product.
const DefaultLockTTL = 30 * time.Second

// EventNotifier forwards committed events to operators.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, ev domain.Event) error
	NotifyAll(ctx context.Context, title, message string) error
}

// LaunchService runs the campaign lifecycle. Every mutating operation runs
// its guards, then does all of its ledger work in one Atomic call, so a
// failed operation leaves no trace. Operations never retry.
type LaunchService struct {
	ledger   domain.Ledger
	locks    domain.LockManager
	clock    domain.Clock
	bus      domain.SignalBus
	audit    domain.AuditStore
	cache    domain.ProductCache
	notifier EventNotifier
	protocol atomic.Pointer[domain.ProtocolConfig]
	lockTTL  time.Duration
	newID    func() string
	logger   *slog.Logger
}

// NewLaunchService creates a LaunchService. Bus, audit, cache and notifier
// are optional and attached with the With* methods.
func NewLaunchService(ledger domain.Ledger, locks domain.LockManager, clock domain.Clock, logger *slog.Logger) *LaunchService {
	return &LaunchService{
		ledger:  ledger,
		locks:   locks,
		clock:   clock,
		lockTTL: DefaultLockTTL,
		newID:   uuid.NewString,
		logger:  logger.With(slog.String("component", "launch_service")),
	}
}

// WithSignalBus publishes committed events on bus.
func (s *LaunchService) WithSignalBus(bus domain.SignalBus) *LaunchService {
	s.bus = bus
	return s
}

// WithAudit records committed events in the audit log.
func (s *LaunchService) WithAudit(audit domain.AuditStore) *LaunchService {
	s.audit = audit
	return s
}

// WithCache serves product reads through cache.
func (s *LaunchService) WithCache(cache domain.ProductCache) *LaunchService {
	s.cache = cache
	return s
}

// WithNotifier forwards events and integrity alerts to n.
func (s *LaunchService) WithNotifier(n EventNotifier) *LaunchService {
	s.notifier = n
	return s
}

// WithLockTTL overrides DefaultLockTTL.
func (s *LaunchService) WithLockTTL(ttl time.Duration) *LaunchService {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// Protocol returns the loaded protocol config, if any.
func (s *LaunchService) Protocol() (domain.ProtocolConfig, bool) {
	cfg := s.protocol.Load()
	if cfg == nil {
		return domain.ProtocolConfig{}, false
	}
	return *cfg, true
}

func (s *LaunchService) maxSlotsPerBid() uint8 {
	if cfg := s.protocol.Load(); cfg != nil {
		return cfg.MaxSlotsPerBid
	}
	return domain.DefaultMaxSlotsPerBid
}

func productLockKey(product common.Address) string { return "product:" + product.Hex() }
func bidLockKey(bid common.Address) string         { return "bid:" + bid.Hex() }

// withLock runs fn while holding key.
func (s *LaunchService) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := s.locks.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	defer unlock()
	return fn()
}

// fail wraps err for op and escalates integrity failures.
func (s *LaunchService) fail(ctx context.Context, op string, err error) error {
	if domain.KindOf(err) == domain.KindIntegrity {
		s.logger.ErrorContext(ctx, "ledger integrity violation",
			slog.String("op", op),
			slog.String("code", string(domain.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		if s.notifier != nil {
			if nerr := s.notifier.NotifyAll(ctx, "ledger integrity violation", op+": "+err.Error()); nerr != nil {
				s.logger.WarnContext(ctx, "integrity alert failed", slog.String("error", nerr.Error()))
			}
		}
	}
	return fmt.Errorf("launch_service: %s: %w", op, err)
}

// emit publishes a committed event. Delivery failures are logged only; the
// ledger change has already happened.
func (s *LaunchService) emit(ctx context.Context, ev domain.Event) {
	ev.ID = s.newID()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.clock.Now()
	}

	if s.bus != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.WarnContext(ctx, "marshal event failed", slog.String("error", err.Error()))
		} else {
			if err := s.bus.Publish(ctx, domain.EventsChannel, payload); err != nil {
				s.logger.WarnContext(ctx, "publish event failed",
					slog.String("event", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
			if err := s.bus.StreamAppend(ctx, domain.EventsStream, payload); err != nil {
				s.logger.WarnContext(ctx, "stream append failed",
					slog.String("event", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, string(ev.Type), ev.Detail()); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyEvent(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "notify failed",
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, string(ev.Type),
		slog.String("actor", ev.Actor.Hex()),
		slog.String("product", ev.Product.Hex()),
		slog.Uint64("amount", ev.Amount),
	)
}

// commitProduct runs fn in one ledger transaction and, once it commits,
// writes *product to the cache. Callers hold the product lock, so cache
// writes land in commit order.
func (s *LaunchService) commitProduct(ctx context.Context, product *domain.Product, fn func(tx domain.LedgerTx) error) error {
	if err := s.ledger.Atomic(ctx, fn); err != nil {
		return err
	}
	s.cacheProduct(ctx, *product)
	return nil
}

func (s *LaunchService) cacheProduct(ctx context.Context, p domain.Product) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "cache product failed",
			slog.String("product", p.Address.Hex()),
			slog.String("error", err.Error()),
		)
	}
}
