package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// InitProtocol creates the singleton protocol config with admin as its
// administrator. It fails with ErrAlreadyExists once a config is stored.
func (s *LaunchService) InitProtocol(ctx context.Context, admin common.Address, maxSlotsPerBid uint8) (domain.ProtocolConfig, error) {
	const op = "init protocol"
	cfg, err := domain.NewProtocolConfig(admin, maxSlotsPerBid, s.clock.Now())
	if err != nil {
		return domain.ProtocolConfig{}, s.fail(ctx, op, err)
	}
	err = s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		return tx.CreateProtocol(ctx, cfg)
	})
	if err != nil {
		return domain.ProtocolConfig{}, s.fail(ctx, op, err)
	}
	s.protocol.Store(&cfg)

	s.emit(ctx, domain.Event{
		Type:  domain.EventProtocolInitialized,
		Actor: admin,
	})
	return cfg, nil
}

// LoadProtocol reads the stored protocol config into the service.
func (s *LaunchService) LoadProtocol(ctx context.Context) (domain.ProtocolConfig, error) {
	cfg, err := s.ledger.GetProtocol(ctx)
	if err != nil {
		return domain.ProtocolConfig{}, s.fail(ctx, "load protocol", err)
	}
	s.protocol.Store(&cfg)
	return cfg, nil
}

// EnsureProtocol loads the stored config, creating it for admin on first
// start. A stored config with a different admin is kept and logged.
func (s *LaunchService) EnsureProtocol(ctx context.Context, admin common.Address, maxSlotsPerBid uint8) (domain.ProtocolConfig, error) {
	cfg, err := s.LoadProtocol(ctx)
	switch {
	case err == nil:
		if admin != (common.Address{}) && cfg.Admin != admin {
			s.logger.WarnContext(ctx, "stored protocol admin differs from operator",
				slog.String("stored", cfg.Admin.Hex()),
				slog.String("operator", admin.Hex()),
			)
		}
		return cfg, nil
	case errors.Is(err, domain.ErrNotFound):
		cfg, err = s.InitProtocol(ctx, admin, maxSlotsPerBid)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return s.LoadProtocol(ctx)
		}
		return cfg, err
	default:
		return domain.ProtocolConfig{}, err
	}
}

// FundAccount credits capital to account. Only the protocol admin may mint
// capital this way.
func (s *LaunchService) FundAccount(ctx context.Context, admin, account common.Address, amount uint64) (uint64, error) {
	const op = "fund account"
	cfg, ok := s.Protocol()
	if !ok {
		return 0, s.fail(ctx, op, domain.ErrProtocolNotReady)
	}
	if err := requireAdmin(cfg, admin); err != nil {
		return 0, s.fail(ctx, op, err)
	}
	if account == (common.Address{}) {
		return 0, s.fail(ctx, op, domain.ErrInvalidAddress)
	}
	if amount == 0 {
		return 0, s.fail(ctx, op, domain.ErrZeroFundingAmount)
	}

	var balance uint64
	err := s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
		if err := tx.CreditCapital(ctx, account, amount); err != nil {
			return err
		}
		var err error
		balance, err = tx.CapitalBalance(ctx, account)
		return err
	})
	if err != nil {
		return 0, s.fail(ctx, op, err)
	}

	s.emit(ctx, domain.Event{
		Type:    domain.EventAccountFunded,
		Actor:   admin,
		Account: account,
		Amount:  amount,
	})
	return balance, nil
}
