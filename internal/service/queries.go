package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// CampaignView is a product together with its live custody balances.
type CampaignView struct {
	Product        domain.Product
	TokenPrice     uint64
	SumApproved    uint64
	TreasuryFunds  uint64
	PoolTokens     uint64
	RemainingSlots uint32
}

// GetProduct returns a product, reading through the cache when one is set.
func (s *LaunchService) GetProduct(ctx context.Context, addr common.Address) (domain.Product, error) {
	if s.cache != nil {
		p, err := s.cache.Get(ctx, addr)
		if err == nil {
			return p, nil
		}
		s.logger.DebugContext(ctx, "product cache miss",
			slog.String("product", addr.Hex()),
			slog.String("error", err.Error()),
		)
	}
	if s.cache == nil {
		p, err := s.ledger.GetProduct(ctx, addr)
		if err != nil {
			return domain.Product{}, fmt.Errorf("launch_service: get product: %w", err)
		}
		return p, nil
	}

	// Refill under the product lock so a slow reader cannot overwrite a
	// newer snapshot cached by a writer.
	var p domain.Product
	err := s.withLock(ctx, productLockKey(addr), func() error {
		var err error
		if p, err = s.ledger.GetProduct(ctx, addr); err != nil {
			return err
		}
		s.cacheProduct(ctx, p)
		return nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("launch_service: get product: %w", err)
	}
	return p, nil
}

// Campaign returns the product at addr with its balances. Reads go straight
// to the ledger so balances and counters agree.
func (s *LaunchService) Campaign(ctx context.Context, addr common.Address) (CampaignView, error) {
	p, err := s.ledger.GetProduct(ctx, addr)
	if err != nil {
		return CampaignView{}, fmt.Errorf("launch_service: campaign: %w", err)
	}
	view := CampaignView{Product: p, RemainingSlots: p.RemainingSlots()}
	view.TokenPrice, _ = p.TokenPrice()

	if view.SumApproved, err = s.ledger.SumApproved(ctx, addr); err != nil {
		return CampaignView{}, fmt.Errorf("launch_service: campaign: %w", err)
	}
	if view.TreasuryFunds, err = s.ledger.CapitalBalance(ctx, p.Treasury); err != nil {
		return CampaignView{}, fmt.Errorf("launch_service: campaign: %w", err)
	}
	if view.PoolTokens, err = s.ledger.TokenBalance(ctx, p.TokenMint, p.TokenPool); err != nil {
		return CampaignView{}, fmt.Errorf("launch_service: campaign: %w", err)
	}
	return view, nil
}

// ListProducts returns campaigns, newest first.
func (s *LaunchService) ListProducts(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	products, err := s.ledger.ListProducts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("launch_service: list products: %w", err)
	}
	return products, nil
}

// GetBid returns bidder's bid on product.
func (s *LaunchService) GetBid(ctx context.Context, product, bidder common.Address) (domain.Bid, error) {
	b, err := s.ledger.GetBid(ctx, domain.BidAddress(product, bidder))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("launch_service: get bid: %w", err)
	}
	return b, nil
}

// ListBids returns the bids on product matching filter.
func (s *LaunchService) ListBids(ctx context.Context, product common.Address, filter domain.BidFilter) ([]domain.Bid, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("launch_service: list bids: %w", domain.ErrInvalidBidStatus)
	}
	bids, err := s.ledger.ListBids(ctx, product, filter)
	if err != nil {
		return nil, fmt.Errorf("launch_service: list bids: %w", err)
	}
	return bids, nil
}

// CapitalBalance returns the capital held by account.
func (s *LaunchService) CapitalBalance(ctx context.Context, account common.Address) (uint64, error) {
	bal, err := s.ledger.CapitalBalance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("launch_service: capital balance: %w", err)
	}
	return bal, nil
}

// TokenBalance returns the amount of product's token held by account.
func (s *LaunchService) TokenBalance(ctx context.Context, product, account common.Address) (uint64, error) {
	bal, err := s.ledger.TokenBalance(ctx, domain.MintAddress(product), account)
	if err != nil {
		return 0, fmt.Errorf("launch_service: token balance: %w", err)
	}
	return bal, nil
}
