package service

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// Launch opens a campaign for owner. The initial deposit moves from the
// owner into the campaign treasury and the full token supply is minted into
// the campaign pool.
func (s *LaunchService) Launch(ctx context.Context, owner common.Address, args domain.LaunchArgs) (domain.Product, error) {
	const op = "launch"
	if err := requireCaller(owner); err != nil {
		return domain.Product{}, s.fail(ctx, op, err)
	}
	now := s.clock.Now()
	if err := args.Validate(now); err != nil {
		return domain.Product{}, s.fail(ctx, op, err)
	}

	product := domain.NewProduct(owner, args, now)
	err := s.withLock(ctx, productLockKey(product.Address), func() error {
		return s.commitProduct(ctx, &product, func(tx domain.LedgerTx) error {
			if err := tx.CreateProduct(ctx, product); err != nil {
				return err
			}
			if err := tx.TransferCapital(ctx, owner, product.Treasury, product.InitialDeposit); err != nil {
				return err
			}
			return tx.MintTokens(ctx, product.TokenMint, product.TokenPool, product.TotalTokenSupply)
		})
	})
	if err != nil {
		return domain.Product{}, s.fail(ctx, op, err)
	}

	s.emit(ctx, domain.Event{
		Type:    domain.EventProductLaunched,
		Actor:   owner,
		Product: product.Address,
		Amount:  product.InitialDeposit,
	})
	return product, nil
}

// PlaceBid escrows amount from bidder into the campaign treasury and records
// a pending bid with its token allocation fixed at the current price.
func (s *LaunchService) PlaceBid(ctx context.Context, bidder, productAddr common.Address, amount uint64, slots uint8) (domain.Bid, error) {
	const op = "place bid"
	if err := requireCaller(bidder); err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}
	if err := validateBidAmount(amount); err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}
	slots, err := domain.NormalizeSlots(slots, s.maxSlotsPerBid())
	if err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}

	var bid domain.Bid
	bidAddr := domain.BidAddress(productAddr, bidder)
	err = s.withLock(ctx, bidLockKey(bidAddr), func() error {
		return s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
			product, err := tx.GetProduct(ctx, productAddr)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			if err := checkBiddingOpen(product, now); err != nil {
				return err
			}
			bid, err = domain.NewBid(product, bidder, amount, slots, now)
			if err != nil {
				return err
			}
			if err := tx.CreateBid(ctx, bid); err != nil {
				return err
			}
			return tx.TransferCapital(ctx, bidder, product.Treasury, amount)
		})
	})
	if err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}

	s.emit(ctx, domain.Event{
		Type:    domain.EventBidPlaced,
		Actor:   bidder,
		Product: productAddr,
		Bid:     bid.Address,
		Amount:  amount,
	})
	return bid, nil
}

// ApproveBid accepts bidder's pending bid and consumes one slot.
func (s *LaunchService) ApproveBid(ctx context.Context, owner, productAddr, bidder common.Address) (domain.Bid, error) {
	const op = "approve bid"
	if err := requireCaller(owner); err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}

	var (
		bid     domain.Bid
		product domain.Product
	)
	err := s.withLock(ctx, productLockKey(productAddr), func() error {
		return s.commitProduct(ctx, &product, func(tx domain.LedgerTx) error {
			var err error
			product, err = tx.GetProduct(ctx, productAddr)
			if err != nil {
				return err
			}
			if err := requireOwner(product, owner); err != nil {
				return err
			}
			bid, err = tx.GetBid(ctx, domain.BidAddress(productAddr, bidder))
			if err != nil {
				return err
			}
			if err := checkApprovable(product, bid); err != nil {
				return err
			}
			if err := bid.Approve(); err != nil {
				return err
			}
			product.ApprovedBids++
			if err := tx.UpdateBid(ctx, bid); err != nil {
				return err
			}
			return tx.UpdateProduct(ctx, product)
		})
	})
	if err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}

	s.emit(ctx, domain.Event{
		Type:    domain.EventBidApproved,
		Actor:   owner,
		Product: productAddr,
		Bid:     bid.Address,
		Amount:  bid.Amount,
	})
	return bid, nil
}

// RejectBid refuses bidder's pending bid and refunds the escrowed amount in
// the same transaction.
func (s *LaunchService) RejectBid(ctx context.Context, owner, productAddr, bidder common.Address) (domain.Bid, error) {
	const op = "reject bid"
	if err := requireCaller(owner); err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}

	var bid domain.Bid
	err := s.withLock(ctx, productLockKey(productAddr), func() error {
		return s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
			product, err := tx.GetProduct(ctx, productAddr)
			if err != nil {
				return err
			}
			if err := requireOwner(product, owner); err != nil {
				return err
			}
			bid, err = tx.GetBid(ctx, domain.BidAddress(productAddr, bidder))
			if err != nil {
				return err
			}
			if err := checkRejectable(bid); err != nil {
				return err
			}
			balance, err := tx.CapitalBalance(ctx, product.Treasury)
			if err != nil {
				return err
			}
			if err := checkCustody(balance, bid.Amount, domain.ErrTreasuryInsufficient); err != nil {
				return err
			}
			if err := bid.Reject(); err != nil {
				return err
			}
			if err := tx.TransferCapital(ctx, product.Treasury, bid.Bidder, bid.Amount); err != nil {
				return custodyError(err, domain.ErrTreasuryInsufficient)
			}
			return tx.UpdateBid(ctx, bid)
		})
	})
	if err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}

	s.emit(ctx, domain.Event{
		Type:    domain.EventBidRejected,
		Actor:   owner,
		Product: productAddr,
		Bid:     bid.Address,
		Amount:  bid.Amount,
	})
	return bid, nil
}

// ClaimFunds pays the owner every approved bid amount plus the initial
// deposit and moves the campaign to the launched phase. Pending bids stay
// refundable through RejectBid.
func (s *LaunchService) ClaimFunds(ctx context.Context, owner, productAddr common.Address) (uint64, error) {
	const op = "claim funds"
	if err := requireCaller(owner); err != nil {
		return 0, s.fail(ctx, op, err)
	}

	var (
		payout  uint64
		product domain.Product
	)
	err := s.withLock(ctx, productLockKey(productAddr), func() error {
		return s.commitProduct(ctx, &product, func(tx domain.LedgerTx) error {
			var err error
			product, err = tx.GetProduct(ctx, productAddr)
			if err != nil {
				return err
			}
			if err := requireOwner(product, owner); err != nil {
				return err
			}
			if err := checkFundsClaimable(product, s.clock.Now()); err != nil {
				return err
			}
			approved, err := tx.SumApproved(ctx, productAddr)
			if err != nil {
				return err
			}
			payout, err = domain.CheckedAdd(approved, product.InitialDeposit)
			if err != nil {
				return err
			}
			balance, err := tx.CapitalBalance(ctx, product.Treasury)
			if err != nil {
				return err
			}
			if err := checkCustody(balance, payout, domain.ErrTreasuryInsufficient); err != nil {
				return err
			}
			if err := tx.TransferCapital(ctx, product.Treasury, owner, payout); err != nil {
				return custodyError(err, domain.ErrTreasuryInsufficient)
			}
			product.FundsClaimed = true
			if err := product.AdvancePhase(domain.ProductPhaseLaunched); err != nil {
				return err
			}
			return tx.UpdateProduct(ctx, product)
		})
	})
	if err != nil {
		return 0, s.fail(ctx, op, err)
	}

	s.emit(ctx, domain.Event{
		Type:    domain.EventFundsClaimed,
		Actor:   owner,
		Product: productAddr,
		Amount:  payout,
	})
	return payout, nil
}

// ClaimTokens moves bidder's allocation from the campaign pool into the
// bidder's token balance. Each approved bid claims exactly once.
func (s *LaunchService) ClaimTokens(ctx context.Context, bidder, productAddr common.Address) (domain.Bid, error) {
	const op = "claim tokens"
	if err := requireCaller(bidder); err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}

	var bid domain.Bid
	bidAddr := domain.BidAddress(productAddr, bidder)
	err := s.withLock(ctx, bidLockKey(bidAddr), func() error {
		return s.ledger.Atomic(ctx, func(tx domain.LedgerTx) error {
			product, err := tx.GetProduct(ctx, productAddr)
			if err != nil {
				return err
			}
			bid, err = tx.GetBid(ctx, bidAddr)
			if err != nil {
				return err
			}
			if err := requireBidder(bid, bidder); err != nil {
				return err
			}
			if err := checkTokensClaimable(product, bid, s.clock.Now()); err != nil {
				return err
			}
			if err := bid.ClaimTokens(); err != nil {
				return err
			}
			if err := tx.TransferTokens(ctx, product.TokenMint, product.TokenPool, bidder, bid.TokenAmount); err != nil {
				return err
			}
			return tx.UpdateBid(ctx, bid)
		})
	})
	if err != nil {
		return domain.Bid{}, s.fail(ctx, op, err)
	}

	s.emit(ctx, domain.Event{
		Type:    domain.EventTokensClaimed,
		Actor:   bidder,
		Product: productAddr,
		Bid:     bid.Address,
		Amount:  bid.TokenAmount,
	})
	return bid, nil
}

// custodyError reports a failed debit from a custody account as an
// integrity violation rather than a user-facing balance error.
func custodyError(err error, integrity *domain.Error) error {
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return integrity.Wrap(err)
	}
	return err
}
