package service

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// Guards run in order: authorization, then validation, then state. Each
// returns the first failing check as a typed domain error.

func requireCaller(caller common.Address) error {
	if caller == (common.Address{}) {
		return domain.ErrUnauthorized
	}
	return nil
}

func requireOwner(p domain.Product, caller common.Address) error {
	if p.Owner != caller {
		return domain.ErrUnauthorizedAccess
	}
	return nil
}

func requireBidder(b domain.Bid, caller common.Address) error {
	if b.Bidder != caller {
		return domain.ErrUnauthorizedAccess
	}
	return nil
}

func requireAdmin(cfg domain.ProtocolConfig, caller common.Address) error {
	if !cfg.IsAdmin(caller) {
		return domain.ErrUnauthorizedAccess
	}
	return nil
}

func validateBidAmount(amount uint64) error {
	if amount == 0 {
		return domain.ErrZeroBidAmount
	}
	return nil
}

// checkBiddingOpen distinguishes a settled campaign from a closed window.
func checkBiddingOpen(p domain.Product, now time.Time) error {
	if p.Phase != domain.ProductPhaseBidding {
		return domain.ErrNotInBiddingPhase
	}
	if !now.Before(p.BidCloseDate) {
		return domain.ErrBiddingPeriodEnded
	}
	return nil
}

func checkApprovable(p domain.Product, b domain.Bid) error {
	if !b.IsPending() {
		return domain.ErrBidAlreadyProcessed
	}
	if !p.CanApproveMoreBids() {
		return domain.ErrAllSlotsFilled
	}
	if p.Phase != domain.ProductPhaseBidding {
		return domain.ErrNotInBiddingPhase
	}
	return nil
}

func checkRejectable(b domain.Bid) error {
	if !b.IsPending() {
		return domain.ErrBidAlreadyProcessed
	}
	return nil
}

func checkFundsClaimable(p domain.Product, now time.Time) error {
	if !p.IsLaunched(now) {
		return domain.ErrLaunchDateNotReached
	}
	if p.FundsClaimed {
		return domain.ErrFundsAlreadyClaimed
	}
	return nil
}

func checkTokensClaimable(p domain.Product, b domain.Bid, now time.Time) error {
	if b.Status != domain.BidStatusApproved {
		return domain.ErrBidNotApproved
	}
	if b.TokensClaimed {
		return domain.ErrTokensAlreadyClaimed
	}
	if !p.IsLaunched(now) {
		return domain.ErrLaunchDateNotReached
	}
	return nil
}

// checkCustody is the integrity check run before any debit from a custody account.
func checkCustody(balance, due uint64, shortfall *domain.Error) error {
	if balance < due {
		return shortfall
	}
	return nil
}
