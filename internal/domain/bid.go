package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultMaxSlotsPerBid caps SlotsRequested when the protocol config leaves it unset.
const DefaultMaxSlotsPerBid = 5

// BidStatus is the owner's decision on a bid. Approved and rejected are terminal.
type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusApproved BidStatus = "approved"
	BidStatusRejected BidStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s BidStatus) Valid() bool {
	switch s {
	case BidStatusPending, BidStatusApproved, BidStatusRejected:
		return true
	}
	return false
}

// Bid is one bidder's escrowed offer on a product.
type Bid struct {
	Address        common.Address
	Bidder         common.Address
	Product        common.Address
	Amount         uint64
	TokenAmount    uint64
	SlotsRequested uint8
	Status         BidStatus
	TokensClaimed  bool
	FundsClaimed   bool
	CreatedAt      time.Time
}

// NewBid builds a pending bid. TokenAmount is fixed here from the product price.
func NewBid(product Product, bidder common.Address, amount uint64, slots uint8, now time.Time) (Bid, error) {
	tokens, err := product.CalculateTokenAmount(amount)
	if err != nil {
		return Bid{}, err
	}
	return Bid{
		Address:        BidAddress(product.Address, bidder),
		Bidder:         bidder,
		Product:        product.Address,
		Amount:         amount,
		TokenAmount:    tokens,
		SlotsRequested: slots,
		Status:         BidStatusPending,
		CreatedAt:      now.UTC(),
	}, nil
}

// NormalizeSlots maps a zero request to one slot and checks the cap.
func NormalizeSlots(requested uint8, max uint8) (uint8, error) {
	if requested == 0 {
		requested = 1
	}
	if max == 0 {
		max = DefaultMaxSlotsPerBid
	}
	if requested > max {
		return 0, ErrSlotsOutOfRange
	}
	return requested, nil
}

// IsPending reports whether the owner has yet to decide on the bid.
func (b Bid) IsPending() bool { return b.Status == BidStatusPending }

// Approve marks a pending bid approved.
func (b *Bid) Approve() error {
	if b.Status != BidStatusPending {
		return ErrBidAlreadyProcessed
	}
	b.Status = BidStatusApproved
	return nil
}

// Reject marks a pending bid rejected and its escrow refunded.
func (b *Bid) Reject() error {
	if b.Status != BidStatusPending {
		return ErrBidAlreadyProcessed
	}
	b.Status = BidStatusRejected
	b.FundsClaimed = true
	return nil
}

// ClaimTokens marks the allocation of an approved bid as delivered.
func (b *Bid) ClaimTokens() error {
	if b.Status != BidStatusApproved {
		return ErrBidNotApproved
	}
	if b.TokensClaimed {
		return ErrTokensAlreadyClaimed
	}
	b.TokensClaimed = true
	return nil
}

// BidFilter narrows ListBids results. A zero Status matches every bid.
type BidFilter struct {
	Status BidStatus
	Limit  int
	Offset int
}
