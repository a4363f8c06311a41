package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Text field caps, in bytes.
const (
	MaxNameLen        = 50
	MaxDescriptionLen = 200
	MaxSymbolLen      = 10
)

// BidCloseOffset is how long before the launch date bidding closes.
const BidCloseOffset = 7 * 24 * time.Hour

// ProductPhase tracks the campaign lifecycle. Phases only move forward.
type ProductPhase string

const (
	ProductPhaseBidding   ProductPhase = "bidding"
	ProductPhaseLaunched  ProductPhase = "launched"
	ProductPhaseCompleted ProductPhase = "completed" // reserved; no operation enters it
)

// Rank orders phases so transitions can be checked for monotonicity.
func (p ProductPhase) Rank() int {
	switch p {
	case ProductPhaseBidding:
		return 0
	case ProductPhaseLaunched:
		return 1
	case ProductPhaseCompleted:
		return 2
	default:
		return -1
	}
}

// Product is a single token-launch campaign.
type Product struct {
	Address          common.Address
	Owner            common.Address
	Name             string
	Description      string
	TokenSymbol      string
	InitialDeposit   uint64
	TotalTokenSupply uint64
	IPOSlots         uint32
	ApprovedBids     uint32
	TokenMint        common.Address
	TokenPool        common.Address
	Treasury         common.Address
	LaunchDate       time.Time
	BidCloseDate     time.Time
	Phase            ProductPhase
	FundsClaimed     bool
	CreatedAt        time.Time
}

// LaunchArgs are the owner-supplied parameters of a new campaign.
type LaunchArgs struct {
	Name             string
	Description      string
	TokenSymbol      string
	InitialDeposit   uint64
	IPOSlots         uint32
	TotalTokenSupply uint64
	LaunchDate       time.Time
}

// Validate checks the launch bounds against now. It does not touch state.
func (a LaunchArgs) Validate(now time.Time) error {
	switch {
	case a.InitialDeposit == 0:
		return ErrZeroInitialDeposit
	case a.IPOSlots == 0:
		return ErrZeroIPOSlots
	case a.TotalTokenSupply == 0:
		return ErrZeroTokenSupply
	case !a.LaunchDate.After(now):
		return ErrInvalidLaunchDate
	case len(a.Name) > MaxNameLen:
		return ErrNameTooLong
	case len(a.Description) > MaxDescriptionLen:
		return ErrDescriptionTooLong
	case len(a.TokenSymbol) > MaxSymbolLen:
		return ErrSymbolTooLong
	}
	return nil
}

// NewProduct builds the initial campaign state for owner. Custody addresses
// are derived from the campaign address.
func NewProduct(owner common.Address, args LaunchArgs, now time.Time) Product {
	addr := ProductAddress(owner)
	launch := args.LaunchDate.UTC()
	return Product{
		Address:          addr,
		Owner:            owner,
		Name:             args.Name,
		Description:      args.Description,
		TokenSymbol:      args.TokenSymbol,
		InitialDeposit:   args.InitialDeposit,
		TotalTokenSupply: args.TotalTokenSupply,
		IPOSlots:         args.IPOSlots,
		ApprovedBids:     0,
		TokenMint:        MintAddress(addr),
		TokenPool:        PoolAddress(addr),
		Treasury:         TreasuryAddress(addr),
		LaunchDate:       launch,
		BidCloseDate:     launch.Add(-BidCloseOffset),
		Phase:            ProductPhaseBidding,
		FundsClaimed:     false,
		CreatedAt:        now.UTC(),
	}
}

// TokenPrice is the capital cost of one token, floor(deposit / supply).
func (p Product) TokenPrice() (uint64, error) {
	if p.TotalTokenSupply == 0 {
		return 0, ErrArithmeticOverflow
	}
	return p.InitialDeposit / p.TotalTokenSupply, nil
}

// CalculateTokenAmount converts a capital amount into a token allocation,
// floor(amount / price). A zero price is an error, never a zero allocation.
func (p Product) CalculateTokenAmount(amount uint64) (uint64, error) {
	price, err := p.TokenPrice()
	if err != nil {
		return 0, err
	}
	if price == 0 {
		return 0, ErrZeroTokenPrice
	}
	return amount / price, nil
}

// IsBiddingOpen reports whether new bids are accepted at now.
func (p Product) IsBiddingOpen(now time.Time) bool {
	return p.Phase == ProductPhaseBidding && now.Before(p.BidCloseDate)
}

// IsLaunched reports whether settlement is unlocked at now.
func (p Product) IsLaunched(now time.Time) bool {
	return !now.Before(p.LaunchDate)
}

// CanApproveMoreBids reports whether an approval slot remains.
func (p Product) CanApproveMoreBids() bool {
	return p.ApprovedBids < p.IPOSlots
}

// RemainingSlots is the number of approvals still available.
func (p Product) RemainingSlots() uint32 {
	if p.ApprovedBids >= p.IPOSlots {
		return 0
	}
	return p.IPOSlots - p.ApprovedBids
}

// AdvancePhase moves the product to next. Backward moves are refused.
func (p *Product) AdvancePhase(next ProductPhase) error {
	if next.Rank() < p.Phase.Rank() || next.Rank() < 0 {
		return ErrInvalidPhaseTransition.Wrap(errPhaseRegression{from: p.Phase, to: next})
	}
	p.Phase = next
	return nil
}

type errPhaseRegression struct {
	from, to ProductPhase
}

func (e errPhaseRegression) Error() string {
	return "phase cannot move from " + string(e.from) + " to " + string(e.to)
}
