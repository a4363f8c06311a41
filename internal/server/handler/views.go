package handler

import (
	"time"

	"github.com/alanyoungcy/launchpad/internal/domain"
	"github.com/alanyoungcy/launchpad/internal/service"
)

// Amounts are rendered twice: base units as a decimal integer string, and
// display units with the configured decimals.

type productResponse struct {
	Address               string    `json:"address"`
	Owner                 string    `json:"owner"`
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	TokenSymbol           string    `json:"token_symbol"`
	InitialDeposit        string    `json:"initial_deposit"`
	InitialDepositDisplay string    `json:"initial_deposit_display"`
	TotalTokenSupply      string    `json:"total_token_supply"`
	TokenPrice            string    `json:"token_price"`
	IPOSlots              uint32    `json:"ipo_slots"`
	ApprovedBids          uint32    `json:"approved_bids"`
	TokenMint             string    `json:"token_mint"`
	TokenPool             string    `json:"token_pool"`
	Treasury              string    `json:"treasury"`
	LaunchDate            time.Time `json:"launch_date"`
	BidCloseDate          time.Time `json:"bid_close_date"`
	Phase                 string    `json:"phase"`
	FundsClaimed          bool      `json:"funds_claimed"`
	CreatedAt             time.Time `json:"created_at"`
}

func newProductResponse(p domain.Product) productResponse {
	price, _ := p.TokenPrice()
	return productResponse{
		Address:               p.Address.Hex(),
		Owner:                 p.Owner.Hex(),
		Name:                  p.Name,
		Description:           p.Description,
		TokenSymbol:           p.TokenSymbol,
		InitialDeposit:        formatAmount(p.InitialDeposit),
		InitialDepositDisplay: domain.FormatUnits(p.InitialDeposit, domain.CapitalDecimals),
		TotalTokenSupply:      formatAmount(p.TotalTokenSupply),
		TokenPrice:            formatAmount(price),
		IPOSlots:              p.IPOSlots,
		ApprovedBids:          p.ApprovedBids,
		TokenMint:             p.TokenMint.Hex(),
		TokenPool:             p.TokenPool.Hex(),
		Treasury:              p.Treasury.Hex(),
		LaunchDate:            p.LaunchDate,
		BidCloseDate:          p.BidCloseDate,
		Phase:                 string(p.Phase),
		FundsClaimed:          p.FundsClaimed,
		CreatedAt:             p.CreatedAt,
	}
}

type campaignResponse struct {
	productResponse
	PriceDisplay   string `json:"token_price_display"`
	SumApproved    string `json:"sum_approved"`
	TreasuryFunds  string `json:"treasury_funds"`
	PoolTokens     string `json:"pool_tokens"`
	RemainingSlots uint32 `json:"remaining_slots"`
}

func newCampaignResponse(v service.CampaignView) campaignResponse {
	return campaignResponse{
		productResponse: newProductResponse(v.Product),
		PriceDisplay:    domain.PriceDisplay(v.Product),
		SumApproved:     formatAmount(v.SumApproved),
		TreasuryFunds:   formatAmount(v.TreasuryFunds),
		PoolTokens:      formatAmount(v.PoolTokens),
		RemainingSlots:  v.RemainingSlots,
	}
}

type bidResponse struct {
	Address        string    `json:"address"`
	Bidder         string    `json:"bidder"`
	Product        string    `json:"product"`
	Amount         string    `json:"amount"`
	AmountDisplay  string    `json:"amount_display"`
	TokenAmount    string    `json:"token_amount"`
	SlotsRequested uint8     `json:"slots_requested"`
	Status         string    `json:"status"`
	TokensClaimed  bool      `json:"tokens_claimed"`
	FundsClaimed   bool      `json:"funds_claimed"`
	CreatedAt      time.Time `json:"created_at"`
}

func newBidResponse(b domain.Bid) bidResponse {
	return bidResponse{
		Address:        b.Address.Hex(),
		Bidder:         b.Bidder.Hex(),
		Product:        b.Product.Hex(),
		Amount:         formatAmount(b.Amount),
		AmountDisplay:  domain.FormatUnits(b.Amount, domain.CapitalDecimals),
		TokenAmount:    formatAmount(b.TokenAmount),
		SlotsRequested: b.SlotsRequested,
		Status:         string(b.Status),
		TokensClaimed:  b.TokensClaimed,
		FundsClaimed:   b.FundsClaimed,
		CreatedAt:      b.CreatedAt,
	}
}

func newBidResponses(bids []domain.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, newBidResponse(b))
	}
	return out
}
