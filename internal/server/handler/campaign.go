package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
	"github.com/alanyoungcy/launchpad/internal/service"
)

// CampaignService is the part of the service layer the campaign routes use.
type CampaignService interface {
	Launch(ctx context.Context, owner common.Address, args domain.LaunchArgs) (domain.Product, error)
	ClaimFunds(ctx context.Context, owner, product common.Address) (uint64, error)
	GetProduct(ctx context.Context, addr common.Address) (domain.Product, error)
	Campaign(ctx context.Context, addr common.Address) (service.CampaignView, error)
	ListProducts(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error)
}

// CampaignHandler serves campaign endpoints.
type CampaignHandler struct {
	campaigns CampaignService
	logger    *slog.Logger
}

// NewCampaignHandler creates a CampaignHandler.
func NewCampaignHandler(campaigns CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		logger:    logHandler(logger, "campaign"),
	}
}

type launchRequest struct {
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	TokenSymbol           string    `json:"token_symbol"`
	InitialDeposit        string    `json:"initial_deposit"`
	InitialDepositDisplay string    `json:"initial_deposit_display"`
	TotalTokenSupply      string    `json:"total_token_supply"`
	TotalTokenDisplay     string    `json:"total_token_supply_display"`
	IPOSlots              uint32    `json:"ipo_slots"`
	LaunchDate            time.Time `json:"launch_date"`
}

// Launch opens a campaign for the signer.
// POST /api/campaigns
func (h *CampaignHandler) Launch(w http.ResponseWriter, r *http.Request) {
	owner, err := caller(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	var req launchRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	deposit, err := parseAmount(req.InitialDeposit, req.InitialDepositDisplay, domain.CapitalDecimals)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	supply, err := parseAmount(req.TotalTokenSupply, req.TotalTokenDisplay, domain.TokenDecimals)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	p, err := h.campaigns.Launch(r.Context(), owner, domain.LaunchArgs{
		Name:             req.Name,
		Description:      req.Description,
		TokenSymbol:      req.TokenSymbol,
		InitialDeposit:   deposit,
		IPOSlots:         req.IPOSlots,
		TotalTokenSupply: supply,
		LaunchDate:       req.LaunchDate,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProductResponse(p))
}

// ListCampaigns returns campaigns, newest first.
// GET /api/campaigns?limit=50&offset=0
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	products, err := h.campaigns.ListProducts(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": out})
}

// GetCampaign returns one campaign. With ?detail=true the live custody
// balances are included.
// GET /api/campaigns/{product}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "product")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if r.URL.Query().Get("detail") == "true" {
		view, err := h.campaigns.Campaign(r.Context(), addr)
		if err != nil {
			writeDomainError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newCampaignResponse(view))
		return
	}
	p, err := h.campaigns.GetProduct(r.Context(), addr)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductResponse(p))
}

// ClaimFunds pays the campaign owner after the launch date.
// POST /api/campaigns/{product}/claim-funds
func (h *CampaignHandler) ClaimFunds(w http.ResponseWriter, r *http.Request) {
	owner, err := caller(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	addr, err := pathAddress(r, "product")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	payout, err := h.campaigns.ClaimFunds(r.Context(), owner, addr)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"product":        addr.Hex(),
		"payout":         formatAmount(payout),
		"payout_display": domain.FormatUnits(payout, domain.CapitalDecimals),
	})
}
