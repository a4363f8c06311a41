package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// BidService is the part of the service layer the bid routes use.
type BidService interface {
	PlaceBid(ctx context.Context, bidder, product common.Address, amount uint64, slots uint8) (domain.Bid, error)
	ApproveBid(ctx context.Context, owner, product, bidder common.Address) (domain.Bid, error)
	RejectBid(ctx context.Context, owner, product, bidder common.Address) (domain.Bid, error)
	ClaimTokens(ctx context.Context, bidder, product common.Address) (domain.Bid, error)
	GetBid(ctx context.Context, product, bidder common.Address) (domain.Bid, error)
	ListBids(ctx context.Context, product common.Address, filter domain.BidFilter) ([]domain.Bid, error)
}

// BidHandler serves bid endpoints nested under a campaign.
type BidHandler struct {
	bids   BidService
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bids BidService, logger *slog.Logger) *BidHandler {
	return &BidHandler{
		bids:   bids,
		logger: logHandler(logger, "bid"),
	}
}

type placeBidRequest struct {
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Slots         uint8  `json:"slots"`
}

// PlaceBid escrows a bid from the signer.
// POST /api/campaigns/{product}/bids
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidder, err := caller(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	product, err := pathAddress(r, "product")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	var req placeBidRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	amount, err := parseAmount(req.Amount, req.AmountDisplay, domain.CapitalDecimals)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	bid, err := h.bids.PlaceBid(r.Context(), bidder, product, amount, req.Slots)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBidResponse(bid))
}

// ListBids returns a campaign's bids, optionally filtered by status.
// GET /api/campaigns/{product}/bids?status=pending&limit=50&offset=0
func (h *BidHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	product, err := pathAddress(r, "product")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	opts := parseListOpts(r)
	bids, err := h.bids.ListBids(r.Context(), product, domain.BidFilter{
		Status: domain.BidStatus(r.URL.Query().Get("status")),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": newBidResponses(bids)})
}

// GetBid returns one bidder's bid.
// GET /api/campaigns/{product}/bids/{bidder}
func (h *BidHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	product, bidder, ok := h.bidPath(w, r)
	if !ok {
		return
	}
	bid, err := h.bids.GetBid(r.Context(), product, bidder)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBidResponse(bid))
}

// ApproveBid approves a pending bid. Signer must own the campaign.
// POST /api/campaigns/{product}/bids/{bidder}/approve
func (h *BidHandler) ApproveBid(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.bids.ApproveBid)
}

// RejectBid rejects and refunds a pending bid. Signer must own the campaign.
// POST /api/campaigns/{product}/bids/{bidder}/reject
func (h *BidHandler) RejectBid(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.bids.RejectBid)
}

// ClaimTokens releases the signer's token allocation.
// POST /api/campaigns/{product}/claim-tokens
func (h *BidHandler) ClaimTokens(w http.ResponseWriter, r *http.Request) {
	bidder, err := caller(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	product, err := pathAddress(r, "product")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	bid, err := h.bids.ClaimTokens(r.Context(), bidder, product)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBidResponse(bid))
}

func (h *BidHandler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, owner, product, bidder common.Address) (domain.Bid, error)) {
	owner, err := caller(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	product, bidder, ok := h.bidPath(w, r)
	if !ok {
		return
	}
	bid, err := fn(r.Context(), owner, product, bidder)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newBidResponse(bid))
}

func (h *BidHandler) bidPath(w http.ResponseWriter, r *http.Request) (product, bidder common.Address, ok bool) {
	product, err := pathAddress(r, "product")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return common.Address{}, common.Address{}, false
	}
	bidder, err = pathAddress(r, "bidder")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return common.Address{}, common.Address{}, false
	}
	return product, bidder, true
}
