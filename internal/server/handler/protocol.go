package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// ProtocolService is the part of the service layer the protocol routes use.
type ProtocolService interface {
	Protocol() (domain.ProtocolConfig, bool)
	FundAccount(ctx context.Context, admin, account common.Address, amount uint64) (uint64, error)
}

// ProtocolHandler serves the protocol config and the admin faucet.
type ProtocolHandler struct {
	protocol ProtocolService
	logger   *slog.Logger
}

// NewProtocolHandler creates a ProtocolHandler.
func NewProtocolHandler(protocol ProtocolService, logger *slog.Logger) *ProtocolHandler {
	return &ProtocolHandler{
		protocol: protocol,
		logger:   logHandler(logger, "protocol"),
	}
}

type protocolResponse struct {
	Address        string    `json:"address"`
	Admin          string    `json:"admin"`
	MaxSlotsPerBid uint8     `json:"max_slots_per_bid"`
	CreatedAt      time.Time `json:"created_at"`
}

// GetProtocol returns the protocol config.
// GET /api/protocol
func (h *ProtocolHandler) GetProtocol(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.protocol.Protocol()
	if !ok {
		writeDomainError(w, r, h.logger, domain.ErrProtocolNotReady)
		return
	}
	writeJSON(w, http.StatusOK, protocolResponse{
		Address:        cfg.Address.Hex(),
		Admin:          cfg.Admin.Hex(),
		MaxSlotsPerBid: cfg.MaxSlotsPerBid,
		CreatedAt:      cfg.CreatedAt,
	})
}

type fundRequest struct {
	Account       string `json:"account"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`
}

// FundAccount credits capital to an account. Signer must be the admin.
// POST /api/protocol/fund
func (h *ProtocolHandler) FundAccount(w http.ResponseWriter, r *http.Request) {
	admin, err := caller(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	var req fundRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	account, err := domain.ParseAddress(req.Account)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	amount, err := parseAmount(req.Amount, req.AmountDisplay, domain.CapitalDecimals)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	balance, err := h.protocol.FundAccount(r.Context(), admin, account, amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account": account.Hex(),
		"balance": formatAmount(balance),
	})
}
