package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// BalanceService reads ledger balances.
type BalanceService interface {
	CapitalBalance(ctx context.Context, account common.Address) (uint64, error)
	TokenBalance(ctx context.Context, product, account common.Address) (uint64, error)
}

// AccountHandler serves account balance lookups.
type AccountHandler struct {
	balances BalanceService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(balances BalanceService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		balances: balances,
		logger:   logHandler(logger, "account"),
	}
}

type balanceResponse struct {
	Account        string `json:"account"`
	Capital        string `json:"capital"`
	CapitalDisplay string `json:"capital_display"`
	Product        string `json:"product,omitempty"`
	Tokens         string `json:"tokens,omitempty"`
	TokensDisplay  string `json:"tokens_display,omitempty"`
}

// GetBalance returns an account's capital balance and, with ?product=, its
// holdings of that campaign's token.
// GET /api/accounts/{account}/balance?product=0x...
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := pathAddress(r, "account")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	capital, err := h.balances.CapitalBalance(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	resp := balanceResponse{
		Account:        account.Hex(),
		Capital:        formatAmount(capital),
		CapitalDisplay: domain.FormatUnits(capital, domain.CapitalDecimals),
	}

	if raw := r.URL.Query().Get("product"); raw != "" {
		product, err := domain.ParseAddress(raw)
		if err != nil {
			writeDomainError(w, r, h.logger, err)
			return
		}
		tokens, err := h.balances.TokenBalance(r.Context(), product, account)
		if err != nil {
			writeDomainError(w, r, h.logger, err)
			return
		}
		resp.Product = product.Hex()
		resp.Tokens = formatAmount(tokens)
		resp.TokensDisplay = domain.FormatUnits(tokens, domain.TokenDecimals)
	}
	writeJSON(w, http.StatusOK, resp)
}
