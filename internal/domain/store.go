package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LedgerReader is the read side of the escrow ledger. Reads through a
// LedgerTx observe the transaction's own writes.
type LedgerReader interface {
	GetProtocol(ctx context.Context) (ProtocolConfig, error)
	GetProduct(ctx context.Context, addr common.Address) (Product, error)
	GetBid(ctx context.Context, addr common.Address) (Bid, error)
	ListBids(ctx context.Context, product common.Address, filter BidFilter) ([]Bid, error)
	// SumApproved totals Amount over the approved bids of product.
	SumApproved(ctx context.Context, product common.Address) (uint64, error)
	CapitalBalance(ctx context.Context, account common.Address) (uint64, error)
	TokenBalance(ctx context.Context, mint, account common.Address) (uint64, error)
}

// LedgerTx is one atomic unit of ledger work. Create methods fail with
// ErrAlreadyExists when the address is taken; Update and Get methods fail
// with ErrNotFound for unknown addresses.
type LedgerTx interface {
	LedgerReader

	CreateProtocol(ctx context.Context, cfg ProtocolConfig) error
	CreateProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	CreateBid(ctx context.Context, b Bid) error
	UpdateBid(ctx context.Context, b Bid) error

	// TransferCapital moves amount between accounts, failing with
	// ErrInsufficientFunds when from cannot cover it.
	TransferCapital(ctx context.Context, from, to common.Address, amount uint64) error
	CreditCapital(ctx context.Context, account common.Address, amount uint64) error

	// MintTokens creates amount new tokens of mint in account to.
	MintTokens(ctx context.Context, mint, to common.Address, amount uint64) error
	// TransferTokens moves tokens of mint, failing with ErrInsufficientTokens
	// when from cannot cover it.
	TransferTokens(ctx context.Context, mint, from, to common.Address, amount uint64) error
}

// Ledger persists products, bids and custody balances. Atomic runs fn in a
// single transaction: if fn returns an error nothing it wrote is kept.
type Ledger interface {
	LedgerReader
	ListProducts(ctx context.Context, opts ListOpts) ([]Product, error)
	Atomic(ctx context.Context, fn func(tx LedgerTx) error) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
