// Package memory provides in-process implementations of the domain storage
// and coordination interfaces. They back the single-node deployment and
// the test suites.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

type tokenKey struct {
	mint    common.Address
	account common.Address
}

type state struct {
	protocol *domain.ProtocolConfig
	products map[common.Address]domain.Product
	bids     map[common.Address]domain.Bid
	capital  map[common.Address]uint64
	tokens   map[tokenKey]uint64
}

func newState() *state {
	return &state{
		products: make(map[common.Address]domain.Product),
		bids:     make(map[common.Address]domain.Bid),
		capital:  make(map[common.Address]uint64),
		tokens:   make(map[tokenKey]uint64),
	}
}

// Ledger implements domain.Ledger in memory. Transactions are serialized by
// a single mutex and stage their writes until fn returns nil.
type Ledger struct {
	mu sync.RWMutex
	st *state
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{st: newState()}
}

// Atomic implements domain.Ledger.
func (l *Ledger) Atomic(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &ledgerTx{base: l.st, staged: newState()}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// GetProtocol implements domain.LedgerReader.
func (l *Ledger) GetProtocol(ctx context.Context) (domain.ProtocolConfig, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view().GetProtocol(ctx)
}

// GetProduct implements domain.LedgerReader.
func (l *Ledger) GetProduct(ctx context.Context, addr common.Address) (domain.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view().GetProduct(ctx, addr)
}

// GetBid implements domain.LedgerReader.
func (l *Ledger) GetBid(ctx context.Context, addr common.Address) (domain.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view().GetBid(ctx, addr)
}

// ListBids implements domain.LedgerReader.
func (l *Ledger) ListBids(ctx context.Context, product common.Address, filter domain.BidFilter) ([]domain.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view().ListBids(ctx, product, filter)
}

// SumApproved implements domain.LedgerReader.
func (l *Ledger) SumApproved(ctx context.Context, product common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view().SumApproved(ctx, product)
}

// CapitalBalance implements domain.LedgerReader.
func (l *Ledger) CapitalBalance(ctx context.Context, account common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view().CapitalBalance(ctx, account)
}

// TokenBalance implements domain.LedgerReader.
func (l *Ledger) TokenBalance(ctx context.Context, mint, account common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view().TokenBalance(ctx, mint, account)
}

// ListProducts returns products ordered by creation time, newest first.
func (l *Ledger) ListProducts(_ context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Product, 0, len(l.st.products))
	for _, p := range l.st.products {
		if opts.Since != nil && p.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && p.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].Address.Bytes(), out[j].Address.Bytes()) < 0
	})
	return paginate(out, opts.Offset, opts.Limit), nil
}

// view is a read-only transaction over committed state. Callers hold mu.
func (l *Ledger) view() *ledgerTx {
	return &ledgerTx{base: l.st, staged: newState()}
}

type ledgerTx struct {
	base   *state
	staged *state
}

func (tx *ledgerTx) commit() {
	if tx.staged.protocol != nil {
		tx.base.protocol = tx.staged.protocol
	}
	for k, v := range tx.staged.products {
		tx.base.products[k] = v
	}
	for k, v := range tx.staged.bids {
		tx.base.bids[k] = v
	}
	for k, v := range tx.staged.capital {
		tx.base.capital[k] = v
	}
	for k, v := range tx.staged.tokens {
		tx.base.tokens[k] = v
	}
}

func (tx *ledgerTx) GetProtocol(_ context.Context) (domain.ProtocolConfig, error) {
	if tx.staged.protocol != nil {
		return *tx.staged.protocol, nil
	}
	if tx.base.protocol != nil {
		return *tx.base.protocol, nil
	}
	return domain.ProtocolConfig{}, fmt.Errorf("memory: get protocol: %w", domain.ErrNotFound)
}

func (tx *ledgerTx) CreateProtocol(ctx context.Context, cfg domain.ProtocolConfig) error {
	if _, err := tx.GetProtocol(ctx); err == nil {
		return fmt.Errorf("memory: create protocol: %w", domain.ErrAlreadyExists)
	}
	tx.staged.protocol = &cfg
	return nil
}

func (tx *ledgerTx) GetProduct(_ context.Context, addr common.Address) (domain.Product, error) {
	if p, ok := tx.staged.products[addr]; ok {
		return p, nil
	}
	if p, ok := tx.base.products[addr]; ok {
		return p, nil
	}
	return domain.Product{}, fmt.Errorf("memory: get product %s: %w", addr.Hex(), domain.ErrNotFound)
}

func (tx *ledgerTx) CreateProduct(ctx context.Context, p domain.Product) error {
	if _, err := tx.GetProduct(ctx, p.Address); err == nil {
		return fmt.Errorf("memory: create product %s: %w", p.Address.Hex(), domain.ErrAlreadyExists)
	}
	tx.staged.products[p.Address] = p
	return nil
}

func (tx *ledgerTx) UpdateProduct(ctx context.Context, p domain.Product) error {
	if _, err := tx.GetProduct(ctx, p.Address); err != nil {
		return err
	}
	tx.staged.products[p.Address] = p
	return nil
}

func (tx *ledgerTx) GetBid(_ context.Context, addr common.Address) (domain.Bid, error) {
	if b, ok := tx.staged.bids[addr]; ok {
		return b, nil
	}
	if b, ok := tx.base.bids[addr]; ok {
		return b, nil
	}
	return domain.Bid{}, fmt.Errorf("memory: get bid %s: %w", addr.Hex(), domain.ErrNotFound)
}

func (tx *ledgerTx) CreateBid(ctx context.Context, b domain.Bid) error {
	if _, err := tx.GetBid(ctx, b.Address); err == nil {
		return fmt.Errorf("memory: create bid %s: %w", b.Address.Hex(), domain.ErrAlreadyExists)
	}
	tx.staged.bids[b.Address] = b
	return nil
}

func (tx *ledgerTx) UpdateBid(ctx context.Context, b domain.Bid) error {
	if _, err := tx.GetBid(ctx, b.Address); err != nil {
		return err
	}
	tx.staged.bids[b.Address] = b
	return nil
}

func (tx *ledgerTx) productBids(product common.Address) []domain.Bid {
	merged := make(map[common.Address]domain.Bid)
	for k, b := range tx.base.bids {
		if b.Product == product {
			merged[k] = b
		}
	}
	for k, b := range tx.staged.bids {
		if b.Product == product {
			merged[k] = b
		}
	}
	out := make([]domain.Bid, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].Address.Bytes(), out[j].Address.Bytes()) < 0
	})
	return out
}

func (tx *ledgerTx) ListBids(_ context.Context, product common.Address, filter domain.BidFilter) ([]domain.Bid, error) {
	all := tx.productBids(product)
	out := all[:0]
	for _, b := range all {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (tx *ledgerTx) SumApproved(_ context.Context, product common.Address) (uint64, error) {
	var total uint64
	for _, b := range tx.productBids(product) {
		if b.Status != domain.BidStatusApproved {
			continue
		}
		sum, err := domain.CheckedAdd(total, b.Amount)
		if err != nil {
			return 0, fmt.Errorf("memory: sum approved %s: %w", product.Hex(), err)
		}
		total = sum
	}
	return total, nil
}

func (tx *ledgerTx) CapitalBalance(_ context.Context, account common.Address) (uint64, error) {
	if v, ok := tx.staged.capital[account]; ok {
		return v, nil
	}
	return tx.base.capital[account], nil
}

func (tx *ledgerTx) CreditCapital(ctx context.Context, account common.Address, amount uint64) error {
	bal, _ := tx.CapitalBalance(ctx, account)
	next, err := domain.CheckedAdd(bal, amount)
	if err != nil {
		return fmt.Errorf("memory: credit %s: %w", account.Hex(), err)
	}
	tx.staged.capital[account] = next
	return nil
}

func (tx *ledgerTx) TransferCapital(ctx context.Context, from, to common.Address, amount uint64) error {
	bal, _ := tx.CapitalBalance(ctx, from)
	if bal < amount {
		return fmt.Errorf("memory: transfer from %s: %w", from.Hex(), domain.ErrInsufficientFunds)
	}
	if from == to {
		return nil
	}
	tx.staged.capital[from] = bal - amount
	return tx.CreditCapital(ctx, to, amount)
}

func (tx *ledgerTx) TokenBalance(_ context.Context, mint, account common.Address) (uint64, error) {
	k := tokenKey{mint: mint, account: account}
	if v, ok := tx.staged.tokens[k]; ok {
		return v, nil
	}
	return tx.base.tokens[k], nil
}

func (tx *ledgerTx) MintTokens(ctx context.Context, mint, to common.Address, amount uint64) error {
	bal, _ := tx.TokenBalance(ctx, mint, to)
	next, err := domain.CheckedAdd(bal, amount)
	if err != nil {
		return fmt.Errorf("memory: mint to %s: %w", to.Hex(), err)
	}
	tx.staged.tokens[tokenKey{mint: mint, account: to}] = next
	return nil
}

func (tx *ledgerTx) TransferTokens(ctx context.Context, mint, from, to common.Address, amount uint64) error {
	bal, _ := tx.TokenBalance(ctx, mint, from)
	if bal < amount {
		return fmt.Errorf("memory: token transfer from %s: %w", from.Hex(), domain.ErrInsufficientTokens)
	}
	if from == to {
		return nil
	}
	tx.staged.tokens[tokenKey{mint: mint, account: from}] = bal - amount
	return tx.MintTokens(ctx, mint, to, amount)
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
