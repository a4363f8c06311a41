package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// Ledger implements domain.Ledger. Each Atomic call runs in one pgx
// transaction and locks the rows it reads with FOR UPDATE.
type Ledger struct {
	pool *pgxpool.Pool
	reader
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool, reader: reader{q: pool}}
}

// Atomic implements domain.Ledger.
func (l *Ledger) Atomic(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	return pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		return fn(&ledgerTx{reader: reader{q: tx, forUpdate: true}})
	})
}

// ListProducts returns products newest first.
func (l *Ledger) ListProducts(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY created_at DESC, address"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list products rows: %w", err)
	}
	return out, nil
}

const productColumns = `address, owner, name, description, token_symbol,
	initial_deposit::text, total_token_supply::text, ipo_slots, approved_bids,
	token_mint, token_pool, treasury, launch_date, bid_close_date, phase,
	funds_claimed, created_at`

const bidColumns = `address, bidder, product, amount::text, token_amount::text,
	slots_requested, status, tokens_claimed, funds_claimed, created_at`

type reader struct {
	q         querier
	forUpdate bool
}

func (r reader) lockClause() string {
	if r.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (r reader) GetProtocol(ctx context.Context) (domain.ProtocolConfig, error) {
	var (
		cfg         domain.ProtocolConfig
		addr, admin string
		maxSlots    int16
	)
	err := r.q.QueryRow(ctx,
		`SELECT address, admin, max_slots_per_bid, created_at FROM protocol_config LIMIT 1`,
	).Scan(&addr, &admin, &maxSlots, &cfg.CreatedAt)
	if err != nil {
		return domain.ProtocolConfig{}, fmt.Errorf("postgres: get protocol: %w", mapError(err))
	}
	cfg.Address = common.HexToAddress(addr)
	cfg.Admin = common.HexToAddress(admin)
	cfg.MaxSlotsPerBid = uint8(maxSlots)
	return cfg, nil
}

func (r reader) GetProduct(ctx context.Context, addr common.Address) (domain.Product, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE address = $1`+r.lockClause(), addr.Hex())
	p, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, fmt.Errorf("postgres: get product %s: %w", addr.Hex(), mapError(err))
	}
	return p, nil
}

func (r reader) GetBid(ctx context.Context, addr common.Address) (domain.Bid, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE address = $1`+r.lockClause(), addr.Hex())
	b, err := scanBid(row)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("postgres: get bid %s: %w", addr.Hex(), mapError(err))
	}
	return b, nil
}

func (r reader) ListBids(ctx context.Context, product common.Address, filter domain.BidFilter) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE product = $1`
	args := []any{product.Hex()}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += " ORDER BY created_at, address"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids %s: %w", product.Hex(), err)
	}
	defer rows.Close()

	var out []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bid: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bids rows: %w", err)
	}
	return out, nil
}

func (r reader) SumApproved(ctx context.Context, product common.Address) (uint64, error) {
	var sum string
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM bids WHERE product = $1 AND status = $2`,
		product.Hex(), string(domain.BidStatusApproved),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum approved %s: %w", product.Hex(), err)
	}
	v, err := parseAmount(sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum approved %s: %w", product.Hex(), err)
	}
	return v, nil
}

func (r reader) CapitalBalance(ctx context.Context, account common.Address) (uint64, error) {
	return r.balance(ctx,
		`SELECT balance::text FROM capital_balances WHERE account = $1`+r.lockClause(),
		account.Hex())
}

func (r reader) TokenBalance(ctx context.Context, mint, account common.Address) (uint64, error) {
	return r.balance(ctx,
		`SELECT balance::text FROM token_balances WHERE mint = $1 AND account = $2`+r.lockClause(),
		mint.Hex(), account.Hex())
}

func (r reader) balance(ctx context.Context, query string, args ...any) (uint64, error) {
	var s string
	err := r.q.QueryRow(ctx, query, args...).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: read balance: %w", err)
	}
	return parseAmount(s)
}

type ledgerTx struct {
	reader
}

func (tx *ledgerTx) CreateProtocol(ctx context.Context, cfg domain.ProtocolConfig) error {
	_, err := tx.q.Exec(ctx,
		`INSERT INTO protocol_config (address, admin, max_slots_per_bid, created_at) VALUES ($1, $2, $3, $4)`,
		cfg.Address.Hex(), cfg.Admin.Hex(), int16(cfg.MaxSlotsPerBid), cfg.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create protocol: %w", mapError(err))
	}
	return nil
}

func (tx *ledgerTx) CreateProduct(ctx context.Context, p domain.Product) error {
	const query = `
		INSERT INTO products (address, owner, name, description, token_symbol,
			initial_deposit, total_token_supply, ipo_slots, approved_bids,
			token_mint, token_pool, treasury, launch_date, bid_close_date, phase,
			funds_claimed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := tx.q.Exec(ctx, query,
		p.Address.Hex(), p.Owner.Hex(), p.Name, p.Description, p.TokenSymbol,
		formatAmount(p.InitialDeposit), formatAmount(p.TotalTokenSupply),
		int64(p.IPOSlots), int64(p.ApprovedBids),
		p.TokenMint.Hex(), p.TokenPool.Hex(), p.Treasury.Hex(),
		p.LaunchDate, p.BidCloseDate, string(p.Phase), p.FundsClaimed, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create product %s: %w", p.Address.Hex(), mapError(err))
	}
	return nil
}

// UpdateProduct writes the mutable lifecycle fields.
func (tx *ledgerTx) UpdateProduct(ctx context.Context, p domain.Product) error {
	tag, err := tx.q.Exec(ctx,
		`UPDATE products SET approved_bids = $2, phase = $3, funds_claimed = $4 WHERE address = $1`,
		p.Address.Hex(), int64(p.ApprovedBids), string(p.Phase), p.FundsClaimed)
	if err != nil {
		return fmt.Errorf("postgres: update product %s: %w", p.Address.Hex(), mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update product %s: %w", p.Address.Hex(), domain.ErrNotFound)
	}
	return nil
}

func (tx *ledgerTx) CreateBid(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (address, bidder, product, amount, token_amount,
			slots_requested, status, tokens_claimed, funds_claimed, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10)`
	_, err := tx.q.Exec(ctx, query,
		b.Address.Hex(), b.Bidder.Hex(), b.Product.Hex(),
		formatAmount(b.Amount), formatAmount(b.TokenAmount),
		int16(b.SlotsRequested), string(b.Status), b.TokensClaimed, b.FundsClaimed, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create bid %s: %w", b.Address.Hex(), mapError(err))
	}
	return nil
}

// UpdateBid writes the mutable lifecycle fields.
func (tx *ledgerTx) UpdateBid(ctx context.Context, b domain.Bid) error {
	tag, err := tx.q.Exec(ctx,
		`UPDATE bids SET status = $2, tokens_claimed = $3, funds_claimed = $4 WHERE address = $1`,
		b.Address.Hex(), string(b.Status), b.TokensClaimed, b.FundsClaimed)
	if err != nil {
		return fmt.Errorf("postgres: update bid %s: %w", b.Address.Hex(), mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update bid %s: %w", b.Address.Hex(), domain.ErrNotFound)
	}
	return nil
}

func (tx *ledgerTx) CreditCapital(ctx context.Context, account common.Address, amount uint64) error {
	_, err := tx.q.Exec(ctx, `
		INSERT INTO capital_balances (account, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = capital_balances.balance + EXCLUDED.balance`,
		account.Hex(), formatAmount(amount))
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account.Hex(), mapError(err))
	}
	return nil
}

func (tx *ledgerTx) TransferCapital(ctx context.Context, from, to common.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	tag, err := tx.q.Exec(ctx,
		`UPDATE capital_balances SET balance = balance - $2::numeric WHERE account = $1 AND balance >= $2::numeric`,
		from.Hex(), formatAmount(amount))
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from.Hex(), mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: debit %s: %w", from.Hex(), domain.ErrInsufficientFunds)
	}
	return tx.CreditCapital(ctx, to, amount)
}

func (tx *ledgerTx) MintTokens(ctx context.Context, mint, to common.Address, amount uint64) error {
	_, err := tx.q.Exec(ctx, `
		INSERT INTO token_balances (mint, account, balance) VALUES ($1, $2, $3::numeric)
		ON CONFLICT (mint, account) DO UPDATE SET balance = token_balances.balance + EXCLUDED.balance`,
		mint.Hex(), to.Hex(), formatAmount(amount))
	if err != nil {
		return fmt.Errorf("postgres: mint to %s: %w", to.Hex(), mapError(err))
	}
	return nil
}

func (tx *ledgerTx) TransferTokens(ctx context.Context, mint, from, to common.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	tag, err := tx.q.Exec(ctx, `
		UPDATE token_balances SET balance = balance - $3::numeric
		WHERE mint = $1 AND account = $2 AND balance >= $3::numeric`,
		mint.Hex(), from.Hex(), formatAmount(amount))
	if err != nil {
		return fmt.Errorf("postgres: token debit %s: %w", from.Hex(), mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: token debit %s: %w", from.Hex(), domain.ErrInsufficientTokens)
	}
	return tx.MintTokens(ctx, mint, to, amount)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p                                 domain.Product
		addr, owner, mint, pool, treasury string
		deposit, supply                   string
		slots, approved                   int64
		phase                             string
	)
	err := row.Scan(&addr, &owner, &p.Name, &p.Description, &p.TokenSymbol,
		&deposit, &supply, &slots, &approved,
		&mint, &pool, &treasury, &p.LaunchDate, &p.BidCloseDate, &phase,
		&p.FundsClaimed, &p.CreatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	if p.InitialDeposit, err = parseAmount(deposit); err != nil {
		return domain.Product{}, err
	}
	if p.TotalTokenSupply, err = parseAmount(supply); err != nil {
		return domain.Product{}, err
	}
	p.Address = common.HexToAddress(addr)
	p.Owner = common.HexToAddress(owner)
	p.TokenMint = common.HexToAddress(mint)
	p.TokenPool = common.HexToAddress(pool)
	p.Treasury = common.HexToAddress(treasury)
	p.IPOSlots = uint32(slots)
	p.ApprovedBids = uint32(approved)
	p.Phase = domain.ProductPhase(phase)
	p.LaunchDate = p.LaunchDate.UTC()
	p.BidCloseDate = p.BidCloseDate.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func scanBid(row rowScanner) (domain.Bid, error) {
	var (
		b                     domain.Bid
		addr, bidder, product string
		amount, tokens        string
		slots                 int16
		status                string
		createdAt             time.Time
	)
	err := row.Scan(&addr, &bidder, &product, &amount, &tokens,
		&slots, &status, &b.TokensClaimed, &b.FundsClaimed, &createdAt)
	if err != nil {
		return domain.Bid{}, err
	}
	if b.Amount, err = parseAmount(amount); err != nil {
		return domain.Bid{}, err
	}
	if b.TokenAmount, err = parseAmount(tokens); err != nil {
		return domain.Bid{}, err
	}
	b.Address = common.HexToAddress(addr)
	b.Bidder = common.HexToAddress(bidder)
	b.Product = common.HexToAddress(product)
	b.SlotsRequested = uint8(slots)
	b.Status = domain.BidStatus(status)
	b.CreatedAt = createdAt.UTC()
	return b, nil
}

// Amounts are NUMERIC(20,0) columns exchanged as decimal text so the full
// uint64 range survives the round trip.
func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("postgres: parse amount %q: %w", s, domain.ErrArithmeticOverflow.Wrap(err))
	}
	return v, nil
}
