package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
	"github.com/alanyoungcy/launchpad/internal/store/memory"
)

var (
	admin  = common.HexToAddress("0xad00000000000000000000000000000000000001")
	owner  = common.HexToAddress("0x0a00000000000000000000000000000000000002")
	bidder = common.HexToAddress("0xb100000000000000000000000000000000000003")
	other  = common.HexToAddress("0xb200000000000000000000000000000000000004")

	start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	alerts []string
}

func (n *recordingNotifier) NotifyEvent(_ context.Context, ev domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) NotifyAll(_ context.Context, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, title)
	return nil
}

type fixture struct {
	ctx      context.Context
	svc      *LaunchService
	ledger   *memory.Ledger
	clock    *domain.FixedClock
	bus      *memory.SignalBus
	audit    *memory.AuditStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		ledger:   memory.NewLedger(),
		clock:    domain.NewFixedClock(start),
		bus:      memory.NewSignalBus(),
		audit:    memory.NewAuditStore(),
		notifier: &recordingNotifier{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewLaunchService(f.ledger, memory.NewLockManager(), f.clock, logger).
		WithSignalBus(f.bus).
		WithAudit(f.audit).
		WithNotifier(f.notifier)
	if _, err := f.svc.InitProtocol(f.ctx, admin, 0); err != nil {
		t.Fatalf("init protocol: %v", err)
	}
	return f
}

func (f *fixture) fund(t *testing.T, account common.Address, amount uint64) {
	t.Helper()
	if _, err := f.svc.FundAccount(f.ctx, admin, account, amount); err != nil {
		t.Fatalf("fund %s: %v", account.Hex(), err)
	}
}

func (f *fixture) launch(t *testing.T, owner common.Address, deposit, supply uint64, slots uint32) domain.Product {
	t.Helper()
	f.fund(t, owner, deposit)
	p, err := f.svc.Launch(f.ctx, owner, domain.LaunchArgs{
		Name:             "Widget",
		Description:      "a widget token",
		TokenSymbol:      "WDG",
		InitialDeposit:   deposit,
		IPOSlots:         slots,
		TotalTokenSupply: supply,
		LaunchDate:       start.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	return p
}

func (f *fixture) capital(t *testing.T, account common.Address) uint64 {
	t.Helper()
	bal, err := f.ledger.CapitalBalance(f.ctx, account)
	if err != nil {
		t.Fatalf("capital balance: %v", err)
	}
	return bal
}

func (f *fixture) tokens(t *testing.T, p domain.Product, account common.Address) uint64 {
	t.Helper()
	bal, err := f.ledger.TokenBalance(f.ctx, p.TokenMint, account)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	return bal
}

func TestApprovedBidLifecycle(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 3)

	if f.capital(t, p.Treasury) != 1000 {
		t.Fatalf("expected treasury 1000 after launch, got %d", f.capital(t, p.Treasury))
	}
	if f.tokens(t, p, p.TokenPool) != 100 {
		t.Fatalf("expected pool 100 after launch, got %d", f.tokens(t, p, p.TokenPool))
	}
	if price, _ := p.TokenPrice(); price != 10 {
		t.Fatalf("expected price 10, got %d", price)
	}

	f.fund(t, bidder, 250)
	bid, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, 250, 0)
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if bid.TokenAmount != 25 || bid.Status != domain.BidStatusPending || bid.SlotsRequested != 1 {
		t.Fatalf("unexpected bid %+v", bid)
	}
	if f.capital(t, bidder) != 0 || f.capital(t, p.Treasury) != 1250 {
		t.Fatalf("expected bid escrowed, bidder=%d treasury=%d", f.capital(t, bidder), f.capital(t, p.Treasury))
	}

	if _, err := f.svc.ApproveBid(f.ctx, owner, p.Address, bidder); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err := f.ledger.GetProduct(f.ctx, p.Address)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.ApprovedBids != 1 {
		t.Fatalf("expected 1 approved bid, got %d", got.ApprovedBids)
	}

	if _, err := f.svc.ClaimTokens(f.ctx, bidder, p.Address); !errors.Is(err, domain.ErrLaunchDateNotReached) {
		t.Fatalf("expected ErrLaunchDateNotReached, got %v", err)
	}

	f.clock.Set(p.LaunchDate)

	claimed, err := f.svc.ClaimTokens(f.ctx, bidder, p.Address)
	if err != nil {
		t.Fatalf("claim tokens: %v", err)
	}
	if !claimed.TokensClaimed {
		t.Fatal("expected tokens_claimed")
	}
	if f.tokens(t, p, p.TokenPool) != 75 || f.tokens(t, p, bidder) != 25 {
		t.Fatalf("expected pool 75 bidder 25, got %d %d", f.tokens(t, p, p.TokenPool), f.tokens(t, p, bidder))
	}

	payout, err := f.svc.ClaimFunds(f.ctx, owner, p.Address)
	if err != nil {
		t.Fatalf("claim funds: %v", err)
	}
	if payout != 1250 {
		t.Fatalf("expected payout 1250, got %d", payout)
	}
	if f.capital(t, p.Treasury) != 0 || f.capital(t, owner) != 1250 {
		t.Fatalf("expected treasury drained to owner, treasury=%d owner=%d", f.capital(t, p.Treasury), f.capital(t, owner))
	}
	got, _ = f.ledger.GetProduct(f.ctx, p.Address)
	if !got.FundsClaimed || got.Phase != domain.ProductPhaseLaunched {
		t.Fatalf("expected launched with funds claimed, got %+v", got)
	}
}

func TestRejectedBidRefundsImmediately(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 3)
	f.fund(t, bidder, 500)

	if _, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, 500, 1); err != nil {
		t.Fatalf("place bid: %v", err)
	}
	bid, err := f.svc.RejectBid(f.ctx, owner, p.Address, bidder)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if bid.Status != domain.BidStatusRejected || !bid.FundsClaimed {
		t.Fatalf("expected rejected with funds claimed, got %+v", bid)
	}
	if f.capital(t, bidder) != 500 || f.capital(t, p.Treasury) != 1000 {
		t.Fatalf("expected refund, bidder=%d treasury=%d", f.capital(t, bidder), f.capital(t, p.Treasury))
	}

	if _, err := f.svc.RejectBid(f.ctx, owner, p.Address, bidder); !errors.Is(err, domain.ErrBidAlreadyProcessed) {
		t.Fatalf("expected ErrBidAlreadyProcessed on second reject, got %v", err)
	}
	if _, err := f.svc.ApproveBid(f.ctx, owner, p.Address, bidder); !errors.Is(err, domain.ErrBidAlreadyProcessed) {
		t.Fatalf("expected ErrBidAlreadyProcessed on approve, got %v", err)
	}
	f.clock.Set(p.LaunchDate)
	if _, err := f.svc.ClaimTokens(f.ctx, bidder, p.Address); !errors.Is(err, domain.ErrBidNotApproved) {
		t.Fatalf("expected ErrBidNotApproved, got %v", err)
	}
	if f.capital(t, bidder) != 500 {
		t.Fatalf("expected no second refund, got %d", f.capital(t, bidder))
	}
}

func TestLaunchValidation(t *testing.T) {
	valid := domain.LaunchArgs{
		Name:             "Widget",
		TokenSymbol:      "WDG",
		InitialDeposit:   1000,
		IPOSlots:         2,
		TotalTokenSupply: 100,
		LaunchDate:       start.Add(time.Hour),
	}
	tests := []struct {
		name   string
		caller common.Address
		mutate func(*domain.LaunchArgs)
		want   error
	}{
		{"zero caller", common.Address{}, func(*domain.LaunchArgs) {}, domain.ErrUnauthorized},
		{"zero deposit", owner, func(a *domain.LaunchArgs) { a.InitialDeposit = 0 }, domain.ErrZeroInitialDeposit},
		{"zero slots", owner, func(a *domain.LaunchArgs) { a.IPOSlots = 0 }, domain.ErrZeroIPOSlots},
		{"zero supply", owner, func(a *domain.LaunchArgs) { a.TotalTokenSupply = 0 }, domain.ErrZeroTokenSupply},
		{"launch now", owner, func(a *domain.LaunchArgs) { a.LaunchDate = start }, domain.ErrInvalidLaunchDate},
		{"symbol too long", owner, func(a *domain.LaunchArgs) { a.TokenSymbol = "ABCDEFGHIJK" }, domain.ErrSymbolTooLong},
		{"insufficient owner funds", owner, func(a *domain.LaunchArgs) { a.InitialDeposit = 5000 }, domain.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fund(t, owner, 1000)
			args := valid
			tt.mutate(&args)

			_, err := f.svc.Launch(f.ctx, tt.caller, args)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if _, err := f.ledger.GetProduct(f.ctx, domain.ProductAddress(owner)); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected no product after failed launch, got %v", err)
			}
			if f.capital(t, owner) != 1000 {
				t.Fatalf("expected owner balance untouched, got %d", f.capital(t, owner))
			}
		})
	}
}

func TestLaunchOncePerOwner(t *testing.T) {
	f := newFixture(t)
	f.launch(t, owner, 1000, 100, 1)
	f.fund(t, owner, 1000)

	_, err := f.svc.Launch(f.ctx, owner, domain.LaunchArgs{
		Name:             "Again",
		InitialDeposit:   1000,
		IPOSlots:         1,
		TotalTokenSupply: 100,
		LaunchDate:       start.Add(time.Hour),
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if f.capital(t, owner) != 1000 {
		t.Fatalf("expected second deposit untouched, got %d", f.capital(t, owner))
	}
}

func TestPlaceBidGuards(t *testing.T) {
	tests := []struct {
		name    string
		deposit uint64
		amount  uint64
		slots   uint8
		at      func(p domain.Product) time.Time
		want    error
	}{
		{"zero amount", 1000, 0, 1, nil, domain.ErrZeroBidAmount},
		{"too many slots", 1000, 100, 6, nil, domain.ErrSlotsOutOfRange},
		{"max slots", 1000, 100, 5, nil, nil},
		{"price rounds to zero", 50, 100, 1, nil, domain.ErrZeroTokenPrice},
		{"at bid close", 1000, 100, 1, func(p domain.Product) time.Time { return p.BidCloseDate }, domain.ErrBiddingPeriodEnded},
		{"just before bid close", 1000, 100, 1, func(p domain.Product) time.Time { return p.BidCloseDate.Add(-time.Nanosecond) }, nil},
		{"more than balance", 1000, 5000, 1, nil, domain.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.launch(t, owner, tt.deposit, 100, 2)
			f.fund(t, bidder, 1000)
			if tt.at != nil {
				f.clock.Set(tt.at(p))
			}

			_, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, tt.amount, tt.slots)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if f.capital(t, bidder) != 1000 {
				t.Fatalf("expected bidder balance untouched, got %d", f.capital(t, bidder))
			}
		})
	}
}

func TestPlaceBidOncePerBidder(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 2)
	f.fund(t, bidder, 1000)

	if _, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, 100, 1); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if _, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, 100, 1); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if f.capital(t, bidder) != 900 {
		t.Fatalf("expected one escrow, got balance %d", f.capital(t, bidder))
	}
}

func TestPlaceBidUnknownProduct(t *testing.T) {
	f := newFixture(t)
	f.fund(t, bidder, 100)
	_, err := f.svc.PlaceBid(f.ctx, bidder, domain.ProductAddress(other), 100, 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOwnerOnlyOperations(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 2)
	f.fund(t, bidder, 100)
	if _, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, 100, 1); err != nil {
		t.Fatalf("place bid: %v", err)
	}
	f.clock.Set(p.LaunchDate)

	if _, err := f.svc.ApproveBid(f.ctx, other, p.Address, bidder); !errors.Is(err, domain.ErrUnauthorizedAccess) {
		t.Fatalf("approve: expected ErrUnauthorizedAccess, got %v", err)
	}
	if _, err := f.svc.RejectBid(f.ctx, bidder, p.Address, bidder); !errors.Is(err, domain.ErrUnauthorizedAccess) {
		t.Fatalf("reject: expected ErrUnauthorizedAccess, got %v", err)
	}
	if _, err := f.svc.ClaimFunds(f.ctx, other, p.Address); !errors.Is(err, domain.ErrUnauthorizedAccess) {
		t.Fatalf("claim funds: expected ErrUnauthorizedAccess, got %v", err)
	}
}

func TestClaimTokensRequiresOwnBid(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 2)
	f.clock.Set(p.LaunchDate)

	if _, err := f.svc.ClaimTokens(f.ctx, other, p.Address); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for caller without bid, got %v", err)
	}
}

func TestApproveSlotStorm(t *testing.T) {
	const (
		slots   = 3
		bidders = 20
	)
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, slots)

	addrs := make([]common.Address, bidders)
	for i := range addrs {
		addrs[i] = common.BigToAddress(big.NewInt(int64(1000 + i)))
		f.fund(t, addrs[i], 100)
		if _, err := f.svc.PlaceBid(f.ctx, addrs[i], p.Address, 100, 1); err != nil {
			t.Fatalf("place bid %d: %v", i, err)
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		filled   int
	)
	for _, addr := range addrs {
		wg.Add(1)
		go func(addr common.Address) {
			defer wg.Done()
			_, err := f.svc.ApproveBid(f.ctx, owner, p.Address, addr)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, domain.ErrAllSlotsFilled):
				filled++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(addr)
	}
	wg.Wait()

	if approved != slots || filled != bidders-slots {
		t.Fatalf("expected %d approved and %d filled, got %d and %d", slots, bidders-slots, approved, filled)
	}
	got, _ := f.ledger.GetProduct(f.ctx, p.Address)
	if got.ApprovedBids != slots {
		t.Fatalf("expected ApprovedBids %d, got %d", slots, got.ApprovedBids)
	}
	sum, _ := f.ledger.SumApproved(f.ctx, p.Address)
	if sum != slots*100 {
		t.Fatalf("expected approved sum %d, got %d", slots*100, sum)
	}
}

func TestConcurrentClaimsPayOnce(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 1)
	f.fund(t, bidder, 250)
	if _, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, 250, 1); err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if _, err := f.svc.ApproveBid(f.ctx, owner, p.Address, bidder); err != nil {
		t.Fatalf("approve: %v", err)
	}
	f.clock.Set(p.LaunchDate)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		tokenWins int
		fundWins  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.ClaimTokens(f.ctx, bidder, p.Address)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				tokenWins++
			} else if !errors.Is(err, domain.ErrTokensAlreadyClaimed) {
				t.Errorf("claim tokens: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.ClaimFunds(f.ctx, owner, p.Address)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				fundWins++
			} else if !errors.Is(err, domain.ErrFundsAlreadyClaimed) {
				t.Errorf("claim funds: %v", err)
			}
		}()
	}
	wg.Wait()

	if tokenWins != 1 || fundWins != 1 {
		t.Fatalf("expected exactly one win each, got tokens=%d funds=%d", tokenWins, fundWins)
	}
	if f.tokens(t, p, bidder) != 25 || f.capital(t, owner) != 1250 {
		t.Fatalf("expected single payouts, tokens=%d capital=%d", f.tokens(t, p, bidder), f.capital(t, owner))
	}
}

func TestClaimFundsClosesApproval(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 2)
	f.fund(t, bidder, 100)
	f.fund(t, other, 100)
	for _, b := range []common.Address{bidder, other} {
		if _, err := f.svc.PlaceBid(f.ctx, b, p.Address, 100, 1); err != nil {
			t.Fatalf("place bid: %v", err)
		}
	}
	if _, err := f.svc.ApproveBid(f.ctx, owner, p.Address, bidder); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.svc.ClaimFunds(f.ctx, owner, p.Address); !errors.Is(err, domain.ErrLaunchDateNotReached) {
		t.Fatalf("expected ErrLaunchDateNotReached, got %v", err)
	}
	f.clock.Set(p.LaunchDate.Add(time.Minute))
	payout, err := f.svc.ClaimFunds(f.ctx, owner, p.Address)
	if err != nil {
		t.Fatalf("claim funds: %v", err)
	}
	if payout != 1100 {
		t.Fatalf("expected payout 1100, got %d", payout)
	}
	if _, err := f.svc.ClaimFunds(f.ctx, owner, p.Address); !errors.Is(err, domain.ErrFundsAlreadyClaimed) {
		t.Fatalf("expected ErrFundsAlreadyClaimed, got %v", err)
	}
	if _, err := f.svc.ApproveBid(f.ctx, owner, p.Address, other); !errors.Is(err, domain.ErrNotInBiddingPhase) {
		t.Fatalf("expected ErrNotInBiddingPhase after settlement, got %v", err)
	}

	// The pending bid is still refundable from what the owner left behind.
	if _, err := f.svc.RejectBid(f.ctx, owner, p.Address, other); err != nil {
		t.Fatalf("reject after settlement: %v", err)
	}
	if f.capital(t, other) != 100 || f.capital(t, p.Treasury) != 0 {
		t.Fatalf("expected refund and empty treasury, other=%d treasury=%d", f.capital(t, other), f.capital(t, p.Treasury))
	}
}

func TestClaimFundsTreasuryShortfall(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 1)

	// Drain the treasury behind the service's back.
	err := f.ledger.Atomic(f.ctx, func(tx domain.LedgerTx) error {
		return tx.TransferCapital(f.ctx, p.Treasury, other, 1)
	})
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	f.clock.Set(p.LaunchDate)

	_, err = f.svc.ClaimFunds(f.ctx, owner, p.Address)
	if !errors.Is(err, domain.ErrTreasuryInsufficient) {
		t.Fatalf("expected ErrTreasuryInsufficient, got %v", err)
	}
	if domain.KindOf(err) != domain.KindIntegrity {
		t.Fatalf("expected integrity kind, got %s", domain.KindOf(err))
	}
	if len(f.notifier.alerts) != 1 {
		t.Fatalf("expected one integrity alert, got %d", len(f.notifier.alerts))
	}
	got, _ := f.ledger.GetProduct(f.ctx, p.Address)
	if got.FundsClaimed || got.Phase != domain.ProductPhaseBidding {
		t.Fatalf("expected product untouched, got %+v", got)
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	sub, err := f.bus.Subscribe(f.ctx, domain.EventsChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	p := f.launch(t, owner, 1000, 100, 1)

	// Failed operations emit nothing.
	if _, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, 0, 1); err == nil {
		t.Fatal("expected zero bid to fail")
	}

	msgs, err := f.bus.StreamRead(f.ctx, domain.EventsStream, "0", 100)
	if err != nil {
		t.Fatalf("stream read: %v", err)
	}
	// protocol_initialized, account_funded, product_launched
	if len(msgs) != 3 {
		t.Fatalf("expected 3 stream events, got %d", len(msgs))
	}

	entries, err := f.audit.List(f.ctx, domain.ListOpts{})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 3 || entries[0].Event != string(domain.EventProductLaunched) {
		t.Fatalf("unexpected audit entries %+v", entries)
	}

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("expected a published event")
	}
	if len(f.notifier.events) != 3 {
		t.Fatalf("expected 3 notified events, got %d", len(f.notifier.events))
	}
}

func TestFundAccountGuards(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		caller  common.Address
		account common.Address
		amount  uint64
		want    error
	}{
		{"not admin", owner, owner, 10, domain.ErrUnauthorizedAccess},
		{"zero account", admin, common.Address{}, 10, domain.ErrInvalidAddress},
		{"zero amount", admin, owner, 0, domain.ErrZeroFundingAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.FundAccount(f.ctx, tt.caller, tt.account, tt.amount); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bare := NewLaunchService(memory.NewLedger(), memory.NewLockManager(), f.clock, logger)
	if _, err := bare.FundAccount(f.ctx, admin, owner, 10); !errors.Is(err, domain.ErrProtocolNotReady) {
		t.Fatalf("expected ErrProtocolNotReady, got %v", err)
	}
}

func TestEnsureProtocol(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewLaunchService(ledger, memory.NewLockManager(), domain.NewFixedClock(start), logger)

	cfg, err := svc.EnsureProtocol(ctx, admin, 3)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if cfg.Admin != admin || cfg.MaxSlotsPerBid != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := svc.InitProtocol(ctx, other, 3); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on re-init, got %v", err)
	}

	restarted := NewLaunchService(ledger, memory.NewLockManager(), domain.NewFixedClock(start), logger)
	cfg, err = restarted.EnsureProtocol(ctx, other, 5)
	if err != nil {
		t.Fatalf("ensure after restart: %v", err)
	}
	if cfg.Admin != admin {
		t.Fatalf("expected stored admin kept, got %s", cfg.Admin.Hex())
	}
	if got, _ := restarted.Protocol(); got.MaxSlotsPerBid != 3 {
		t.Fatalf("expected stored slot cap 3, got %d", got.MaxSlotsPerBid)
	}
}

type mapCache struct {
	mu    sync.Mutex
	items map[common.Address]domain.Product
	hits  int
}

func (c *mapCache) Set(_ context.Context, p domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.Address] = p
	return nil
}

func (c *mapCache) Get(_ context.Context, addr common.Address) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[addr]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	c.hits++
	return p, nil
}

func (c *mapCache) Invalidate(_ context.Context, addr common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, addr)
	return nil
}

func TestGetProductReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	cache := &mapCache{items: make(map[common.Address]domain.Product)}
	f.svc.WithCache(cache)
	p := f.launch(t, owner, 1000, 100, 2)
	f.fund(t, bidder, 100)
	if _, err := f.svc.PlaceBid(f.ctx, bidder, p.Address, 100, 1); err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if _, err := f.svc.ApproveBid(f.ctx, owner, p.Address, bidder); err != nil {
		t.Fatalf("approve: %v", err)
	}

	got, err := f.svc.GetProduct(f.ctx, p.Address)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if cache.hits != 1 || got.ApprovedBids != 1 {
		t.Fatalf("expected fresh cached product, hits=%d approved=%d", cache.hits, got.ApprovedBids)
	}

	view, err := f.svc.Campaign(f.ctx, p.Address)
	if err != nil {
		t.Fatalf("campaign: %v", err)
	}
	if view.SumApproved != 100 || view.TreasuryFunds != 1100 || view.PoolTokens != 100 || view.RemainingSlots != 1 || view.TokenPrice != 10 {
		t.Fatalf("unexpected view %+v", view)
	}
}

// gatedCache parks the first write of a product with one approval until
// release is closed.
type gatedCache struct {
	*mapCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (c *gatedCache) Set(ctx context.Context, p domain.Product) error {
	if p.ApprovedBids == 1 {
		c.once.Do(func() {
			close(c.entered)
			<-c.release
		})
	}
	return c.mapCache.Set(ctx, p)
}

func TestCachedProductFollowsCommitOrder(t *testing.T) {
	f := newFixture(t)
	cache := &gatedCache{
		mapCache: &mapCache{items: make(map[common.Address]domain.Product)},
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	f.svc.WithCache(cache)
	p := f.launch(t, owner, 1000, 100, 2)
	for _, b := range []common.Address{bidder, other} {
		f.fund(t, b, 100)
		if _, err := f.svc.PlaceBid(f.ctx, b, p.Address, 100, 1); err != nil {
			t.Fatalf("place bid %s: %v", b.Hex(), err)
		}
	}

	errs := make(chan error, 2)
	go func() {
		_, err := f.svc.ApproveBid(f.ctx, owner, p.Address, bidder)
		errs <- err
	}()
	select {
	case <-cache.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first approval never reached the cache")
	}

	go func() {
		_, err := f.svc.ApproveBid(f.ctx, owner, p.Address, other)
		errs <- err
	}()
	select {
	case err := <-errs:
		t.Fatalf("second approval finished while the first was still caching: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(cache.release)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	stored, err := f.ledger.GetProduct(f.ctx, p.Address)
	if err != nil {
		t.Fatalf("ledger product: %v", err)
	}
	got, err := f.svc.GetProduct(f.ctx, p.Address)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if stored.ApprovedBids != 2 || got.ApprovedBids != stored.ApprovedBids {
		t.Fatalf("cached approved_bids=%d, ledger=%d", got.ApprovedBids, stored.ApprovedBids)
	}
}

func TestGetProductRefillsCacheOnMiss(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 2)
	cache := &mapCache{items: make(map[common.Address]domain.Product)}
	f.svc.WithCache(cache)

	got, err := f.svc.GetProduct(f.ctx, p.Address)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Address != p.Address || cache.hits != 0 {
		t.Fatalf("expected ledger read on miss, hits=%d", cache.hits)
	}
	if _, err := f.svc.GetProduct(f.ctx, p.Address); err != nil {
		t.Fatalf("get product: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected refilled entry to be served, hits=%d", cache.hits)
	}

	missing := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	if _, err := f.svc.GetProduct(f.ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListBidsFilter(t *testing.T) {
	f := newFixture(t)
	p := f.launch(t, owner, 1000, 100, 2)
	for _, b := range []common.Address{bidder, other} {
		f.fund(t, b, 100)
		if _, err := f.svc.PlaceBid(f.ctx, b, p.Address, 100, 1); err != nil {
			t.Fatalf("place bid: %v", err)
		}
	}
	if _, err := f.svc.ApproveBid(f.ctx, owner, p.Address, other); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, err := f.svc.ListBids(f.ctx, p.Address, domain.BidFilter{Status: domain.BidStatusPending})
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(pending) != 1 || pending[0].Bidder != bidder {
		t.Fatalf("unexpected pending bids %+v", pending)
	}
	if _, err := f.svc.ListBids(f.ctx, p.Address, domain.BidFilter{Status: "bogus"}); !errors.Is(err, domain.ErrInvalidBidStatus) {
		t.Fatalf("expected ErrInvalidBidStatus, got %v", err)
	}
}
