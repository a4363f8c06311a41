package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
)

func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	boom := errors.New("boom")

	err := l.Atomic(ctx, func(tx domain.LedgerTx) error {
		if err := tx.CreditCapital(ctx, alice, 100); err != nil {
			return err
		}
		if err := tx.CreateProduct(ctx, domain.Product{Address: alice}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if bal, _ := l.CapitalBalance(ctx, alice); bal != 0 {
		t.Fatalf("expected rolled back balance 0, got %d", bal)
	}
	if _, err := l.GetProduct(ctx, alice); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected product not persisted, got %v", err)
	}
}

func TestAtomicReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	err := l.Atomic(ctx, func(tx domain.LedgerTx) error {
		if err := tx.CreditCapital(ctx, alice, 50); err != nil {
			return err
		}
		if err := tx.TransferCapital(ctx, alice, bob, 20); err != nil {
			return err
		}
		bal, _ := tx.CapitalBalance(ctx, bob)
		if bal != 20 {
			t.Fatalf("expected staged balance 20, got %d", bal)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}
	if bal, _ := l.CapitalBalance(ctx, alice); bal != 30 {
		t.Fatalf("expected alice 30, got %d", bal)
	}
}

func TestCreateIsUnique(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	p := domain.Product{Address: alice}

	if err := l.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.CreateProduct(ctx, p) }); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := l.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.CreateProduct(ctx, p) })
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	cfg := domain.ProtocolConfig{Admin: alice}
	if err := l.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.CreateProtocol(ctx, cfg) }); err != nil {
		t.Fatalf("create protocol: %v", err)
	}
	err = l.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.CreateProtocol(ctx, cfg) })
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected protocol ErrAlreadyExists, got %v", err)
	}
}

func TestTransfersRefuseOverdraft(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	mint := common.HexToAddress("0x3333333333333333333333333333333333333333")

	err := l.Atomic(ctx, func(tx domain.LedgerTx) error {
		return tx.TransferCapital(ctx, alice, bob, 1)
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	err = l.Atomic(ctx, func(tx domain.LedgerTx) error {
		if err := tx.MintTokens(ctx, mint, alice, 10); err != nil {
			return err
		}
		return tx.TransferTokens(ctx, mint, alice, bob, 11)
	})
	if !errors.Is(err, domain.ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got %v", err)
	}
	if bal, _ := l.TokenBalance(ctx, mint, alice); bal != 0 {
		t.Fatalf("expected mint rolled back, got %d", bal)
	}
}

func TestListBidsAndSumApproved(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	product := common.HexToAddress("0x4444444444444444444444444444444444444444")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	bids := []domain.Bid{
		{Address: domain.BidAddress(product, alice), Bidder: alice, Product: product, Amount: 100, Status: domain.BidStatusApproved, CreatedAt: base},
		{Address: domain.BidAddress(product, bob), Bidder: bob, Product: product, Amount: 40, Status: domain.BidStatusRejected, CreatedAt: base.Add(time.Minute)},
		{Address: common.HexToAddress("0x05"), Product: product, Amount: 7, Status: domain.BidStatusApproved, CreatedAt: base.Add(2 * time.Minute)},
		{Address: common.HexToAddress("0x06"), Product: common.HexToAddress("0x99"), Amount: 1000, Status: domain.BidStatusApproved, CreatedAt: base},
	}
	err := l.Atomic(ctx, func(tx domain.LedgerTx) error {
		for _, b := range bids {
			if err := tx.CreateBid(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed bids: %v", err)
	}

	all, err := l.ListBids(ctx, product, domain.BidFilter{})
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(all) != 3 || all[0].Bidder != alice {
		t.Fatalf("expected 3 bids oldest first, got %+v", all)
	}

	approved, _ := l.ListBids(ctx, product, domain.BidFilter{Status: domain.BidStatusApproved})
	if len(approved) != 2 {
		t.Fatalf("expected 2 approved bids, got %d", len(approved))
	}

	page, _ := l.ListBids(ctx, product, domain.BidFilter{Offset: 1, Limit: 1})
	if len(page) != 1 || page[0].Bidder != bob {
		t.Fatalf("expected second bid on page, got %+v", page)
	}

	sum, err := l.SumApproved(ctx, product)
	if err != nil {
		t.Fatalf("sum approved: %v", err)
	}
	if sum != 107 {
		t.Fatalf("expected 107, got %d", sum)
	}
}

func TestAtomicHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewLedger().Atomic(ctx, func(domain.LedgerTx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancelled context to skip fn, got %v (called=%v)", err, called)
	}
}
