package domain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestNewBid(t *testing.T) {
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bidder := common.HexToAddress("0x2222222222222222222222222222222222222222")
	p := NewProduct(owner, validLaunchArgs(), testNow)

	b, err := NewBid(p, bidder, 250, 1, testNow)
	if err != nil {
		t.Fatalf("new bid: %v", err)
	}
	if b.Address != BidAddress(p.Address, bidder) {
		t.Fatalf("expected derived bid address")
	}
	if b.TokenAmount != 25 {
		t.Fatalf("expected 25 tokens, got %d", b.TokenAmount)
	}
	if b.Status != BidStatusPending || b.TokensClaimed || b.FundsClaimed {
		t.Fatalf("unexpected initial bid state: %+v", b)
	}
}

func TestNormalizeSlots(t *testing.T) {
	tests := []struct {
		name      string
		requested uint8
		max       uint8
		want      uint8
		err       error
	}{
		{name: "zero means one", requested: 0, max: 5, want: 1},
		{name: "at cap", requested: 5, max: 5, want: 5},
		{name: "over cap", requested: 6, max: 5, err: ErrSlotsOutOfRange},
		{name: "default cap", requested: 5, max: 0, want: 5},
		{name: "over default cap", requested: 6, max: 0, err: ErrSlotsOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSlots(tt.requested, tt.max)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestBidTransitionsAreTerminal(t *testing.T) {
	approved := Bid{Status: BidStatusPending}
	if err := approved.Approve(); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := approved.Approve(); !errors.Is(err, ErrBidAlreadyProcessed) {
		t.Fatalf("expected ErrBidAlreadyProcessed on re-approve, got %v", err)
	}
	if err := approved.Reject(); !errors.Is(err, ErrBidAlreadyProcessed) {
		t.Fatalf("expected ErrBidAlreadyProcessed on reject after approve, got %v", err)
	}

	rejected := Bid{Status: BidStatusPending}
	if err := rejected.Reject(); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if !rejected.FundsClaimed {
		t.Fatalf("expected rejection to mark funds claimed")
	}
	if err := rejected.Approve(); !errors.Is(err, ErrBidAlreadyProcessed) {
		t.Fatalf("expected ErrBidAlreadyProcessed on approve after reject, got %v", err)
	}
}

func TestBidClaimTokens(t *testing.T) {
	pending := Bid{Status: BidStatusPending}
	if err := pending.ClaimTokens(); !errors.Is(err, ErrBidNotApproved) {
		t.Fatalf("expected ErrBidNotApproved, got %v", err)
	}

	b := Bid{Status: BidStatusApproved}
	if err := b.ClaimTokens(); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := b.ClaimTokens(); !errors.Is(err, ErrTokensAlreadyClaimed) {
		t.Fatalf("expected ErrTokensAlreadyClaimed, got %v", err)
	}
}
