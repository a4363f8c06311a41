package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
	"github.com/alanyoungcy/launchpad/internal/store/memory"
)

type fakeBlobs struct {
	objects map[string][]byte
	puts    int
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}} }

func (f *fakeBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = b
	f.puts++
	return nil
}

func (f *fakeBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, jsonlContentType)
}

func (f *fakeBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlobs) List(_ context.Context, _ string) ([]domain.BlobInfo, error) { return nil, nil }

func (f *fakeBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

func seedLedger(t *testing.T) (*memory.Ledger, domain.Product) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bidder := common.HexToAddress("0x2222222222222222222222222222222222222222")

	settled := domain.NewProduct(owner, domain.LaunchArgs{
		Name: "Acme", TokenSymbol: "ACME", InitialDeposit: 1000, IPOSlots: 1,
		TotalTokenSupply: 100, LaunchDate: now.Add(30 * 24 * time.Hour),
	}, now)
	settled.FundsClaimed = true
	open := domain.NewProduct(bidder, domain.LaunchArgs{
		Name: "Open", InitialDeposit: 10, IPOSlots: 1, TotalTokenSupply: 1,
		LaunchDate: now.Add(30 * 24 * time.Hour),
	}, now)
	bid, err := domain.NewBid(settled, bidder, 250, 1, now)
	if err != nil {
		t.Fatalf("new bid: %v", err)
	}

	l := memory.NewLedger()
	err = l.Atomic(ctx, func(tx domain.LedgerTx) error {
		if err := tx.CreateProduct(ctx, settled); err != nil {
			return err
		}
		if err := tx.CreateProduct(ctx, open); err != nil {
			return err
		}
		return tx.CreateBid(ctx, bid)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return l, settled
}

func TestArchiveSettledWritesOnce(t *testing.T) {
	ctx := context.Background()
	ledger, settled := seedLedger(t)
	blobs := newFakeBlobs()
	audit := memory.NewAuditStore()
	a := NewCampaignArchiver(ledger, blobs, blobs, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveSettled(ctx)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 campaign archived, got %d", n)
	}

	data, ok := blobs.objects[CampaignPath(settled.Address)]
	if !ok {
		t.Fatalf("expected object at %s", CampaignPath(settled.Address))
	}
	var kinds []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var line struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		kinds = append(kinds, line.Kind)
	}
	if len(kinds) != 2 || kinds[0] != "campaign" || kinds[1] != "bid" {
		t.Fatalf("unexpected record kinds %v", kinds)
	}

	n, err = a.ArchiveSettled(ctx)
	if err != nil {
		t.Fatalf("second archive: %v", err)
	}
	if n != 0 || blobs.puts != 1 {
		t.Fatalf("expected second run to skip, wrote %d (puts %d)", n, blobs.puts)
	}

	entries, _ := audit.List(ctx, domain.ListOpts{})
	if len(entries) != 1 || entries[0].Event != "archive.campaign" {
		t.Fatalf("expected one audit entry, got %+v", entries)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	if got := normaliseEndpoint("minio:9000", false); got != "http://minio:9000" {
		t.Fatalf("unexpected %q", got)
	}
	if got := normaliseEndpoint("minio:9000", true); got != "https://minio:9000" {
		t.Fatalf("unexpected %q", got)
	}
	if got := normaliseEndpoint("https://e2.example.com", false); got != "https://e2.example.com" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestArchiveRewritesAfterLateClaims(t *testing.T) {
	ctx := context.Background()
	ledger, settled := seedLedger(t)
	blobs := newFakeBlobs()
	audit := memory.NewAuditStore()
	a := NewCampaignArchiver(ledger, blobs, blobs, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if n, err := a.ArchiveSettled(ctx); err != nil || n != 1 {
		t.Fatalf("first archive: n=%d err=%v", n, err)
	}

	bids, err := ledger.ListBids(ctx, settled.Address, domain.BidFilter{})
	if err != nil || len(bids) != 1 {
		t.Fatalf("list bids: %v %v", bids, err)
	}
	bid := bids[0]
	steps := []struct {
		name  string
		apply func(*domain.Bid) error
		check func(bidRecord) bool
	}{
		{"approve", (*domain.Bid).Approve, func(r bidRecord) bool { return r.Status == "approved" && !r.TokensClaimed }},
		{"claim tokens", (*domain.Bid).ClaimTokens, func(r bidRecord) bool { return r.TokensClaimed }},
	}
	for i, step := range steps {
		if err := step.apply(&bid); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if err := ledger.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.UpdateBid(ctx, bid) }); err != nil {
			t.Fatalf("%s: update: %v", step.name, err)
		}
		n, err := a.ArchiveSettled(ctx)
		if err != nil || n != 1 {
			t.Fatalf("%s: expected rewrite, n=%d err=%v", step.name, n, err)
		}
		if blobs.puts != i+2 {
			t.Fatalf("%s: expected %d puts, got %d", step.name, i+2, blobs.puts)
		}
		lines := bytes.Split(bytes.TrimSpace(blobs.objects[CampaignPath(settled.Address)]), []byte("\n"))
		var rec bidRecord
		if err := json.Unmarshal(lines[len(lines)-1], &rec); err != nil {
			t.Fatalf("%s: decode bid line: %v", step.name, err)
		}
		if !step.check(rec) {
			t.Fatalf("%s: archived bid is stale: %+v", step.name, rec)
		}
	}

	if n, err := a.ArchiveSettled(ctx); err != nil || n != 0 {
		t.Fatalf("unchanged campaign should be skipped: n=%d err=%v", n, err)
	}
	entries, _ := audit.List(ctx, domain.ListOpts{})
	updated := 0
	for _, e := range entries {
		if e.Event == "archive.campaign.updated" {
			updated++
		}
	}
	if updated != 2 {
		t.Fatalf("expected 2 update audit entries, got %d", updated)
	}
}
