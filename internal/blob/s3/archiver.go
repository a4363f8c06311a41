package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// multipartThreshold switches uploads to the multipart path.
	multipartThreshold = 8 * 1024 * 1024
	archivePageSize    = 100
)

// CampaignSource is the ledger read surface the archiver needs.
type CampaignSource interface {
	ListProducts(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error)
	ListBids(ctx context.Context, product common.Address, filter domain.BidFilter) ([]domain.Bid, error)
}

// CampaignArchiver implements domain.Archiver. Each settled campaign is
// written to archive/campaigns/<product>.jsonl: a campaign line followed by
// one line per bid. The object is rewritten whenever its bids change after
// the owner's claim, so token claims and refunds land in the archive.
// Nothing is deleted from the ledger.
type CampaignArchiver struct {
	source CampaignSource
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewCampaignArchiver creates a CampaignArchiver.
func NewCampaignArchiver(
	source CampaignSource,
	writer domain.BlobWriter,
	reader domain.BlobReader,
	audit domain.AuditStore,
	logger *slog.Logger,
) *CampaignArchiver {
	return &CampaignArchiver{
		source: source,
		writer: writer,
		reader: reader,
		audit:  audit,
		logger: logger.With(slog.String("component", "campaign_archiver")),
	}
}

// ArchiveSettled exports every campaign whose funds have been claimed and
// whose archive object is missing or stale. It returns the number of
// objects written.
func (a *CampaignArchiver) ArchiveSettled(ctx context.Context) (int64, error) {
	var written int64
	for offset := 0; ; offset += archivePageSize {
		products, err := a.source.ListProducts(ctx, domain.ListOpts{Limit: archivePageSize, Offset: offset})
		if err != nil {
			return written, fmt.Errorf("s3blob: archive list products: %w", err)
		}
		for _, p := range products {
			if !p.FundsClaimed {
				continue
			}
			ok, err := a.archiveOne(ctx, p)
			if err != nil {
				return written, err
			}
			if ok {
				written++
			}
		}
		if len(products) < archivePageSize {
			return written, nil
		}
	}
}

func (a *CampaignArchiver) archiveOne(ctx context.Context, p domain.Product) (bool, error) {
	path := CampaignPath(p.Address)
	bids, err := a.source.ListBids(ctx, p.Address, domain.BidFilter{})
	if err != nil {
		return false, fmt.Errorf("s3blob: archive list bids %s: %w", p.Address.Hex(), err)
	}

	records := make([]any, 0, len(bids)+1)
	records = append(records, newCampaignRecord(p))
	for _, b := range bids {
		records = append(records, newBidRecord(b))
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return false, fmt.Errorf("s3blob: archive marshal %s: %w", p.Address.Hex(), err)
	}

	current, err := a.existing(ctx, path)
	if err != nil {
		return false, err
	}
	if current != nil && bytes.Equal(current, buf) {
		return false, nil
	}
	event := "archive.campaign"
	if current != nil {
		event = "archive.campaign.updated"
	}

	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return false, fmt.Errorf("s3blob: archive upload %s: %w", path, err)
	}

	if err := a.audit.Log(ctx, event, map[string]any{
		"product": p.Address.Hex(),
		"path":    path,
		"bids":    len(bids),
	}); err != nil {
		a.logger.WarnContext(ctx, "audit log failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	a.logger.InfoContext(ctx, "campaign archived",
		slog.String("product", p.Address.Hex()),
		slog.Int("bids", len(bids)),
		slog.Bool("rewrite", current != nil),
	)
	return true, nil
}

// existing returns the archived object at path, or nil when there is none.
func (a *CampaignArchiver) existing(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.reader.Get(ctx, path)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive read %s: %w", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive read %s: %w", path, err)
	}
	return data, nil
}

// CampaignPath is the object key for a campaign archive.
func CampaignPath(product common.Address) string {
	return "archive/campaigns/" + product.Hex() + ".jsonl"
}

type campaignRecord struct {
	Kind             string    `json:"kind"`
	Address          string    `json:"address"`
	Owner            string    `json:"owner"`
	Name             string    `json:"name"`
	TokenSymbol      string    `json:"token_symbol"`
	InitialDeposit   uint64    `json:"initial_deposit"`
	TotalTokenSupply uint64    `json:"total_token_supply"`
	IPOSlots         uint32    `json:"ipo_slots"`
	ApprovedBids     uint32    `json:"approved_bids"`
	Phase            string    `json:"phase"`
	LaunchDate       time.Time `json:"launch_date"`
	BidCloseDate     time.Time `json:"bid_close_date"`
	CreatedAt        time.Time `json:"created_at"`
}

func newCampaignRecord(p domain.Product) campaignRecord {
	return campaignRecord{
		Kind:             "campaign",
		Address:          p.Address.Hex(),
		Owner:            p.Owner.Hex(),
		Name:             p.Name,
		TokenSymbol:      p.TokenSymbol,
		InitialDeposit:   p.InitialDeposit,
		TotalTokenSupply: p.TotalTokenSupply,
		IPOSlots:         p.IPOSlots,
		ApprovedBids:     p.ApprovedBids,
		Phase:            string(p.Phase),
		LaunchDate:       p.LaunchDate,
		BidCloseDate:     p.BidCloseDate,
		CreatedAt:        p.CreatedAt,
	}
}

type bidRecord struct {
	Kind          string    `json:"kind"`
	Address       string    `json:"address"`
	Bidder        string    `json:"bidder"`
	Amount        uint64    `json:"amount"`
	TokenAmount   uint64    `json:"token_amount"`
	Status        string    `json:"status"`
	TokensClaimed bool      `json:"tokens_claimed"`
	FundsClaimed  bool      `json:"funds_claimed"`
	CreatedAt     time.Time `json:"created_at"`
}

func newBidRecord(b domain.Bid) bidRecord {
	return bidRecord{
		Kind:          "bid",
		Address:       b.Address.Hex(),
		Bidder:        b.Bidder.Hex(),
		Amount:        b.Amount,
		TokenAmount:   b.TokenAmount,
		Status:        string(b.Status),
		TokensClaimed: b.TokensClaimed,
		FundsClaimed:  b.FundsClaimed,
		CreatedAt:     b.CreatedAt,
	}
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*CampaignArchiver)(nil)
