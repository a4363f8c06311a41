package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventsChannel is the bus channel carrying lifecycle events.
const EventsChannel = "launch.events"

// EventsStream is the durable stream mirroring EventsChannel.
const EventsStream = "launch:events"

// EventType names a lifecycle transition.
type EventType string

const (
	EventProtocolInitialized EventType = "protocol_initialized"
	EventProductLaunched     EventType = "product_launched"
	EventBidPlaced           EventType = "bid_placed"
	EventBidApproved         EventType = "bid_approved"
	EventBidRejected         EventType = "bid_rejected"
	EventFundsClaimed        EventType = "funds_claimed"
	EventTokensClaimed       EventType = "tokens_claimed"
	EventAccountFunded       EventType = "account_funded"
)

// Event is published after a lifecycle operation commits.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Actor      common.Address `json:"actor"`
	Product    common.Address `json:"product"`
	Bid        common.Address `json:"bid"`
	Account    common.Address `json:"account"`
	Amount     uint64         `json:"amount,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Detail flattens the event for the audit log.
func (e Event) Detail() map[string]any {
	d := map[string]any{
		"event_id": e.ID,
		"actor":    e.Actor.Hex(),
	}
	if e.Product != (common.Address{}) {
		d["product"] = e.Product.Hex()
	}
	if e.Bid != (common.Address{}) {
		d["bid"] = e.Bid.Hex()
	}
	if e.Account != (common.Address{}) {
		d["account"] = e.Account.Hex()
	}
	if e.Amount != 0 {
		d["amount"] = e.Amount
	}
	return d
}
