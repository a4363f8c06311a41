package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProtocolConfig is the singleton protocol record. It is created once and
// never mutated by lifecycle operations.
type ProtocolConfig struct {
	Address        common.Address
	Admin          common.Address
	MaxSlotsPerBid uint8
	CreatedAt      time.Time
}

// NewProtocolConfig builds the singleton record for admin.
func NewProtocolConfig(admin common.Address, maxSlots uint8, now time.Time) (ProtocolConfig, error) {
	if admin == (common.Address{}) {
		return ProtocolConfig{}, ErrInvalidProtocolArgs
	}
	if maxSlots == 0 {
		maxSlots = DefaultMaxSlotsPerBid
	}
	return ProtocolConfig{
		Address:        ProtocolAddress(),
		Admin:          admin,
		MaxSlotsPerBid: maxSlots,
		CreatedAt:      now.UTC(),
	}, nil
}

// IsAdmin reports whether addr is the protocol admin.
func (c ProtocolConfig) IsAdmin(addr common.Address) bool {
	return addr != (common.Address{}) && addr == c.Admin
}
