package domain

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Derivation labels. Each custody or entity account is addressed by hashing
// its label together with the addresses it belongs to.
const (
	LabelProduct  = "product"
	LabelBid      = "bid"
	LabelTreasury = "treasury"
	LabelPool     = "pool"
	LabelMint     = "mint"
	LabelProtocol = "global-config"
)

// Derive returns the deterministic address for label and parents:
//
//	keccak256(len(label) || label || parent_0 || ... || parent_n)[12:]
//
// Derived addresses are lookup and uniqueness keys only; who may act on an
// entity is decided by its ownership fields.
func Derive(label string, parents ...common.Address) common.Address {
	buf := make([]byte, 0, 1+len(label)+len(parents)*common.AddressLength)
	buf = append(buf, byte(len(label)))
	buf = append(buf, label...)
	for _, p := range parents {
		buf = append(buf, p.Bytes()...)
	}
	return common.BytesToAddress(ethcrypto.Keccak256(buf)[12:])
}

// ProductAddress is the campaign address for owner. One campaign per owner.
func ProductAddress(owner common.Address) common.Address {
	return Derive(LabelProduct, owner)
}

// BidAddress is the bid address for bidder on product.
func BidAddress(product, bidder common.Address) common.Address {
	return Derive(LabelBid, product, bidder)
}

// TreasuryAddress is the capital custody account bound to product.
func TreasuryAddress(product common.Address) common.Address {
	return Derive(LabelTreasury, product)
}

// PoolAddress is the token custody account bound to product.
func PoolAddress(product common.Address) common.Address {
	return Derive(LabelPool, product)
}

// MintAddress identifies the token minted for product.
func MintAddress(product common.Address) common.Address {
	return Derive(LabelMint, product)
}

// ProtocolAddress is the singleton protocol configuration address.
func ProtocolAddress() common.Address {
	return Derive(LabelProtocol)
}

// ParseAddress parses a hex address, rejecting malformed and zero values.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, ErrInvalidAddress
	}
	return addr, nil
}
