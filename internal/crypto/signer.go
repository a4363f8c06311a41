package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrBadSignature reports a signature that is malformed or does not recover
// to the claimed address.
var ErrBadSignature = errors.New("crypto: bad signature")

// Signer produces EIP-191 personal signatures with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{privateKey: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}, nil
}

// Address returns the address derived from the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignMessage signs msg under the EIP-191 personal-message prefix and
// returns the 65-byte signature as 0x-prefixed hex with v in {27, 28}.
func (s *Signer) SignMessage(msg []byte) (string, error) {
	sig, err := ethcrypto.Sign(personalHash(msg), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// SignRequest signs the canonical request message for method, path,
// timestamp and body.
func (s *Signer) SignRequest(method, path string, unixTS int64, body []byte) (string, error) {
	return s.SignMessage(RequestMessage(method, path, unixTS, body))
}

// RequestMessage builds the canonical text a caller signs:
//
//	METHOD \n PATH \n UNIX_TIMESTAMP \n hex(sha256(body))
func RequestMessage(method, path string, unixTS int64, body []byte) []byte {
	sum := sha256.Sum256(body)
	return []byte(strings.ToUpper(method) + "\n" + path + "\n" +
		strconv.FormatInt(unixTS, 10) + "\n" + hex.EncodeToString(sum[:]))
}

// RecoverMessage returns the address that produced sigHex over msg.
func RecoverMessage(msg []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		return common.Address{}, ErrBadSignature
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, ErrBadSignature
	}
	pub, err := ethcrypto.SigToPub(personalHash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyRequest checks that sigHex over the request message recovers to claimed.
func VerifyRequest(claimed common.Address, method, path string, unixTS int64, body []byte, sigHex string) error {
	got, err := RecoverMessage(RequestMessage(method, path, unixTS, body), sigHex)
	if err != nil {
		return err
	}
	if got != claimed {
		return ErrBadSignature
	}
	return nil
}

// personalHash is keccak256("\x19Ethereum Signed Message:\n" || len(msg) || msg).
func personalHash(msg []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return ethcrypto.Keccak256([]byte(prefix), msg)
}
