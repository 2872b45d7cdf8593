package crypto

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignMethod identifies how the signed message was derived from the order
// digest. The gateway applies the same prefix during recovery.
type SignMethod uint8

const (
	EthSign      SignMethod = 0 // "\x19Ethereum Signed Message:\n32" ++ digest
	Trezor       SignMethod = 1 // "\x19Ethereum Signed Message:\n\x20" ++ digest
	EIP712       SignMethod = 2 // digest as-is
	PersonalSign SignMethod = 3 // same prefix as EthSign
)

// Valid reports whether m is a method the gateway understands.
func (m SignMethod) Valid() bool {
	return m <= PersonalSign
}

func (m SignMethod) String() string {
	switch m {
	case EthSign:
		return "eth_sign"
	case Trezor:
		return "trezor"
	case EIP712:
		return "eip712"
	case PersonalSign:
		return "personal_sign"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ParseSignMethod accepts a method name as printed by String or its numeric
// tag.
func ParseSignMethod(s string) (SignMethod, error) {
	for m := EthSign; m <= PersonalSign; m++ {
		if s == m.String() || s == strconv.Itoa(int(m)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown sign method %q", s)
}

var trezorPrefix = []byte("\x19Ethereum Signed Message:\n\x20")

// MessageHash returns the 32-byte value that is actually fed to ECDSA for a
// given method and order digest.
func MessageHash(method SignMethod, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	switch method {
	case EthSign, PersonalSign:
		return accounts.TextHash(digest), nil
	case Trezor:
		return crypto.Keccak256(trezorPrefix, digest), nil
	case EIP712:
		return common.CopyBytes(digest), nil
	default:
		return nil, fmt.Errorf("unknown sign method %d", uint8(method))
	}
}

// Signer manages a secp256k1 key pair and signs order digests.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// GenerateKey creates a new random secp256k1 key pair
func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newSigner(privateKey)
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key
// Format: "0x1234..." or "1234..." (64 hex chars)
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	if len(hexKey) > 1 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newSigner(privateKey)
}

func newSigner(privateKey *ecdsa.PrivateKey) (*Signer, error) {
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}
	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

// Address returns the Ethereum address derived from the public key
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKeyHex returns the private key as hex string (WITHOUT 0x prefix)
// WARNING: Keep this secret! Never expose to users or logs
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}

// Sign signs a 32-byte hash and returns [R || S || V] with V in {0, 1}.
func (s *Signer) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	signature, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	return signature, nil
}

// SignDigest prefixes the order digest according to method and signs it.
// The local key never blocks, so ctx is only checked up front.
func (s *Signer) SignDigest(ctx context.Context, method SignMethod, digest common.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, err := MessageHash(method, digest.Bytes())
	if err != nil {
		return nil, err
	}
	return s.Sign(msg)
}

// SignTx signs a transaction for chainID with the latest signer rules.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
}

// RecoverAddress recovers the signer's address from a message hash and a
// 65-byte signature. V may be either {0, 1} or {27, 28}.
func RecoverAddress(hash []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if len(hash) != 32 {
		return common.Address{}, fmt.Errorf("invalid hash length: %d", len(hash))
	}

	sig := common.CopyBytes(signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	publicKeyBytes, err := crypto.Ecrecover(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	publicKey, err := crypto.UnmarshalPubkey(publicKeyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unmarshal public key: %w", err)
	}

	return crypto.PubkeyToAddress(*publicKey), nil
}

// RecoverDigestSigner undoes the method prefix and recovers the address that
// signed digest.
func RecoverDigestSigner(method SignMethod, digest common.Hash, signature []byte) (common.Address, error) {
	msg, err := MessageHash(method, digest.Bytes())
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(msg, signature)
}

// SplitSignature splits a 65-byte signature into R, S, V components
func SplitSignature(signature []byte) (r, s [32]byte, v uint8, err error) {
	if len(signature) != 65 {
		return r, s, 0, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	copy(r[:], signature[:32])
	copy(s[:], signature[32:64])
	return r, s, signature[64], nil
}

// JoinSignature combines R, S, V into a 65-byte signature
func JoinSignature(r, s [32]byte, v uint8) []byte {
	signature := make([]byte, 65)
	copy(signature[:32], r[:])
	copy(signature[32:64], s[:])
	signature[64] = v
	return signature
}

// GenerateSeed returns a cryptographically random order seed.
func GenerateSeed() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("failed to generate seed: %w", err)
	}
	// keep it below 2^53 so JSON clients read it back exactly
	return binary.BigEndian.Uint64(b[:]) >> 11, nil
}
