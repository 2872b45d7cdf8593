package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema for the claim store:
//
//   ord:<digest>          → Order (JSON)
//   clm:<digest>:<signer> → ClaimRecord (gob)
//
// Digests and addresses are 0x-prefixed hex, so every claim of one order
// shares the "clm:<digest>:" prefix.

const (
	prefixOrder = "ord:"
	prefixClaim = "clm:"
)

// orderKey returns the key for an order
// Format: "ord:{digest}"
func orderKey(digest common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixOrder, digest.Hex()))
}

// claimKey returns the key for one signer's claim on an order
// Format: "clm:{digest}:{signer}"
func claimKey(digest common.Hash, signer common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixClaim, digest.Hex(), signer.Hex()))
}

// claimPrefix returns the prefix for all claims on an order
// Format: "clm:{digest}:"
func claimPrefix(digest common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixClaim, digest.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
