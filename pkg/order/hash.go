package order

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FoldActions chains the encoded actions into one accumulator:
//
//	acc_0 = 0x00..00
//	acc_i = keccak256(acc_{i-1} ++ uint32(proxyId) ++ ledger ++ params)
//
// Reordering actions changes the result.
func FoldActions(actions []EncodedAction) common.Hash {
	var acc common.Hash
	var proxy [4]byte
	for _, a := range actions {
		binary.BigEndian.PutUint32(proxy[:], a.ProxyID)
		acc = crypto.Keccak256Hash(acc[:], proxy[:], a.Ledger[:], a.Params)
	}
	return acc
}

// orderDigest is keccak256(gateway ++ participants ++ acc ++ seed ++ expiration).
func orderDigest(gateway common.Address, participants []common.Address, acc common.Hash, o Order) (common.Hash, error) {
	seed, _, err := integerWord("seed", o.Seed)
	if err != nil {
		return common.Hash{}, err
	}
	expiration, _, err := integerWord("expiration", o.Expiration)
	if err != nil {
		return common.Hash{}, err
	}

	parts := make([][]byte, 0, len(participants)+4)
	parts = append(parts, gateway.Bytes())
	for _, p := range participants {
		parts = append(parts, p.Bytes())
	}
	parts = append(parts, acc[:], seed[:], expiration[:])
	return crypto.Keccak256Hash(parts...), nil
}

func addresses(in []string) []common.Address {
	out := make([]common.Address, len(in))
	for i, s := range in {
		out[i] = common.HexToAddress(s)
	}
	return out
}
