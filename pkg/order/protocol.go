package order

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol is one gateway wire format. Exactly two implementations exist:
// the N-party actions protocol and the legacy 2-party protocol. Every method
// except Normalize expects an order that Normalize has already returned.
type Protocol interface {
	// Gateway is the verifier contract and the hash domain tag.
	Gateway() common.Address
	Normalize(o Order) (Order, error)
	Encode(o Order) ([]EncodedAction, error)
	Hash(o Order) (common.Hash, error)
	// Dynamic reports whether any participant resolved to the sentinel, which
	// routes perform to the any-taker entry point.
	Dynamic(o Order) bool
	// SignerSlot returns the position in the perform signature array that a
	// claim by the named participant addr fills, or false if addr is not one.
	SignerSlot(o Order, addr common.Address) (int, bool)
	// OpenSlots lists the signature positions any signer may fill, in order.
	OpenSlots(o Order) []int
	PerformRecipe(o Order, sigs []SignatureData) (Recipe, error)
	CancelRecipe(o Order) (Recipe, error)
	OrderDataClaimRecipe(o Order) (Recipe, error)
	IsValidSignatureRecipe(signer common.Address, digest common.Hash, sig SignatureData) Recipe

	protocol()
}

// ProtocolFor selects the variant for kind.
func ProtocolFor(kind Kind, d *Deployment) (Protocol, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: no deployment configured", IssueWrongInput)
	}
	switch {
	case kind.IsActions():
		return actionsProtocol{d: d}, nil
	case kind == LegacyOrder:
		return legacyProtocol{d: d}, nil
	default:
		return nil, fmt.Errorf("%w: unknown order kind %q", IssueWrongInput, kind)
	}
}

// Normalize canonicalizes every address in o and fills unset participants
// with the zero-address sentinel where the variant allows it. o is not
// modified.
func Normalize(o Order, d *Deployment) (Order, error) {
	p, err := ProtocolFor(o.Kind, d)
	if err != nil {
		return Order{}, err
	}
	return p.Normalize(o)
}

// Hash normalizes o and returns the digest the gateway will recompute.
func Hash(o Order, d *Deployment) (common.Hash, error) {
	p, err := ProtocolFor(o.Kind, d)
	if err != nil {
		return common.Hash{}, err
	}
	n, err := p.Normalize(o)
	if err != nil {
		return common.Hash{}, err
	}
	return p.Hash(n)
}
