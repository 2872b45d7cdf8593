package order

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// legacyProtocol is the 2-party maker/taker variant. An unset taker lets
// whoever executes the order take it.
type legacyProtocol struct {
	d *Deployment
}

func (legacyProtocol) protocol() {}

func (p legacyProtocol) Gateway() common.Address { return p.d.OrderGateway }

func (p legacyProtocol) Encode(o Order) ([]EncodedAction, error) {
	out := make([]EncodedAction, len(o.Actions))
	for i, a := range o.Actions {
		enc, err := EncodeLegacyAction(a, p.d)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		out[i] = enc
	}
	return out, nil
}

func (p legacyProtocol) Hash(o Order) (common.Hash, error) {
	encoded, err := p.Encode(o)
	if err != nil {
		return common.Hash{}, err
	}
	participants := []common.Address{common.HexToAddress(o.MakerID), common.HexToAddress(o.TakerID)}
	return orderDigest(p.d.OrderGateway, participants, FoldActions(encoded), o)
}

func (p legacyProtocol) Dynamic(o Order) bool {
	return isSentinel(o.TakerID)
}

// SignerSlot: only the maker signs a legacy order. The taker executes it.
func (p legacyProtocol) SignerSlot(o Order, addr common.Address) (int, bool) {
	if common.HexToAddress(o.MakerID) == addr {
		return 0, true
	}
	return 0, false
}

func (p legacyProtocol) OpenSlots(Order) []int { return nil }

func (p legacyProtocol) orderData(o Order) (LegacyOrderData, error) {
	encoded, err := p.Encode(o)
	if err != nil {
		return LegacyOrderData{}, err
	}
	seed, expiration, err := orderNumbers(o)
	if err != nil {
		return LegacyOrderData{}, err
	}
	actions := make([]LegacyActionData, len(encoded))
	for i, e := range encoded {
		if len(e.Params) != legacyParamsLen {
			return LegacyOrderData{}, fmt.Errorf("%w: actions[%d] params are %d bytes", IssueWrongInput, i, len(e.Params))
		}
		var param1 [32]byte
		copy(param1[:], e.Params[:legacyParam1End])
		actions[i] = LegacyActionData{
			ProxyID: e.ProxyID,
			Token:   e.Ledger,
			Param1:  param1,
			To:      common.BytesToAddress(e.Params[legacyParam1End:legacyToEnd]),
			Value:   new(big.Int).SetBytes(e.Params[legacyToEnd:]),
		}
	}
	return LegacyOrderData{
		Maker:      common.HexToAddress(o.MakerID),
		Taker:      common.HexToAddress(o.TakerID),
		Actions:    actions,
		Seed:       seed,
		Expiration: expiration,
	}, nil
}

func (p legacyProtocol) recipe(method string, args ...interface{}) Recipe {
	return Recipe{Gateway: p.d.OrderGateway, ABI: &OrderGatewayABI, Method: method, Args: args}
}

func (p legacyProtocol) PerformRecipe(o Order, sigs []SignatureData) (Recipe, error) {
	if len(sigs) != 1 {
		return Recipe{}, fmt.Errorf("%w: legacy orders take exactly one signature, got %d", IssueWrongInput, len(sigs))
	}
	data, err := p.orderData(o)
	if err != nil {
		return Recipe{}, err
	}
	return p.recipe(performMethod(p.Dynamic(o), false), data, sigs[0].Tuple()), nil
}

func (p legacyProtocol) CancelRecipe(o Order) (Recipe, error) {
	data, err := p.orderData(o)
	if err != nil {
		return Recipe{}, err
	}
	return p.recipe(MethodCancel, data), nil
}

func (p legacyProtocol) OrderDataClaimRecipe(o Order) (Recipe, error) {
	data, err := p.orderData(o)
	if err != nil {
		return Recipe{}, err
	}
	return p.recipe(MethodGetOrderDataClaim, data), nil
}

func (p legacyProtocol) IsValidSignatureRecipe(signer common.Address, digest common.Hash, sig SignatureData) Recipe {
	return p.recipe(MethodIsValidSignature, signer, [32]byte(digest), sig.Tuple())
}
