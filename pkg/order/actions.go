package order

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// actionsProtocol is the N-party variant: an ordered signer list, actions
// that reference their sender by signer index.
type actionsProtocol struct {
	d *Deployment
}

func (actionsProtocol) protocol() {}

func (p actionsProtocol) Gateway() common.Address { return p.d.ActionsGateway }

func (p actionsProtocol) Encode(o Order) ([]EncodedAction, error) {
	out := make([]EncodedAction, len(o.Actions))
	for i, a := range o.Actions {
		enc, err := EncodeAction(a, o.Signers, p.d)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		out[i] = enc
	}
	return out, nil
}

func (p actionsProtocol) Hash(o Order) (common.Hash, error) {
	encoded, err := p.Encode(o)
	if err != nil {
		return common.Hash{}, err
	}
	return orderDigest(p.d.ActionsGateway, addresses(o.Signers), FoldActions(encoded), o)
}

func (p actionsProtocol) Dynamic(o Order) bool {
	for _, s := range o.Signers {
		if isSentinel(s) {
			return true
		}
	}
	for _, a := range o.Actions {
		if a.Kind.needsCounterparty() && isSentinel(a.ReceiverID) {
			return true
		}
	}
	return false
}

// slots maps each position of the perform signature array to the signer it
// covers. An unset signer is the executor on a plain order and needs no
// signature. On a signed order it is whoever signs for it.
func (p actionsProtocol) slots(o Order) []int {
	out := make([]int, 0, len(o.Signers))
	for i, s := range o.Signers {
		if isSentinel(s) && !o.Kind.Signed() {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (p actionsProtocol) SignerSlot(o Order, addr common.Address) (int, bool) {
	for slot, i := range p.slots(o) {
		s := o.Signers[i]
		if !isSentinel(s) && common.HexToAddress(s) == addr {
			return slot, true
		}
	}
	return 0, false
}

func (p actionsProtocol) OpenSlots(o Order) []int {
	var open []int
	for slot, i := range p.slots(o) {
		if isSentinel(o.Signers[i]) {
			open = append(open, slot)
		}
	}
	return open
}

// checkSignatureCount: a signed order needs every slot filled. On a plain
// order claims fill the leading slots and the executor's transaction
// authorizes the rest.
func (p actionsProtocol) checkSignatureCount(o Order, n int) error {
	want := len(p.slots(o))
	if o.Kind.Signed() {
		if n != want {
			return fmt.Errorf("%w: %d signatures for %d signing slots", IssueWrongInput, n, want)
		}
		return nil
	}
	if n == 0 || n > want {
		return fmt.Errorf("%w: %d signatures for %d concrete signers", IssueWrongInput, n, want)
	}
	return nil
}

func (p actionsProtocol) orderData(o Order) (OrderData, error) {
	encoded, err := p.Encode(o)
	if err != nil {
		return OrderData{}, err
	}
	seed, expiration, err := orderNumbers(o)
	if err != nil {
		return OrderData{}, err
	}
	actions := make([]ActionData, len(encoded))
	for i, e := range encoded {
		actions[i] = ActionData{ProxyID: e.ProxyID, ContractAddress: e.Ledger, Params: e.Params}
	}
	return OrderData{
		Signers:    addresses(o.Signers),
		Actions:    actions,
		Seed:       seed,
		Expiration: expiration,
	}, nil
}

func (p actionsProtocol) recipe(method string, args ...interface{}) Recipe {
	return Recipe{Gateway: p.d.ActionsGateway, ABI: &ActionsGatewayABI, Method: method, Args: args}
}

func (p actionsProtocol) PerformRecipe(o Order, sigs []SignatureData) (Recipe, error) {
	if err := p.checkSignatureCount(o, len(sigs)); err != nil {
		return Recipe{}, err
	}
	data, err := p.orderData(o)
	if err != nil {
		return Recipe{}, err
	}
	tuples := make([]SignatureTuple, len(sigs))
	for i, s := range sigs {
		tuples[i] = s.Tuple()
	}
	return p.recipe(performMethod(p.Dynamic(o), o.Kind.Signed()), data, tuples), nil
}

func (p actionsProtocol) CancelRecipe(o Order) (Recipe, error) {
	data, err := p.orderData(o)
	if err != nil {
		return Recipe{}, err
	}
	return p.recipe(MethodCancel, data), nil
}

func (p actionsProtocol) OrderDataClaimRecipe(o Order) (Recipe, error) {
	data, err := p.orderData(o)
	if err != nil {
		return Recipe{}, err
	}
	return p.recipe(MethodGetOrderDataClaim, data), nil
}

func (p actionsProtocol) IsValidSignatureRecipe(signer common.Address, digest common.Hash, sig SignatureData) Recipe {
	return p.recipe(MethodIsValidSignature, signer, [32]byte(digest), sig.Tuple())
}
