package order

import (
	"fmt"

	"github.com/uhyunpark/orderkit/pkg/crypto"
)

func checksum(field, addr string) (string, error) {
	out, err := crypto.ChecksumAddress(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", IssueWrongInput, field, err)
	}
	return out, nil
}

// orSentinel checksums addr, substituting the zero address when unset.
func orSentinel(field, addr string) (string, error) {
	if addr == "" {
		return crypto.ZeroAddress, nil
	}
	return checksum(field, addr)
}

func isSentinel(addr string) bool {
	return crypto.IsZeroAddress(addr)
}

func (k ActionKind) known() bool {
	switch k {
	case CreateAsset, TransferAsset, TransferValue, UpdateAssetImprint, DestroyAsset, SetAbilities:
		return true
	}
	return false
}

// normalizeAction rewrites a in place. a must belong to a cloned order.
// dynamic says whether a sentinel receiver may stand for the executor.
func normalizeAction(a *Action, i int, dynamic bool) error {
	if !a.Kind.known() {
		return fmt.Errorf("%w: actions[%d] kind %q", IssueActionKindNotSupported, i, a.Kind)
	}
	if a.LedgerID == "" {
		return fmt.Errorf("%w: actions[%d] ledgerId is not set", IssueWrongInput, i)
	}
	ledger, err := checksum(fmt.Sprintf("actions[%d].ledgerId", i), a.LedgerID)
	if err != nil {
		return err
	}
	a.LedgerID = ledger

	sender, err := orSentinel(fmt.Sprintf("actions[%d].senderId", i), a.SenderID)
	if err != nil {
		return err
	}
	a.SenderID = sender

	if !a.Kind.needsCounterparty() {
		if a.ReceiverID != "" {
			if a.ReceiverID, err = checksum(fmt.Sprintf("actions[%d].receiverId", i), a.ReceiverID); err != nil {
				return err
			}
		}
		return nil
	}

	receiver, err := orSentinel(fmt.Sprintf("actions[%d].receiverId", i), a.ReceiverID)
	if err != nil {
		return err
	}
	if isSentinel(sender) && isSentinel(receiver) {
		return fmt.Errorf("%w: actions[%d]", IssueSenderAndReceiverMissing, i)
	}
	if isSentinel(receiver) && !dynamic {
		return fmt.Errorf("%w: actions[%d] receiverId is not set", IssueNoReceiver, i)
	}
	a.ReceiverID = receiver
	return nil
}

func (p actionsProtocol) Normalize(o Order) (Order, error) {
	n := o.Clone()
	if len(n.Signers) == 0 {
		return Order{}, fmt.Errorf("%w: order has no signers", IssueWrongInput)
	}
	dynamic := n.Kind.AllowsDynamic()

	for i, s := range n.Signers {
		if s == "" && !dynamic {
			return Order{}, fmt.Errorf("%w: signers[%d] is not set", IssueWrongInput, i)
		}
		v, err := orSentinel(fmt.Sprintf("signers[%d]", i), s)
		if err != nil {
			return Order{}, err
		}
		if isSentinel(v) && !dynamic {
			return Order{}, fmt.Errorf("%w: signers[%d] is the zero address on a fixed order", IssueWrongInput, i)
		}
		n.Signers[i] = v
	}

	for i := range n.Actions {
		if err := normalizeAction(&n.Actions[i], i, dynamic); err != nil {
			return Order{}, err
		}
	}
	return n, nil
}

func (p legacyProtocol) Normalize(o Order) (Order, error) {
	n := o.Clone()
	if n.MakerID == "" {
		return Order{}, fmt.Errorf("%w: makerId is not set", IssueWrongInput)
	}
	maker, err := checksum("makerId", n.MakerID)
	if err != nil {
		return Order{}, err
	}
	if isSentinel(maker) {
		return Order{}, fmt.Errorf("%w: makerId is the zero address", IssueWrongInput)
	}
	taker, err := orSentinel("takerId", n.TakerID)
	if err != nil {
		return Order{}, err
	}
	n.MakerID, n.TakerID = maker, taker

	dynamic := isSentinel(taker)
	for i := range n.Actions {
		if err := normalizeAction(&n.Actions[i], i, dynamic); err != nil {
			return Order{}, err
		}
	}
	return n, nil
}
