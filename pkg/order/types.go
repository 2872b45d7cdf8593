package order

import (
	"encoding/json"
)

// Kind selects the order protocol variant.
type Kind string

const (
	// N-party variant, verified by the actions gateway. On the plain kinds
	// the executor is a party and its transaction stands in for its own
	// signature. On the signed kinds every party signs and anyone may
	// submit.
	FixedActionsOrder         Kind = "FIXED_ACTIONS_ORDER"
	SignedFixedActionsOrder   Kind = "SIGNED_FIXED_ACTIONS_ORDER"
	DynamicActionsOrder       Kind = "DYNAMIC_ACTIONS_ORDER"
	SignedDynamicActionsOrder Kind = "SIGNED_DYNAMIC_ACTIONS_ORDER"

	// Legacy 2-party variant (maker/taker), verified by the order gateway.
	LegacyOrder Kind = "LEGACY_ORDER"
)

// IsActions reports whether k belongs to the N-party variant.
func (k Kind) IsActions() bool {
	switch k {
	case FixedActionsOrder, SignedFixedActionsOrder, DynamicActionsOrder, SignedDynamicActionsOrder:
		return true
	}
	return false
}

// AllowsDynamic reports whether unset participants may be left for the
// gateway to resolve at execution time.
func (k Kind) AllowsDynamic() bool {
	switch k {
	case DynamicActionsOrder, SignedDynamicActionsOrder, LegacyOrder:
		return true
	}
	return false
}

// Signed reports whether every party must sign, leaving the executor
// outside the order. An unset signer of a signed dynamic order is filled by
// whoever signs for that slot rather than by the executor.
func (k Kind) Signed() bool {
	return k == SignedFixedActionsOrder || k == SignedDynamicActionsOrder
}

// ActionKind tags an Action.
type ActionKind string

const (
	CreateAsset        ActionKind = "CREATE_ASSET"
	TransferAsset      ActionKind = "TRANSFER_ASSET"
	TransferValue      ActionKind = "TRANSFER_VALUE"
	UpdateAssetImprint ActionKind = "UPDATE_ASSET_IMPRINT"
	DestroyAsset       ActionKind = "DESTROY_ASSET"
	SetAbilities       ActionKind = "SET_ABILITIES"
)

// needsCounterparty reports whether the action moves something between two
// accounts, so at least one side must be a concrete address.
func (k ActionKind) needsCounterparty() bool {
	switch k {
	case CreateAsset, TransferAsset, TransferValue, SetAbilities:
		return true
	}
	return false
}

// Ability is a capability flag on an asset ledger. The on-chain bitfield is
// the OR of all granted flags.
type Ability uint64

const (
	AbilityManageAbilities         Ability = 1
	AbilityAllowManageAbilities    Ability = 2
	AbilityCreateAsset             Ability = 16
	AbilityRevokeAsset             Ability = 32
	AbilityToggleTransfers         Ability = 64
	AbilityUpdateAsset             Ability = 128
	AbilityUpdateURIBase           Ability = 256
	AbilityAllowCreateAsset        Ability = 512
	AbilityAllowUpdateAssetImprint Ability = 1024
)

// Action is one step of an order. Which fields matter depends on Kind.
type Action struct {
	Kind         ActionKind `json:"kind"`
	LedgerID     string     `json:"ledgerId"`
	SenderID     string     `json:"senderId,omitempty"`
	ReceiverID   string     `json:"receiverId,omitempty"`
	AssetID      string     `json:"assetId,omitempty"`
	AssetImprint string     `json:"assetImprint,omitempty"`
	Value        string     `json:"value,omitempty"`
	Abilities    []Ability  `json:"abilities,omitempty"`
}

// Order is the unit that is hashed, signed and executed atomically.
//
// Signers is used by the N-party variant and is position-significant:
// actions reference their sender by index into it. MakerID and TakerID are
// used by the legacy variant only.
type Order struct {
	Kind       Kind        `json:"kind"`
	Signers    []string    `json:"signers,omitempty"`
	MakerID    string      `json:"makerId,omitempty"`
	TakerID    string      `json:"takerId,omitempty"`
	Seed       json.Number `json:"seed"`
	Expiration json.Number `json:"expiration"`
	Actions    []Action    `json:"actions"`
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	c := o
	if o.Signers != nil {
		c.Signers = append([]string(nil), o.Signers...)
	}
	if o.Actions != nil {
		c.Actions = make([]Action, len(o.Actions))
		for i, a := range o.Actions {
			c.Actions[i] = a
			if a.Abilities != nil {
				c.Actions[i].Abilities = append([]Ability(nil), a.Abilities...)
			}
		}
	}
	return c
}

// ParseOrder decodes a JSON order.
func ParseOrder(data []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}
