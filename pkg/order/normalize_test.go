package order

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/orderkit/pkg/crypto"
)

func TestNormalizeChecksumsAndDoesNotMutate(t *testing.T) {
	d := testDeployment()
	o := twoActionOrder()

	n, err := Normalize(o, d)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(addrA).Hex(), n.Signers[0])
	require.Equal(t, common.HexToAddress(ledger).Hex(), n.Actions[0].LedgerID)
	require.Equal(t, common.HexToAddress(addrB).Hex(), n.Actions[0].ReceiverID)

	// caller's order keeps its lowercase input
	require.Equal(t, addrA, o.Signers[0])
	require.Equal(t, ledger, o.Actions[0].LedgerID)
}

func TestNormalizeIdempotent(t *testing.T) {
	d := testDeployment()
	orders := []Order{
		twoActionOrder(),
		{
			Kind:       DynamicActionsOrder,
			Signers:    []string{addrA, ""},
			Seed:       "1",
			Expiration: "2",
			Actions:    []Action{{Kind: TransferValue, LedgerID: ledger, SenderID: addrA, Value: "1"}},
		},
		{
			Kind:       LegacyOrder,
			MakerID:    addrA,
			Seed:       "1",
			Expiration: "2",
			Actions:    []Action{{Kind: TransferAsset, LedgerID: ledger, SenderID: addrA, AssetID: "1"}},
		},
	}
	for _, o := range orders {
		once, err := Normalize(o, d)
		require.NoError(t, err, o.Kind)
		twice, err := Normalize(once, d)
		require.NoError(t, err, o.Kind)
		require.Equal(t, once, twice, o.Kind)
	}
}

func TestNormalizeDynamicActionsOrder(t *testing.T) {
	o := Order{
		Kind:       DynamicActionsOrder,
		Signers:    []string{addrA, ""},
		Seed:       "1",
		Expiration: "2",
		Actions: []Action{
			{Kind: TransferValue, LedgerID: ledger, SenderID: addrA, Value: "1"},
			{Kind: TransferAsset, LedgerID: ledger, ReceiverID: addrA, AssetID: "9"},
		},
	}
	n, err := Normalize(o, testDeployment())
	require.NoError(t, err)
	require.Equal(t, crypto.ZeroAddress, n.Signers[1])
	require.Equal(t, crypto.ZeroAddress, n.Actions[0].ReceiverID)
	require.Equal(t, crypto.ZeroAddress, n.Actions[1].SenderID)

	// the sentinel sender resolves to the dynamic signer's slot
	enc, err := EncodeAction(n.Actions[1], n.Signers, testDeployment())
	require.NoError(t, err)
	require.Equal(t, byte(1), enc.Params[len(enc.Params)-1])
}

func TestNormalizeFixedActionsOrderRejectsSentinels(t *testing.T) {
	d := testDeployment()

	o := twoActionOrder()
	o.Signers[1] = ""
	_, err := Normalize(o, d)
	require.ErrorIs(t, err, IssueWrongInput)

	o = twoActionOrder()
	o.Signers[1] = crypto.ZeroAddress
	_, err = Normalize(o, d)
	require.ErrorIs(t, err, IssueWrongInput)

	o = twoActionOrder()
	o.Actions[1].ReceiverID = ""
	_, err = Normalize(o, d)
	require.ErrorIs(t, err, IssueNoReceiver)
}

func TestNormalizeBothEndsMissing(t *testing.T) {
	o := Order{
		Kind:       SignedDynamicActionsOrder,
		Signers:    []string{addrA},
		Seed:       "1",
		Expiration: "2",
		Actions:    []Action{{Kind: SetAbilities, LedgerID: ledger, Abilities: []Ability{AbilityCreateAsset}}},
	}
	_, err := Normalize(o, testDeployment())
	require.ErrorIs(t, err, IssueSenderAndReceiverMissing)
}

func TestNormalizeLegacyDynamicTaker(t *testing.T) {
	d := testDeployment()
	o := Order{
		Kind:       LegacyOrder,
		MakerID:    addrA,
		Seed:       "1",
		Expiration: "2",
		Actions:    []Action{{Kind: TransferAsset, LedgerID: ledger, SenderID: addrA, AssetID: "1"}},
	}

	n, err := Normalize(o, d)
	require.NoError(t, err)
	require.Equal(t, crypto.ZeroAddress, n.TakerID)
	require.Equal(t, crypto.ZeroAddress, n.Actions[0].ReceiverID)

	o.Actions[0].SenderID = ""
	_, err = Normalize(o, d)
	require.ErrorIs(t, err, IssueSenderAndReceiverMissing)
}

func TestNormalizeLegacyFixedTakerNeedsReceiver(t *testing.T) {
	o := Order{
		Kind:       LegacyOrder,
		MakerID:    addrA,
		TakerID:    addrB,
		Seed:       "1",
		Expiration: "2",
		Actions:    []Action{{Kind: TransferAsset, LedgerID: ledger, SenderID: addrA, AssetID: "1"}},
	}
	_, err := Normalize(o, testDeployment())
	require.ErrorIs(t, err, IssueNoReceiver)

	o.MakerID = ""
	_, err = Normalize(o, testDeployment())
	require.ErrorIs(t, err, IssueWrongInput)
}

func TestNormalizeInputErrors(t *testing.T) {
	d := testDeployment()

	_, err := Normalize(Order{Kind: "BARTER"}, d)
	require.ErrorIs(t, err, IssueWrongInput)

	_, err = Normalize(Order{Kind: FixedActionsOrder}, d)
	require.ErrorIs(t, err, IssueWrongInput)

	o := twoActionOrder()
	o.Actions[0].LedgerID = "0x1234"
	_, err = Normalize(o, d)
	require.ErrorIs(t, err, IssueWrongInput)

	o = twoActionOrder()
	o.Actions[0].Kind = "MINT"
	_, err = Normalize(o, d)
	require.ErrorIs(t, err, IssueActionKindNotSupported)

	_, err = Normalize(twoActionOrder(), nil)
	require.ErrorIs(t, err, IssueWrongInput)
}

func TestParseOrder(t *testing.T) {
	data := []byte(`{
		"kind": "LEGACY_ORDER",
		"makerId": "` + addrA + `",
		"seed": 1535113220.12345,
		"expiration": 1535113820,
		"actions": [{"kind": "TRANSFER_VALUE", "ledgerId": "` + ledger + `", "senderId": "` + addrA + `", "value": "1"}]
	}`)
	o, err := ParseOrder(data)
	require.NoError(t, err)
	require.Equal(t, LegacyOrder, o.Kind)
	require.Equal(t, "1535113220.12345", o.Seed.String())
	require.Len(t, o.Actions, 1)
}
