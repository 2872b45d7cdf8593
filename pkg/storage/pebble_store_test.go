package storage

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/orderkit/pkg/order"
)

func openStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := NewPebbleStore(filepath.Join(t.TempDir(), "claims"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOrder() order.Order {
	return order.Order{
		Kind:       order.FixedActionsOrder,
		Signers:    []string{"0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa", "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},
		Seed:       "1535113220",
		Expiration: "1535113820",
		Actions: []order.Action{{
			Kind:       order.TransferValue,
			LedgerID:   "0x1D1D1D1D1D1D1D1D1D1D1D1D1D1D1D1D1D1D1D1D",
			SenderID:   "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa",
			ReceiverID: "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
			Value:      "5000",
		}},
	}
}

func TestOrderRoundTrip(t *testing.T) {
	s := openStore(t)
	digest := common.HexToHash("0x01")

	got, err := s.LoadOrder(digest)
	require.NoError(t, err)
	require.Nil(t, got)

	o := sampleOrder()
	require.NoError(t, s.SaveOrder(digest, o))
	got, err = s.LoadOrder(digest)
	require.NoError(t, err)
	require.Equal(t, o, *got)
}

func TestClaimsOrderedBySlot(t *testing.T) {
	s := openStore(t)
	digest := common.HexToHash("0x02")
	a := common.HexToAddress("0xaa")
	b := common.HexToAddress("0xbb")
	c := common.HexToAddress("0x01")

	require.NoError(t, s.SaveClaim(digest, ClaimRecord{Signer: b, Claim: "0:0xb", Slot: 1}))
	require.NoError(t, s.SaveClaim(digest, ClaimRecord{Signer: a, Claim: "0:0xa", Slot: 2}))
	require.NoError(t, s.SaveClaim(digest, ClaimRecord{Signer: c, Claim: "0:0xc", Slot: 0}))
	// another order's claims stay out of the scan
	require.NoError(t, s.SaveClaim(common.HexToHash("0x03"), ClaimRecord{Signer: a, Claim: "x"}))

	claims, err := s.LoadClaims(digest)
	require.NoError(t, err)
	require.Len(t, claims, 3)
	require.Equal(t, []common.Address{c, b, a}, []common.Address{claims[0].Signer, claims[1].Signer, claims[2].Signer})

	// resubmission replaces the earlier claim
	require.NoError(t, s.SaveClaim(digest, ClaimRecord{Signer: a, Claim: "0:0xa2", Slot: 2}))
	claims, err = s.LoadClaims(digest)
	require.NoError(t, err)
	require.Len(t, claims, 3)
	require.Equal(t, "0:0xa2", claims[2].Claim)
}

func TestDeleteOrderDropsClaims(t *testing.T) {
	s := openStore(t)
	digest := common.HexToHash("0x04")
	other := common.HexToHash("0x05")

	require.NoError(t, s.SaveOrder(digest, sampleOrder()))
	require.NoError(t, s.SaveClaim(digest, ClaimRecord{Signer: common.HexToAddress("0xaa"), Claim: "x"}))
	require.NoError(t, s.SaveClaim(other, ClaimRecord{Signer: common.HexToAddress("0xaa"), Claim: "y"}))

	require.NoError(t, s.DeleteOrder(digest))

	got, err := s.LoadOrder(digest)
	require.NoError(t, err)
	require.Nil(t, got)
	claims, err := s.LoadClaims(digest)
	require.NoError(t, err)
	require.Empty(t, claims)

	claims, err = s.LoadClaims(other)
	require.NoError(t, err)
	require.Len(t, claims, 1)
}
