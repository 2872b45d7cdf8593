package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/orderkit/pkg/crypto"
	"github.com/uhyunpark/orderkit/pkg/gateway"
	"github.com/uhyunpark/orderkit/pkg/order"
	"github.com/uhyunpark/orderkit/pkg/storage"
	"github.com/uhyunpark/orderkit/pkg/util"
)

const ledger = "0x1d1d1d1d1d1d1d1d1d1d1d1d1d1d1d1d1d1d1d1d"

type relayFixture struct {
	srv    *Server
	http   *httptest.Server
	maker  *crypto.Signer
	taker  *crypto.Signer
	makerG *gateway.Gateway
	takerG *gateway.Gateway
}

func newFixture(t *testing.T) *relayFixture {
	t.Helper()
	store, err := storage.NewPebbleStore(filepath.Join(t.TempDir(), "claims"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	d := order.NewDeployment(
		common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		common.HexToAddress("0x00000000000000000000000000000000000000b2"),
	)
	maker, err := crypto.GenerateKey()
	require.NoError(t, err)
	taker, err := crypto.GenerateKey()
	require.NoError(t, err)

	srv := NewServer(gateway.New(d, nil, nil), store, []string{"*"}, nil)
	go srv.Hub().Run()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Hub().Stop()
	})

	return &relayFixture{
		srv:    srv,
		http:   ts,
		maker:  maker,
		taker:  taker,
		makerG: gateway.New(d, nil, maker),
		takerG: gateway.New(d, nil, taker),
	}
}

func (f *relayFixture) swap() order.Order {
	return order.Order{
		Kind:       order.FixedActionsOrder,
		Signers:    []string{f.maker.Address().Hex(), f.taker.Address().Hex()},
		Seed:       "1535113220",
		Expiration: "1535113820",
		Actions: []order.Action{
			{Kind: order.TransferValue, LedgerID: ledger, SenderID: f.maker.Address().Hex(), ReceiverID: f.taker.Address().Hex(), Value: "100"},
			{Kind: order.TransferAsset, LedgerID: ledger, SenderID: f.taker.Address().Hex(), ReceiverID: f.maker.Address().Hex(), AssetID: "7"},
		},
	}
}

func (f *relayFixture) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.http.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *relayFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (f *relayFixture) submitOrder(t *testing.T, o order.Order) string {
	t.Helper()
	resp := f.post(t, "/api/v1/orders", o)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out SubmitOrderResponse
	decode(t, resp, &out)
	require.Equal(t, "stored", out.Status)
	return out.Digest
}

func TestSubmitAndGetOrder(t *testing.T) {
	f := newFixture(t)
	o := f.swap()
	digest := f.submitOrder(t, o)

	want, err := f.makerG.Hash(o)
	require.NoError(t, err)
	require.Equal(t, want.Hex(), digest)

	resp := f.get(t, "/api/v1/orders/"+digest)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info OrderInfo
	decode(t, resp, &info)
	require.Equal(t, digest, info.Digest)
	require.False(t, info.Dynamic)
	require.Equal(t, 0, info.Claims)
	require.Equal(t, common.HexToAddress(ledger).Hex(), info.Order.Actions[0].LedgerID)
}

func TestSubmitOrderReportsIssue(t *testing.T) {
	f := newFixture(t)
	o := f.swap()
	o.Actions[1].SenderID = "0xcccccccccccccccccccccccccccccccccccccccc"

	resp := f.post(t, "/api/v1/orders", o)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e ErrorResponse
	decode(t, resp, &e)
	require.Equal(t, string(order.IssueSenderNotSigner), e.Error)
}

func TestGetUnknownOrder(t *testing.T) {
	f := newFixture(t)
	resp := f.get(t, "/api/v1/orders/"+common.HexToHash("0x01").Hex())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.get(t, "/api/v1/orders/nothex")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClaimsCollectedInSignerOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.Clock = util.FixedClock(time.UnixMilli(1535113220000))
	o := f.swap()
	digest := f.submitOrder(t, o)

	takerClaim, err := f.takerG.Claim(ctx, o)
	require.NoError(t, err)
	makerClaim, err := f.makerG.Claim(ctx, o)
	require.NoError(t, err)

	for _, c := range []string{takerClaim, makerClaim} {
		resp := f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: c})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := f.get(t, "/api/v1/orders/"+digest+"/claims")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claims []ClaimInfo
	decode(t, resp, &claims)
	require.Len(t, claims, 2)
	require.Equal(t, f.maker.Address().Hex(), claims[0].Signer)
	require.Equal(t, makerClaim, claims[0].Claim)
	require.Equal(t, 1, claims[1].Slot)
	require.Equal(t, int64(1535113220000), claims[1].ReceivedAt)
}

func TestClaimFromOutsiderRejected(t *testing.T) {
	f := newFixture(t)
	o := f.swap()
	digest := f.submitOrder(t, o)

	outsider, err := crypto.GenerateKey()
	require.NoError(t, err)
	claim, err := gateway.New(f.makerG.Deployment(), nil, outsider).Claim(context.Background(), o)
	require.NoError(t, err)

	resp := f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: claim})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: "0:0x00"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e ErrorResponse
	decode(t, resp, &e)
	require.Equal(t, string(order.IssueWrongInput), e.Error)
}

func (f *relayFixture) openOrder(kind order.Kind) order.Order {
	return order.Order{
		Kind:       kind,
		Signers:    []string{f.maker.Address().Hex(), ""},
		Seed:       "1535113220",
		Expiration: "1535113820",
		Actions: []order.Action{
			{Kind: order.TransferValue, LedgerID: ledger, SenderID: f.maker.Address().Hex(), Value: "100"},
		},
	}
}

func TestOpenSlotClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strangers := make([]*gateway.Gateway, 2)
	for i := range strangers {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		strangers[i] = gateway.New(f.makerG.Deployment(), nil, k)
	}

	// plain dynamic: the open signer is the executor and never signs
	plain := f.openOrder(order.DynamicActionsOrder)
	digest := f.submitOrder(t, plain)
	claim, err := strangers[0].Claim(ctx, plain)
	require.NoError(t, err)
	resp := f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: claim})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	signed := f.openOrder(order.SignedDynamicActionsOrder)
	digest = f.submitOrder(t, signed)
	first, err := strangers[0].Claim(ctx, signed)
	require.NoError(t, err)
	second, err := strangers[1].Claim(ctx, signed)
	require.NoError(t, err)
	makerClaim, err := f.makerG.Claim(ctx, signed)
	require.NoError(t, err)

	resp = f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: first})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info ClaimInfo
	decode(t, resp, &info)
	require.Equal(t, 1, info.Slot)

	resp = f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: second})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// resubmitting keeps the slot
	resp = f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: first})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: makerClaim})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.get(t, "/api/v1/orders/"+digest+"/claims")
	var claims []ClaimInfo
	decode(t, resp, &claims)
	require.Len(t, claims, 2)
	require.Equal(t, []string{makerClaim, first}, []string{claims[0].Claim, claims[1].Claim})

	// the collected claims line up with the signature array
	d := f.makerG.Deployment()
	p, err := order.ProtocolFor(signed.Kind, d)
	require.NoError(t, err)
	n, err := order.Normalize(signed, d)
	require.NoError(t, err)
	sigs, err := order.EncodeSignatures([]string{claims[0].Claim, claims[1].Claim})
	require.NoError(t, err)
	r, err := p.PerformRecipe(n, sigs)
	require.NoError(t, err)
	require.Equal(t, order.MethodPerformAnyTakerSigned, r.Method)
}

func TestClaimBroadcastOnOrderChannel(t *testing.T) {
	f := newFixture(t)
	o := f.swap()
	digest := f.submitOrder(t, o)
	channel := "order:" + digest

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: []string{channel}}))
	require.Eventually(t, func() bool { return f.srv.Hub().Subscribers(channel) == 1 }, 2*time.Second, 10*time.Millisecond)

	claim, err := f.makerG.Claim(context.Background(), o)
	require.NoError(t, err)
	resp := f.post(t, "/api/v1/orders/"+digest+"/claims", SubmitClaimRequest{Claim: claim})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var update ClaimUpdate
	require.NoError(t, conn.ReadJSON(&update))
	require.Equal(t, "claim", update.Type)
	require.Equal(t, digest, update.Digest)
	require.Equal(t, f.maker.Address().Hex(), update.Claim.Signer)
	require.Equal(t, 1, update.Claims)
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	channel := "order:" + common.HexToHash("0x01").Hex()
	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: []string{channel}}))
	require.Eventually(t, func() bool { return f.srv.Hub().Subscribers(channel) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "unsubscribe", Channels: []string{channel}}))
	require.Eventually(t, func() bool { return f.srv.Hub().Subscribers(channel) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
