package order

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Gateway entry points.
const (
	MethodPerform               = "perform"
	MethodPerformAnyTaker       = "performAnyTaker"
	MethodPerformSigned         = "performSigned"
	MethodPerformAnyTakerSigned = "performAnyTakerSigned"
	MethodCancel                = "cancel"
	MethodGetOrderDataClaim     = "getOrderDataClaim"
	MethodIsValidSignature      = "isValidSignature"
)

const signatureTuple = `{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"},{"name":"v","type":"uint8"},{"name":"kind","type":"uint8"}`

const actionsOrderTuple = `{"name":"_data","type":"tuple","components":[
	{"name":"signers","type":"address[]"},
	{"name":"actions","type":"tuple[]","components":[
		{"name":"proxyId","type":"uint32"},
		{"name":"contractAddress","type":"address"},
		{"name":"params","type":"bytes"}]},
	{"name":"seed","type":"uint256"},
	{"name":"expiration","type":"uint256"}]}`

const legacyOrderTuple = `{"name":"_data","type":"tuple","components":[
	{"name":"maker","type":"address"},
	{"name":"taker","type":"address"},
	{"name":"actions","type":"tuple[]","components":[
		{"name":"proxyId","type":"uint32"},
		{"name":"token","type":"address"},
		{"name":"param1","type":"bytes32"},
		{"name":"to","type":"address"},
		{"name":"value","type":"uint256"}]},
	{"name":"seed","type":"uint256"},
	{"name":"expiration","type":"uint256"}]}`

func performABI(name, orderTuple, signatureArg string) string {
	return `{"type":"function","name":"` + name + `","stateMutability":"nonpayable","inputs":[` + orderTuple + `,` + signatureArg + `],"outputs":[]},`
}

func gatewayABI(orderTuple, signatureArg string, performs ...string) string {
	var entries strings.Builder
	for _, name := range performs {
		entries.WriteString(performABI(name, orderTuple, signatureArg))
	}
	return `[` + entries.String() + `
	{"type":"function","name":"cancel","stateMutability":"nonpayable","inputs":[` + orderTuple + `],"outputs":[]},
	{"type":"function","name":"getOrderDataClaim","stateMutability":"view","inputs":[` + orderTuple + `],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"isValidSignature","stateMutability":"pure","inputs":[
		{"name":"_signer","type":"address"},
		{"name":"_claim","type":"bytes32"},
		{"name":"_signature","type":"tuple","components":[` + signatureTuple + `]}],
	 "outputs":[{"name":"","type":"bool"}]}
]`
}

var (
	// ActionsGatewayABI is the N-party verifier interface. perform takes one
	// signature per signing party.
	ActionsGatewayABI = mustParseABI(gatewayABI(actionsOrderTuple,
		`{"name":"_signature","type":"tuple[]","components":[`+signatureTuple+`]}`,
		MethodPerform, MethodPerformAnyTaker, MethodPerformSigned, MethodPerformAnyTakerSigned))
	// OrderGatewayABI is the legacy verifier interface. perform takes the
	// maker's signature only.
	OrderGatewayABI = mustParseABI(gatewayABI(legacyOrderTuple,
		`{"name":"_signature","type":"tuple","components":[`+signatureTuple+`]}`,
		MethodPerform, MethodPerformAnyTaker))
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Errorf("parse gateway abi: %w", err))
	}
	return parsed
}

// ActionData is one element of the N-party actions array.
type ActionData struct {
	ProxyID         uint32         `abi:"proxyId"`
	ContractAddress common.Address `abi:"contractAddress"`
	Params          []byte         `abi:"params"`
}

// OrderData is the N-party order header tuple.
type OrderData struct {
	Signers    []common.Address `abi:"signers"`
	Actions    []ActionData     `abi:"actions"`
	Seed       *big.Int         `abi:"seed"`
	Expiration *big.Int         `abi:"expiration"`
}

// LegacyActionData is one element of the legacy actions array.
type LegacyActionData struct {
	ProxyID uint32         `abi:"proxyId"`
	Token   common.Address `abi:"token"`
	Param1  [32]byte       `abi:"param1"`
	To      common.Address `abi:"to"`
	Value   *big.Int       `abi:"value"`
}

// LegacyOrderData is the legacy order header tuple.
type LegacyOrderData struct {
	Maker      common.Address     `abi:"maker"`
	Taker      common.Address     `abi:"taker"`
	Actions    []LegacyActionData `abi:"actions"`
	Seed       *big.Int           `abi:"seed"`
	Expiration *big.Int           `abi:"expiration"`
}

// SignatureTuple is the gateway's signature argument.
type SignatureTuple struct {
	R    [32]byte `abi:"r"`
	S    [32]byte `abi:"s"`
	V    uint8    `abi:"v"`
	Kind uint8    `abi:"kind"`
}

// Recipe is a fully shaped gateway call: contract, method and ABI arguments.
type Recipe struct {
	Gateway common.Address
	ABI     *abi.ABI
	Method  string
	Args    []interface{}
}

// Pack returns the call data for r.
func (r Recipe) Pack() ([]byte, error) {
	if r.ABI == nil {
		return nil, fmt.Errorf("recipe %s has no abi", r.Method)
	}
	return r.ABI.Pack(r.Method, r.Args...)
}

// performMethod picks the entry point: any-taker when a participant is left
// open, signed when the executor is not a party.
func performMethod(dynamic, signed bool) string {
	switch {
	case dynamic && signed:
		return MethodPerformAnyTakerSigned
	case signed:
		return MethodPerformSigned
	case dynamic:
		return MethodPerformAnyTaker
	}
	return MethodPerform
}

func orderNumbers(o Order) (seed, expiration *big.Int, err error) {
	if _, seed, err = integerWord("seed", o.Seed); err != nil {
		return nil, nil, err
	}
	if _, expiration, err = integerWord("expiration", o.Expiration); err != nil {
		return nil, nil, err
	}
	return seed, expiration, nil
}
