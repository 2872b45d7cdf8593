package order

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
)

// EncodedAction is one action in gateway wire form.
type EncodedAction struct {
	Proxy   Proxy
	ProxyID uint32
	Ledger  common.Address
	Params  []byte
}

// Legacy params are param1(32) ++ to(20) ++ value(32).
const (
	legacyParam1End = 32
	legacyToEnd     = legacyParam1End + common.AddressLength
	legacyParamsLen = legacyToEnd + 32
)

// toInteger parses a decimal (optionally fractional) or 0x-hex number and
// truncates it toward zero.
func toInteger(field string, n json.Number) (*big.Int, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return nil, fmt.Errorf("%w: %s is not set", IssueWrongInput, field)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, ok := math.ParseBig256(s)
		if !ok {
			return nil, fmt.Errorf("%w: %s %q is not a number", IssueWrongInput, field, s)
		}
		return b, nil
	}
	f, ok := new(big.Float).SetPrec(512).SetString(s)
	if !ok || f.IsInf() {
		return nil, fmt.Errorf("%w: %s %q is not a number", IssueWrongInput, field, s)
	}
	if f.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s %q is negative", IssueWrongInput, field, s)
	}
	i, _ := f.Int(nil)
	return i, nil
}

// Seconds renders t as whole Unix seconds for Order.Expiration.
func Seconds(t time.Time) json.Number {
	return json.Number(fmt.Sprintf("%d", t.Unix()))
}

func bigWord(field string, b *big.Int) ([32]byte, error) {
	u, overflow := uint256.FromBig(b)
	if overflow || b.Sign() < 0 {
		return [32]byte{}, fmt.Errorf("%w: %s does not fit in 256 bits", IssueWrongInput, field)
	}
	return u.Bytes32(), nil
}

// integerWord is toInteger followed by big-endian 32-byte padding.
func integerWord(field string, n json.Number) ([32]byte, *big.Int, error) {
	b, err := toInteger(field, n)
	if err != nil {
		return [32]byte{}, nil, err
	}
	w, err := bigWord(field, b)
	return w, b, err
}

// uintWord parses a decimal or 0x-hex uint256 such as an asset id or value.
func uintWord(field, s string) ([32]byte, error) {
	if s == "" {
		return [32]byte{}, fmt.Errorf("%w: %s is not set", IssueWrongInput, field)
	}
	b, ok := math.ParseBig256(s)
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: %s %q is not a uint256", IssueWrongInput, field, s)
	}
	return bigWord(field, b)
}

// imprintWord left-aligns an imprint hex string in 32 bytes, zero-filling
// on the right.
func imprintWord(field, s string) ([32]byte, error) {
	var w [32]byte
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) > 64 {
		return w, fmt.Errorf("%w: %s is longer than 32 bytes", IssueWrongInput, field)
	}
	raw += strings.Repeat("0", 64-len(raw))
	if _, err := hex.Decode(w[:], []byte(raw)); err != nil {
		return w, fmt.Errorf("%w: %s: %v", IssueWrongInput, field, err)
	}
	return w, nil
}

// AbilityBitfield ORs abilities into the 32-byte on-chain bitfield.
func AbilityBitfield(abilities []Ability) [32]byte {
	var bits uint64
	for _, a := range abilities {
		bits |= uint64(a)
	}
	return uint256.NewInt(bits).Bytes32()
}

func addressBytes(addr string) []byte {
	return common.HexToAddress(addr).Bytes()
}

// SignerIndex is the first position of sender in signers.
func SignerIndex(sender string, signers []string) (uint8, error) {
	want := common.HexToAddress(sender)
	for i, s := range signers {
		if common.HexToAddress(s) != want {
			continue
		}
		if i > 0xff {
			return 0, fmt.Errorf("%w: signer index %d does not fit in one byte", IssueWrongInput, i)
		}
		return uint8(i), nil
	}
	return 0, fmt.Errorf("%w: %s", IssueSenderNotSigner, sender)
}

func resolve(a Action, d *Deployment) (Proxy, uint32, error) {
	proxy, err := d.ResolveProxy(a)
	if err != nil {
		return 0, 0, err
	}
	id, err := d.ProxyID(proxy)
	if err != nil {
		return 0, 0, err
	}
	return proxy, id, nil
}

// EncodeAction produces the N-party wire form of a normalized action.
func EncodeAction(a Action, signers []string, d *Deployment) (EncodedAction, error) {
	proxy, id, err := resolve(a, d)
	if err != nil {
		return EncodedAction{}, err
	}
	idx, err := SignerIndex(a.SenderID, signers)
	if err != nil {
		return EncodedAction{}, err
	}

	var params []byte
	switch a.Kind {
	case CreateAsset:
		imprint, err := imprintWord("assetImprint", a.AssetImprint)
		if err != nil {
			return EncodedAction{}, err
		}
		assetID, err := uintWord("assetId", a.AssetID)
		if err != nil {
			return EncodedAction{}, err
		}
		params = concat(imprint[:], assetID[:], addressBytes(a.ReceiverID), []byte{idx})
	case TransferAsset:
		assetID, err := uintWord("assetId", a.AssetID)
		if err != nil {
			return EncodedAction{}, err
		}
		params = concat(assetID[:], addressBytes(a.ReceiverID), []byte{idx})
	case TransferValue:
		value, err := uintWord("value", a.Value)
		if err != nil {
			return EncodedAction{}, err
		}
		params = concat(value[:], addressBytes(a.ReceiverID), []byte{idx})
	case UpdateAssetImprint:
		imprint, err := imprintWord("assetImprint", a.AssetImprint)
		if err != nil {
			return EncodedAction{}, err
		}
		assetID, err := uintWord("assetId", a.AssetID)
		if err != nil {
			return EncodedAction{}, err
		}
		params = concat(imprint[:], assetID[:], []byte{idx})
	case DestroyAsset:
		assetID, err := uintWord("assetId", a.AssetID)
		if err != nil {
			return EncodedAction{}, err
		}
		params = concat(assetID[:], []byte{idx})
	case SetAbilities:
		bits := AbilityBitfield(a.Abilities)
		params = concat(bits[:], addressBytes(a.ReceiverID), []byte{idx})
	default:
		return EncodedAction{}, fmt.Errorf("%w: %q", IssueActionKindNotSupported, a.Kind)
	}

	return EncodedAction{Proxy: proxy, ProxyID: id, Ledger: common.HexToAddress(a.LedgerID), Params: params}, nil
}

// EncodeLegacyAction produces the 2-party wire form of a normalized action.
// The legacy gateway names the sender directly instead of by index and only
// knows create and transfer actions.
func EncodeLegacyAction(a Action, d *Deployment) (EncodedAction, error) {
	switch a.Kind {
	case CreateAsset, TransferAsset, TransferValue:
	default:
		return EncodedAction{}, fmt.Errorf("%w: %q on a legacy order", IssueActionKindNotSupported, a.Kind)
	}
	proxy, id, err := resolve(a, d)
	if err != nil {
		return EncodedAction{}, err
	}

	var param1, value [32]byte
	switch a.Kind {
	case CreateAsset:
		if param1, err = imprintWord("assetImprint", a.AssetImprint); err != nil {
			return EncodedAction{}, err
		}
		value, err = uintWord("assetId", a.AssetID)
	case TransferAsset:
		param1 = common.BytesToHash(addressBytes(a.SenderID))
		value, err = uintWord("assetId", a.AssetID)
	case TransferValue:
		param1 = common.BytesToHash(addressBytes(a.SenderID))
		value, err = uintWord("value", a.Value)
	}
	if err != nil {
		return EncodedAction{}, err
	}

	params := concat(param1[:], addressBytes(a.ReceiverID), value[:])
	return EncodedAction{Proxy: proxy, ProxyID: id, Ledger: common.HexToAddress(a.LedgerID), Params: params}, nil
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
