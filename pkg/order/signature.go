package order

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/orderkit/pkg/crypto"
)

// SignatureData is a claim split into the form the gateway verifies.
type SignatureData struct {
	Method crypto.SignMethod
	R      [32]byte
	S      [32]byte
	V      uint8
}

// Tuple converts s to the gateway ABI argument.
func (s SignatureData) Tuple() SignatureTuple {
	return SignatureTuple{R: s.R, S: s.S, V: s.V, Kind: uint8(s.Method)}
}

// Bytes returns r ++ s ++ v.
func (s SignatureData) Bytes() []byte {
	return crypto.JoinSignature(s.R, s.S, s.V)
}

const signatureHexLen = 130

// EncodeSignature parses a claim string "<method>:0x<130 hex chars>".
// A recovery id of 0 or 1 is lifted to 27 or 28.
func EncodeSignature(claim string) (SignatureData, error) {
	tag, sigHex, ok := strings.Cut(claim, ":")
	if !ok || strings.Contains(sigHex, ":") {
		return SignatureData{}, fmt.Errorf("%w: claim must be <method>:<signature>", IssueWrongInput)
	}
	if tag == "" || strings.TrimLeft(tag, "0123456789") != "" {
		return SignatureData{}, fmt.Errorf("%w: claim method %q is not a number", IssueWrongInput, tag)
	}
	m, err := strconv.ParseUint(tag, 10, 8)
	if err != nil || !crypto.SignMethod(m).Valid() {
		return SignatureData{}, fmt.Errorf("%w: method %s", IssueSignatureUnknown, tag)
	}
	if !strings.HasPrefix(sigHex, "0x") || len(sigHex) != 2+signatureHexLen {
		return SignatureData{}, fmt.Errorf("%w: signature must be 0x followed by %d hex characters", IssueWrongInput, signatureHexLen)
	}
	raw, err := hex.DecodeString(sigHex[2:])
	if err != nil {
		return SignatureData{}, fmt.Errorf("%w: signature: %v", IssueWrongInput, err)
	}

	r, s, v, err := crypto.SplitSignature(raw)
	if err != nil {
		return SignatureData{}, fmt.Errorf("%w: %v", IssueWrongInput, err)
	}
	if v, err = recoveryID(v); err != nil {
		return SignatureData{}, err
	}
	return SignatureData{Method: crypto.SignMethod(m), R: r, S: s, V: v}, nil
}

// recoveryID lifts a raw 0/1 recovery id to 27/28. Other values below 27
// are not a recovery id in any scheme.
func recoveryID(v uint8) (uint8, error) {
	switch {
	case v == 0 || v == 1:
		return v + 27, nil
	case v < 27:
		return 0, fmt.Errorf("%w: signature v %d", IssueWrongInput, v)
	}
	return v, nil
}

// EncodeSignatures parses claims in order.
func EncodeSignatures(claims []string) ([]SignatureData, error) {
	out := make([]SignatureData, len(claims))
	for i, c := range claims {
		sig, err := EncodeSignature(c)
		if err != nil {
			return nil, fmt.Errorf("claims[%d]: %w", i, err)
		}
		out[i] = sig
	}
	return out, nil
}

// DecodeSignature renders s back into its claim string.
func DecodeSignature(s SignatureData) string {
	return fmt.Sprintf("%d:0x%s", uint8(s.Method), hex.EncodeToString(s.Bytes()))
}

// NewClaim builds a claim string from a raw 65-byte signature.
func NewClaim(method crypto.SignMethod, signature []byte) (string, error) {
	r, s, v, err := crypto.SplitSignature(signature)
	if err != nil {
		return "", err
	}
	if v, err = recoveryID(v); err != nil {
		return "", err
	}
	return DecodeSignature(SignatureData{Method: method, R: r, S: s, V: v}), nil
}

// RecoverClaimSigner returns the address that produced claim over digest,
// applying the claim's message prefix.
func RecoverClaimSigner(digest common.Hash, claim string) (common.Address, error) {
	sig, err := EncodeSignature(claim)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.RecoverDigestSigner(sig.Method, digest, sig.Bytes())
}
