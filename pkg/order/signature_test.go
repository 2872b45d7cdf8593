package order

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	okcrypto "github.com/uhyunpark/orderkit/pkg/crypto"
)

func rawSig(v string) string {
	return "0x" + strings.Repeat("12", 32) + strings.Repeat("34", 32) + v
}

func TestEncodeSignatureNormalizesV(t *testing.T) {
	sig, err := EncodeSignature("1:" + rawSig("00"))
	require.NoError(t, err)
	require.Equal(t, okcrypto.Trezor, sig.Method)
	require.Equal(t, uint8(27), sig.V)
	require.Equal(t, byte(0x12), sig.R[0])
	require.Equal(t, byte(0x34), sig.S[31])

	sig, err = EncodeSignature("1:" + rawSig("01"))
	require.NoError(t, err)
	require.Equal(t, uint8(28), sig.V)

	sig, err = EncodeSignature("1:" + rawSig("1c"))
	require.NoError(t, err)
	require.Equal(t, uint8(28), sig.V)
}

func TestEncodeSignatureRejectsBadV(t *testing.T) {
	for _, v := range []string{"02", "0a", "1a"} {
		_, err := EncodeSignature("0:" + rawSig(v))
		require.ErrorIs(t, err, IssueWrongInput, "v %s", v)
	}

	raw := make([]byte, 65)
	raw[64] = 2
	_, err := NewClaim(okcrypto.EthSign, raw)
	require.ErrorIs(t, err, IssueWrongInput)
}

func TestSignatureRoundTrip(t *testing.T) {
	for _, claim := range []string{"0:" + rawSig("1b"), "2:" + rawSig("1c"), "3:" + rawSig("1b")} {
		sig, err := EncodeSignature(claim)
		require.NoError(t, err)
		require.Equal(t, claim, DecodeSignature(sig))
	}

	// unnormalized v comes back lifted
	sig, err := EncodeSignature("0:" + rawSig("01"))
	require.NoError(t, err)
	require.Equal(t, "0:"+rawSig("1c"), DecodeSignature(sig))
}

func TestEncodeSignatureGrammar(t *testing.T) {
	bad := []string{
		"",
		rawSig("1b"),
		"1:" + rawSig("1b") + ":x",
		"1::" + rawSig("1b"),
		":" + rawSig("1b"),
		"x:" + rawSig("1b"),
		"-1:" + rawSig("1b"),
		"1:" + rawSig("1b")[2:],
		"1:" + rawSig("1"),
		"1:" + rawSig("1b") + "00",
		"1:0x" + strings.Repeat("zz", 65),
	}
	for _, claim := range bad {
		_, err := EncodeSignature(claim)
		require.ErrorIs(t, err, IssueWrongInput, "claim %q", claim)
	}

	for _, claim := range []string{"4:" + rawSig("1b"), "256:" + rawSig("1b")} {
		_, err := EncodeSignature(claim)
		require.ErrorIs(t, err, IssueSignatureUnknown, "claim %q", claim)
	}
}

func TestEncodeSignatures(t *testing.T) {
	sigs, err := EncodeSignatures([]string{"0:" + rawSig("1b"), "2:" + rawSig("00")})
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	require.Equal(t, okcrypto.EIP712, sigs[1].Method)

	_, err = EncodeSignatures([]string{"0:" + rawSig("1b"), "bogus"})
	require.ErrorIs(t, err, IssueWrongInput)
}

func TestRecoverClaimSigner(t *testing.T) {
	signer, err := okcrypto.GenerateKey()
	require.NoError(t, err)
	digest := crypto.Keccak256Hash([]byte("order"))

	for _, method := range []okcrypto.SignMethod{okcrypto.EthSign, okcrypto.Trezor, okcrypto.EIP712, okcrypto.PersonalSign} {
		raw, err := signer.SignDigest(context.Background(), method, digest)
		require.NoError(t, err)
		claim, err := NewClaim(method, raw)
		require.NoError(t, err)

		got, err := RecoverClaimSigner(digest, claim)
		require.NoError(t, err)
		require.Equal(t, signer.Address(), got, method.String())
	}
}
