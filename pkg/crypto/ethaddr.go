package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ZeroAddress is the all-zero address. Orders use it as the "resolve at
// execution time" placeholder.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ChecksumAddress parses a 20-byte hex address (with or without 0x, any case)
// and returns its EIP-55 checksummed form.
func ChecksumAddress(addr string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if len(raw) != 40 {
		return "", fmt.Errorf("invalid address length: %q", addr)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("invalid address hex %q: %w", addr, err)
	}
	return EIP55(b), nil
}

// IsZeroAddress reports whether addr is the zero address in any casing.
func IsZeroAddress(addr string) bool {
	return strings.EqualFold(addr, ZeroAddress)
}

// EIP55 computes the checksummed hex address string from 20-byte raw address.
func EIP55(addr20 []byte) string {
	hexaddr := hex.EncodeToString(addr20) // lower
	// keccak of lowercase hex
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)

	out := make([]byte, 2+len(hexaddr))
	copy(out, "0x")
	for i, c := range []byte(hexaddr) {
		if c >= '0' && c <= '9' {
			out[2+i] = c
			continue
		}
		// each hex char maps to one nibble of the hash; even index is the high nibble
		nibble := hash[i>>1] & 0x0f
		if i%2 == 0 {
			nibble = hash[i>>1] >> 4
		}
		if nibble >= 8 {
			c -= 'a' - 'A'
		}
		out[2+i] = c
	}
	return string(out)
}
