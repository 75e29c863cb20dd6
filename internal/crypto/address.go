package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// CREATE2 preimage layout: 0xff (1) + deployer (20) + salt (32) + initcodeHash (32) = 85
const (
	Create2PrefixLen   = 1 + 20
	Create2SaltLen     = 32
	Create2HashLen     = 32
	Create2PreimageLen = Create2PrefixLen + Create2SaltLen + Create2HashLen
)

// Keccak256 calculates the keccak256 hash of the input bytes.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// Create2Address derives the CREATE2 contract address for the given
// deployer, salt and init-code hash: the last 20 bytes of
// keccak256(0xff ‖ deployer ‖ salt ‖ initCodeHash). This is the slow
// reference path used to double-check candidates before they are reported.
func Create2Address(deployer [20]byte, salt [32]byte, initCodeHash [32]byte) [20]byte {
	var preimage [Create2PreimageLen]byte
	preimage[0] = 0xff
	copy(preimage[1:21], deployer[:])
	copy(preimage[21:53], salt[:])
	copy(preimage[53:], initCodeHash[:])

	hash := Keccak256(preimage[:])
	var addr [20]byte
	copy(addr[:], hash[12:32])
	return addr
}

// ParseAddress decodes a 20-byte address from a hex string (0x optional).
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	b, err := parseHex(s, 20)
	if err != nil {
		return addr, fmt.Errorf("invalid address: %w", err)
	}
	copy(addr[:], b)
	return addr, nil
}

// ParseHash decodes a 32-byte hash from a hex string (0x optional).
func ParseHash(s string) ([32]byte, error) {
	var hash [32]byte
	b, err := parseHex(s, 32)
	if err != nil {
		return hash, fmt.Errorf("invalid hash: %w", err)
	}
	copy(hash[:], b)
	return hash, nil
}

// HexToBytes decodes a hex string (with or without 0x) to bytes.
func HexToBytes(hexStr string) ([]byte, error) {
	h := strings.TrimSpace(hexStr)
	if len(h) >= 2 && (h[0:2] == "0x" || h[0:2] == "0X") {
		h = h[2:]
	}
	if len(h)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length")
	}
	return hex.DecodeString(h)
}

func parseHex(s string, wantLen int) ([]byte, error) {
	b, err := HexToBytes(s)
	if err != nil {
		return nil, err
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("got %d bytes, want %d", len(b), wantLen)
	}
	return b, nil
}

// ChecksumAddress converts a 20-byte address to an EIP-55 checksummed
// string. Only call when you need the string (e.g. for result output).
func ChecksumAddress(addr20 []byte) string {
	if len(addr20) != 20 {
		panic(errors.New("address must be 20 bytes"))
	}
	hexLower := hex.EncodeToString(addr20) // lowercase
	hash := Keccak256([]byte(hexLower))
	// apply checksum casing
	var out strings.Builder
	out.Grow(2 + 40)
	out.WriteString("0x")
	for i, c := range hexLower {
		if c >= '0' && c <= '9' {
			out.WriteByte(byte(c))
			continue
		}
		// each nibble of the hash decides case of corresponding hex char
		n := (hash[i/2] >> uint(4*(1-i%2))) & 0xF
		if n >= 8 {
			out.WriteByte(byte(c) - 'a' + 'A')
		} else {
			out.WriteByte(byte(c))
		}
	}
	return out.String()
}
