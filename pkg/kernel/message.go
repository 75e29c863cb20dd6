package kernel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// AddressNibbles is the hex length of a 20-byte contract address.
const AddressNibbles = 40

// Errors
var (
	ErrCriteriaTooLong = errors.New("prefix and suffix together exceed the 40-nibble address length")
	ErrMinOnesRange    = errors.New("minimum ones thresholds must be within 0-40")
	ErrShortBuffer     = errors.New("message buffer too short")
)

// Message is the read-only per-dispatch input shared by every lane: the
// CREATE2 parameters plus the acceptance criteria. It is never mutated
// during a dispatch.
//
// The binary layout (MarshalBinary/UnmarshalBinary) is:
//
//	0-19   deployer/factory address
//	20-51  init-code hash
//	52     prefix length (0-40)
//	53..   prefix hex characters (lower-case ASCII)
//	+0     suffix length (0-40)
//	+1..   suffix hex characters
//	+0     minimum leading '1' nibbles
//	+1     minimum trailing '1' nibbles
//	+2,+3  current best score, int16 little-endian
//
// The scalar tail sits after the criteria strings at its own offsets. The
// best score is signed so a host searching only for a prefix or suffix can
// seed it with -1 and still have a zero-score match pass the strict
// improvement test.
type Message struct {
	Deployer     [20]byte
	InitCodeHash [32]byte
	Prefix       []byte // lower-case hex characters, each '0'-'9' or 'a'-'f'
	Suffix       []byte
	MinLeading   uint8
	MinTrailing  uint8
	BestScore    int16
}

// NewMessage builds a validated message. Prefix and suffix are hex
// criteria strings (case-insensitive, optional 0x prefix).
func NewMessage(deployer [20]byte, initCodeHash [32]byte, prefix, suffix string) (*Message, error) {
	p, err := criteriaChars(prefix)
	if err != nil {
		return nil, fmt.Errorf("prefix: %w", err)
	}
	s, err := criteriaChars(suffix)
	if err != nil {
		return nil, fmt.Errorf("suffix: %w", err)
	}
	m := &Message{
		Deployer:     deployer,
		InitCodeHash: initCodeHash,
		Prefix:       p,
		Suffix:       s,
		BestScore:    -1,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate enforces the preconditions the kernel itself never checks:
// criteria within the 40-nibble address, thresholds in range, and
// well-formed hex characters.
func (m *Message) Validate() error {
	if len(m.Prefix)+len(m.Suffix) > AddressNibbles {
		return ErrCriteriaTooLong
	}
	if m.MinLeading > AddressNibbles || m.MinTrailing > AddressNibbles {
		return ErrMinOnesRange
	}
	for _, c := range m.Prefix {
		if !isHexChar(c) {
			return fmt.Errorf("prefix: invalid hex character %q", c)
		}
	}
	for _, c := range m.Suffix {
		if !isHexChar(c) {
			return fmt.Errorf("suffix: invalid hex character %q", c)
		}
	}
	return nil
}

// MarshalBinary encodes the documented buffer layout.
func (m *Message) MarshalBinary() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 52+1+len(m.Prefix)+1+len(m.Suffix)+4)
	buf = append(buf, m.Deployer[:]...)
	buf = append(buf, m.InitCodeHash[:]...)
	buf = append(buf, byte(len(m.Prefix)))
	buf = append(buf, m.Prefix...)
	buf = append(buf, byte(len(m.Suffix)))
	buf = append(buf, m.Suffix...)
	buf = append(buf, m.MinLeading, m.MinTrailing)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(m.BestScore))
	return buf, nil
}

// UnmarshalBinary decodes the documented buffer layout.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < 52+1 {
		return ErrShortBuffer
	}
	copy(m.Deployer[:], data[0:20])
	copy(m.InitCodeHash[:], data[20:52])
	off := 52
	pl := int(data[off])
	off++
	if len(data) < off+pl+1 {
		return ErrShortBuffer
	}
	m.Prefix = append([]byte(nil), data[off:off+pl]...)
	off += pl
	sl := int(data[off])
	off++
	if len(data) < off+sl+4 {
		return ErrShortBuffer
	}
	m.Suffix = append([]byte(nil), data[off:off+sl]...)
	off += sl
	m.MinLeading = data[off]
	m.MinTrailing = data[off+1]
	m.BestScore = int16(binary.LittleEndian.Uint16(data[off+2:]))
	return m.Validate()
}

// criteriaChars normalizes a user criteria string to lower-case hex bytes.
func criteriaChars(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	s = strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		if !isHexChar(s[i]) {
			return nil, fmt.Errorf("invalid hex character %q", s[i])
		}
	}
	if s == "" {
		return nil, nil
	}
	return []byte(s), nil
}

func isHexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
