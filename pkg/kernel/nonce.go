package kernel

import "encoding/binary"

// Nonce identifies one candidate salt as a structured (dispatch, lane) key.
// Lane is the lane's index within a dispatch and Hi is the dispatch counter
// chosen by the host; as long as the host never reuses a Hi value, every
// pair — and therefore every salt — is evaluated at most once across the
// whole search.
type Nonce struct {
	Hi   uint32
	Lane uint32
}

// Uint64 packs the nonce with the dispatch counter in the high 32 bits.
func (n Nonce) Uint64() uint64 {
	return uint64(n.Hi)<<32 | uint64(n.Lane)
}

// SaltBytes returns the 32-byte CREATE2 salt for this nonce: 24 zero bytes
// followed by the 8 nonce bytes, lowest byte first.
func (n Nonce) SaltBytes() [32]byte {
	var salt [32]byte
	binary.LittleEndian.PutUint64(salt[24:], n.Uint64())
	return salt
}
