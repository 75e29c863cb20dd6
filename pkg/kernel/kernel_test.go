package kernel

import (
	"encoding/binary"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/screa/create2-salt-miner/pkg/keccak"
)

// stateBytes flattens a 25-word state into its 200-byte view.
func stateBytes(st *[25]uint64) [200]byte {
	var out [200]byte
	for i, w := range st {
		binary.LittleEndian.PutUint64(out[i*8:], w)
	}
	return out
}

// laneAddress runs the hot-path derivation for one nonce.
func laneAddress(msg *Message, nonce Nonce) [20]byte {
	var st [25]uint64
	buildSponge(&st, msg, nonce)
	return digestAddress(keccak.PermuteDigest(&st))
}

// TestSpongeBlockLayout verifies every fixed offset of the padded preimage
// block: discriminator byte, deployer, zero-padded salt with the nonce
// lowest byte first, init-code hash, padding start and terminator.
func TestSpongeBlockLayout(t *testing.T) {
	var msg Message
	for i := range msg.Deployer {
		msg.Deployer[i] = byte(0xa0 + i)
	}
	for i := range msg.InitCodeHash {
		msg.InitCodeHash[i] = byte(0x40 + i)
	}
	nonce := Nonce{Hi: 0x01020304, Lane: 0x05060708}

	var st [25]uint64
	buildSponge(&st, &msg, nonce)
	b := stateBytes(&st)

	require.Equal(t, byte(0xff), b[0])
	require.Equal(t, msg.Deployer[:], b[1:21])
	require.Equal(t, make([]byte, 24), b[21:45], "salt starts with 24 zero bytes")
	require.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, b[45:53],
		"nonce bytes, lowest first")
	require.Equal(t, msg.InitCodeHash[:], b[53:85])
	require.Equal(t, byte(0x01), b[85])
	require.Equal(t, make([]byte, 49), b[86:135])
	require.Equal(t, byte(0x80), b[135])
	require.Equal(t, make([]byte, 64), b[136:], "capacity words stay zero")
}

// TestAddressMatchesReference checks the lane derivation against
// go-ethereum's CREATE2 for the well-known zero case (empty init code,
// zero deployer, zero salt) and for randomized inputs.
func TestAddressMatchesReference(t *testing.T) {
	emptyHash, err := hex.DecodeString("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	require.NoError(t, err)

	var msg Message
	copy(msg.InitCodeHash[:], emptyHash)
	nonce := Nonce{}

	got := laneAddress(&msg, nonce)
	want := gethcrypto.CreateAddress2(common.Address(msg.Deployer), nonce.SaltBytes(), msg.InitCodeHash[:])
	require.Equal(t, want, common.Address(got))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		var m Message
		rng.Read(m.Deployer[:])
		rng.Read(m.InitCodeHash[:])
		n := Nonce{Hi: rng.Uint32(), Lane: rng.Uint32()}

		got := laneAddress(&m, n)
		want := gethcrypto.CreateAddress2(common.Address(m.Deployer), n.SaltBytes(), m.InitCodeHash[:])
		require.Equal(t, want, common.Address(got), "input %d", i)
	}
}

// TestLaneDeterminism re-evaluates the same (message, nonce) pairs and
// requires identical addresses every time.
func TestLaneDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	var msg Message
	rng.Read(msg.Deployer[:])
	rng.Read(msg.InitCodeHash[:])

	for i := 0; i < 50; i++ {
		nonce := Nonce{Hi: rng.Uint32(), Lane: rng.Uint32()}
		first := laneAddress(&msg, nonce)
		for rep := 0; rep < 3; rep++ {
			require.Equal(t, first, laneAddress(&msg, nonce))
		}
	}
}

// addrFromHex builds a 20-byte address from a 40-char hex string.
func addrFromHex(t *testing.T, s string) [20]byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	require.Len(t, b, 20)
	var addr [20]byte
	copy(addr[:], b)
	return addr
}

func TestEvaluateScoring(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		leading  uint8
		trailing uint8
	}{
		{
			name:     "two leading one trailing",
			addr:     "11ab5c6d7e8f90a1b2c3d4e5f60718293a4b5cc1",
			leading:  2,
			trailing: 1,
		},
		{
			name:     "all ones",
			addr:     "1111111111111111111111111111111111111111",
			leading:  40,
			trailing: 40,
		},
		{
			name:     "no boundary ones",
			addr:     "ab115c6d7e8f90a1b2c3d4e5f60718293a4b5cca",
			leading:  0,
			trailing: 0,
		},
		{
			name:     "ones stop at first other nibble",
			addr:     "1110000000000000000000000000000000000111",
			leading:  3,
			trailing: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := addrFromHex(t, tt.addr)
			var msg Message
			leading, trailing, ok := evaluate(&addr, &msg)
			require.True(t, ok, "no thresholds set")
			require.Equal(t, tt.leading, leading)
			require.Equal(t, tt.trailing, trailing)
		})
	}
}

func TestEvaluateCriteria(t *testing.T) {
	addr := addrFromHex(t, "1234567890abcdef1234567890abcdef12345678")

	tests := []struct {
		name   string
		prefix string
		suffix string
		minL   uint8
		minT   uint8
		ok     bool
	}{
		{name: "prefix match", prefix: "1234", ok: true},
		{name: "prefix mismatch", prefix: "1235", ok: false},
		{name: "suffix right-aligned match", suffix: "5678", ok: true},
		{name: "suffix mismatch", suffix: "5679", ok: false},
		{name: "both match", prefix: "12", suffix: "78", ok: true},
		{name: "odd length prefix", prefix: "123", ok: true},
		{name: "leading threshold met by the 1 nibble", prefix: "12", minL: 1, ok: true},
		{name: "leading threshold unmet", prefix: "12", minL: 2, ok: false},
		{name: "trailing threshold unmet", minT: 2, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage([20]byte{}, [32]byte{}, tt.prefix, tt.suffix)
			require.NoError(t, err)
			msg.MinLeading = tt.minL
			msg.MinTrailing = tt.minT
			_, _, ok := evaluate(&addr, msg)
			require.Equal(t, tt.ok, ok)
		})
	}
}

// TestRecordStrictImprovement verifies the improve-only register: equal
// scores never publish, better ones replace, and Reset reseeds the floor.
func TestRecordStrictImprovement(t *testing.T) {
	var rec Record
	rec.Reset(-1)

	var st [25]uint64
	st[0] = 0xdeadbeef

	require.True(t, rec.publish(Nonce{Lane: 1}, 2, 1, &st))
	sol, ok := rec.Solution()
	require.True(t, ok)
	require.Equal(t, Nonce{Lane: 1}, sol.Nonce)

	// Equal total score must not overwrite.
	require.False(t, rec.publish(Nonce{Lane: 2}, 1, 2, &st))
	sol, _ = rec.Solution()
	require.Equal(t, Nonce{Lane: 1}, sol.Nonce)

	// Strictly better replaces.
	require.True(t, rec.publish(Nonce{Lane: 3}, 2, 2, &st))
	sol, _ = rec.Solution()
	require.Equal(t, Nonce{Lane: 3}, sol.Nonce)
	require.Equal(t, uint8(2), sol.Leading)
	require.Equal(t, uint8(2), sol.Trailing)

	// Reset with a high floor rejects what previously passed.
	rec.Reset(10)
	require.False(t, rec.publish(Nonce{Lane: 4}, 2, 2, &st))
	_, ok = rec.Solution()
	require.False(t, ok)
}

// TestDispatchFindsPrefix derives the address of one specific nonce, then
// dispatches over a lane range containing it and requires a published
// solution matching the prefix criteria.
func TestDispatchFindsPrefix(t *testing.T) {
	var deployer [20]byte
	var initHash [32]byte
	rng := rand.New(rand.NewSource(9))
	rng.Read(deployer[:])
	rng.Read(initHash[:])

	probe, err := NewMessage(deployer, initHash, "", "")
	require.NoError(t, err)
	target := laneAddress(probe, Nonce{Hi: 42, Lane: 123})
	prefix := hex.EncodeToString(target[:])[:3]

	msg, err := NewMessage(deployer, initHash, prefix, "")
	require.NoError(t, err)

	var rec Record
	rec.Reset(msg.BestScore)
	var attempts int64
	n := Dispatch(msg, 42, 256, 4, &attempts, &rec)
	require.Equal(t, uint64(256), n)
	require.Equal(t, int64(256), attempts)

	sol, ok := rec.Solution()
	require.True(t, ok, "lane 123 must satisfy the criteria")
	require.Equal(t, uint32(42), sol.Nonce.Hi)

	// Whichever lane won, its snapshot must re-validate and match.
	addr := sol.Address()
	want := gethcrypto.CreateAddress2(common.Address(deployer), sol.Nonce.SaltBytes(), initHash[:])
	require.Equal(t, want, common.Address(addr))
	require.Equal(t, prefix, hex.EncodeToString(addr[:])[:len(prefix)])

	// The snapshot carries the winning lane's full permuted state.
	var st [25]uint64
	buildSponge(&st, msg, sol.Nonce)
	keccak.Permute(&st)
	require.Equal(t, stateBytes(&st), sol.State)
}

// TestDispatchIdempotence re-runs a dispatch whose best score cannot be
// beaten and requires the record to stay untouched.
func TestDispatchIdempotence(t *testing.T) {
	var deployer [20]byte
	var initHash [32]byte
	msg, err := NewMessage(deployer, initHash, "", "")
	require.NoError(t, err)
	msg.BestScore = 2 * AddressNibbles // unbeatable: scores top out at 80

	var rec Record
	for run := 0; run < 2; run++ {
		rec.Reset(msg.BestScore)
		Dispatch(msg, 7, 2048, 4, nil, &rec)
		_, ok := rec.Solution()
		require.False(t, ok, "run %d must not publish", run)
	}
}
