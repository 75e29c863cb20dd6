// Package kernel is the per-lane compute kernel of the CREATE2 salt search:
// it assembles the fixed Keccak-256 preimage for a lane's nonce, permutes
// it, scores the resulting address against the caller's criteria, and
// publishes strict improvements to a shared solution record. A dispatch
// runs every lane to completion with no synchronization beyond that final
// conditional publish.
package kernel

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/screa/create2-salt-miner/pkg/keccak"
)

const (
	// blockLen is Keccak-256's absorption rate. The CREATE2 preimage
	// (85 bytes) always fits in a single padded block.
	blockLen = 136
	// preimageLen is 0xff + deployer(20) + salt(32) + initCodeHash(32).
	preimageLen = 85
)

// buildSponge writes the padded preimage block for nonce into a zeroed
// sponge state. Layout: 0xff, deployer, 24 zero salt bytes, the 8 nonce
// bytes lowest-first, the init-code hash, the 0x01 padding start directly
// after the preimage, and the 0x80 terminator in the last rate byte.
func buildSponge(st *[25]uint64, msg *Message, nonce Nonce) {
	var block [blockLen]byte
	block[0] = 0xff
	copy(block[1:21], msg.Deployer[:])
	binary.LittleEndian.PutUint64(block[45:53], nonce.Uint64())
	copy(block[53:preimageLen], msg.InitCodeHash[:])
	block[preimageLen] = 0x01
	block[blockLen-1] = 0x80
	for i := 0; i < blockLen/8; i++ {
		st[i] = binary.LittleEndian.Uint64(block[i*8:])
	}
	for i := blockLen / 8; i < 25; i++ {
		st[i] = 0
	}
}

// digestAddress extracts the candidate address from the first four state
// words: the trailing 20 bytes of the 32-byte digest.
func digestAddress(words [4]uint64) (addr [20]byte) {
	var digest [32]byte
	for i, w := range words {
		binary.LittleEndian.PutUint64(digest[i*8:], w)
	}
	copy(addr[:], digest[12:])
	return
}

// nibble returns the i-th hex digit of the address, high nibble first.
func nibble(addr *[20]byte, i int) byte {
	b := addr[i/2]
	if i%2 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

// hexVal maps a lower-case hex character to its nibble value. Criteria are
// validated before dispatch, so no other inputs reach this.
func hexVal(c byte) byte {
	if c <= '9' {
		return c - '0'
	}
	return c - 'a' + 10
}

// evaluate scores an address against the message criteria. A prefix or
// suffix mismatch fails the candidate outright; otherwise it returns the
// consecutive leading and trailing '1' nibble counts and whether both meet
// their minimums. The suffix is right-aligned against the 40-nibble
// address.
func evaluate(addr *[20]byte, msg *Message) (leading, trailing uint8, ok bool) {
	for i, c := range msg.Prefix {
		if nibble(addr, i) != hexVal(c) {
			return 0, 0, false
		}
	}
	base := AddressNibbles - len(msg.Suffix)
	for i, c := range msg.Suffix {
		if nibble(addr, base+i) != hexVal(c) {
			return 0, 0, false
		}
	}
	for i := 0; i < AddressNibbles; i++ {
		if nibble(addr, i) != 0x1 {
			break
		}
		leading++
	}
	for i := AddressNibbles - 1; i >= 0; i-- {
		if nibble(addr, i) != 0x1 {
			break
		}
		trailing++
	}
	ok = leading >= msg.MinLeading && trailing >= msg.MinTrailing
	return
}

// runLane evaluates a single nonce. The hot path permutes with the partial
// final round, which yields exactly the digest words; only when a candidate
// is accepted does the lane redo a full permutation so the record can carry
// the complete state snapshot.
func runLane(msg *Message, nonce Nonce, rec *Record) {
	var st [25]uint64
	buildSponge(&st, msg, nonce)
	addr := digestAddress(keccak.PermuteDigest(&st))
	leading, trailing, ok := evaluate(&addr, msg)
	if !ok || int(leading)+int(trailing) <= int(msg.BestScore) {
		return
	}
	buildSponge(&st, msg, nonce)
	keccak.Permute(&st)
	rec.publish(nonce, leading, trailing, &st)
}

// Dispatch evaluates every lane (hi, 0) .. (hi, lanes-1) against msg,
// spread across workers goroutines, and runs to completion; there is no
// cancellation inside a dispatch. attempts is bumped as lanes finish so a
// concurrent reporter can observe progress. The caller resets rec before
// dispatching and reads it after. Returns the number of lanes evaluated.
func Dispatch(msg *Message, hi uint32, lanes uint32, workers int, attempts *int64, rec *Record) uint64 {
	if lanes == 0 {
		return 0
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if uint32(workers) > lanes {
		workers = int(lanes)
	}

	var wg sync.WaitGroup
	span := lanes / uint32(workers)
	for w := 0; w < workers; w++ {
		lo := uint32(w) * span
		hiLane := lo + span
		if w == workers-1 {
			hiLane = lanes
		}
		wg.Add(1)
		go func(lo, hiLane uint32) {
			defer wg.Done()
			for lane := lo; lane < hiLane; lane++ {
				runLane(msg, Nonce{Hi: hi, Lane: lane}, rec)
			}
			if attempts != nil {
				atomic.AddInt64(attempts, int64(hiLane-lo))
			}
		}(lo, hiLane)
	}
	wg.Wait()
	return uint64(lanes)
}
