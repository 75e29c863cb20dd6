package kernel

import (
	"encoding/binary"
	"sync"
)

// StateBytes is the size of a full sponge state snapshot.
const StateBytes = 200

// Record is the one piece of shared mutable state in a dispatch: a
// best-effort, improve-only register holding the best candidate published
// so far. The reference kernel lets concurrent lanes race on this slot and
// relies on the host re-validating whatever survives; Go's memory model has
// no benign-race carve-out, so publication here is a compare-and-publish
// under a mutex — the permitted monotonic hardening. Equal scores never
// overwrite, and the host still re-validates every reported candidate.
type Record struct {
	mu       sync.Mutex
	found    bool
	nonce    Nonce
	leading  uint8
	trailing uint8
	score    int
	state    [StateBytes]byte
}

// Solution is a host-side snapshot of a published record.
type Solution struct {
	Nonce    Nonce
	Leading  uint8
	Trailing uint8
	State    [StateBytes]byte
}

// Address returns the candidate address: the trailing 20 bytes of the
// 32-byte digest at the front of the state snapshot.
func (s *Solution) Address() (addr [20]byte) {
	copy(addr[:], s.State[12:32])
	return
}

// Reset clears the record for a new dispatch. best seeds the score floor a
// candidate must strictly beat; pass -1 to accept any score.
func (r *Record) Reset(best int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.found = false
	r.nonce = Nonce{}
	r.leading = 0
	r.trailing = 0
	r.score = int(best)
	r.state = [StateBytes]byte{}
}

// Solution returns the published candidate, if any lane has published one
// since the last Reset.
func (r *Record) Solution() (Solution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.found {
		return Solution{}, false
	}
	return Solution{
		Nonce:    r.nonce,
		Leading:  r.leading,
		Trailing: r.trailing,
		State:    r.state,
	}, true
}

// publish commits a candidate if its total score strictly improves on the
// record. Returns whether the record was updated.
func (r *Record) publish(nonce Nonce, leading, trailing uint8, st *[25]uint64) bool {
	total := int(leading) + int(trailing)
	r.mu.Lock()
	defer r.mu.Unlock()
	if total <= r.score {
		return false
	}
	r.found = true
	r.nonce = nonce
	r.leading = leading
	r.trailing = trailing
	r.score = total
	for i, w := range st {
		binary.LittleEndian.PutUint64(r.state[i*8:], w)
	}
	return true
}
