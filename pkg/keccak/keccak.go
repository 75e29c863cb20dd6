// Package keccak implements the Keccak-f[1600] permutation over a
// caller-owned 25-word state, in the bit/byte conventions of Keccak-256
// (lanes are little-endian 64-bit words).
//
// Unlike the hash.Hash wrappers in golang.org/x/crypto/sha3, the state here
// belongs to the caller and nothing allocates, so a search loop can rebuild
// and permute millions of states per second.
package keccak

import (
	"math/bits"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

const rounds = 24

// roundConstants are the canonical iota constants for Keccak-f[1600].
var roundConstants = [rounds]uint64{
	0x0000000000000001, 0x0000000000008082, 0x800000000000808a, 0x8000000080008000,
	0x000000000000808b, 0x0000000080000001, 0x8000000080008081, 0x8000000000008009,
	0x000000000000008a, 0x0000000000000088, 0x0000000080008009, 0x000000008000000a,
	0x000000008000808b, 0x800000000000008b, 0x8000000000008089, 0x8000000000008003,
	0x8000000000008002, 0x8000000000000080, 0x000000000000800a, 0x800000008000000a,
	0x8000000080008081, 0x8000000000008080, 0x0000000080000001, 0x8000000080008008,
}

// rho rotation amounts and pi lane destinations, in the walk order of the
// compact in-place formulation (start at lane 1, follow the pi permutation).
var (
	rotc = [24]int{
		1, 3, 6, 10, 15, 21, 28, 36, 45, 55, 2, 14,
		27, 41, 56, 8, 25, 43, 62, 18, 39, 61, 20, 44,
	}
	piln = [24]int{
		10, 7, 11, 17, 18, 3, 5, 16, 8, 21, 24, 4,
		15, 23, 19, 13, 12, 2, 20, 14, 22, 9, 6, 1,
	}
)

// permute points at the implementation picked at init time.
var permute func(a *[25]uint64, n int)

func init() {
	// bits.RotateLeft64 lowers to a single instruction where the target has
	// a flag-free rotate (RORX on BMI2-capable x86-64, ROR on arm64). On
	// anything else the portable shift/or formula is just as fast and has
	// no intrinsic to miss.
	if cpuid.CPU.Has(cpuid.BMI2) || runtime.GOARCH == "arm64" {
		permute = f1600Fast
	} else {
		permute = f1600Generic
	}
}

// Permute applies the full 24-round Keccak-f[1600] permutation in place.
func Permute(a *[25]uint64) {
	permute(a, rounds)
}

// PermuteDigest applies Keccak-f[1600] with the final round restricted to
// the terms that feed state words 0..3, and returns those words. They hold
// the 32 digest bytes of a Keccak-256 absorption, which is all a caller
// inspecting the digest ever reads. The remaining 21 words of the state are
// left mid-round and must not be used.
func PermuteDigest(a *[25]uint64) [4]uint64 {
	permute(a, rounds-1)
	return lastRoundDigest(a)
}

// lastRoundDigest runs theta in full, then only the rho/pi/chi/iota terms
// for the first plane. After rho and pi that plane is sourced from the
// state diagonal, so five lanes suffice.
func lastRoundDigest(a *[25]uint64) [4]uint64 {
	var c, d [5]uint64
	for i := 0; i < 5; i++ {
		c[i] = a[i] ^ a[i+5] ^ a[i+10] ^ a[i+15] ^ a[i+20]
	}
	for i := 0; i < 5; i++ {
		d[i] = c[(i+4)%5] ^ bits.RotateLeft64(c[(i+1)%5], 1)
	}
	b0 := a[0] ^ d[0]
	b1 := bits.RotateLeft64(a[6]^d[1], 44)
	b2 := bits.RotateLeft64(a[12]^d[2], 43)
	b3 := bits.RotateLeft64(a[18]^d[3], 21)
	b4 := bits.RotateLeft64(a[24]^d[4], 14)
	return [4]uint64{
		b0 ^ (^b1 & b2) ^ roundConstants[rounds-1],
		b1 ^ (^b2 & b3),
		b2 ^ (^b3 & b4),
		b3 ^ (^b4 & b0),
	}
}

// f1600Fast is the hardware-rotate path: every rotation goes through the
// bits.RotateLeft64 intrinsic.
func f1600Fast(a *[25]uint64, n int) {
	var c [5]uint64
	var b [5]uint64
	for round := 0; round < n; round++ {
		// theta
		for i := 0; i < 5; i++ {
			c[i] = a[i] ^ a[i+5] ^ a[i+10] ^ a[i+15] ^ a[i+20]
		}
		for i := 0; i < 5; i++ {
			d := c[(i+4)%5] ^ bits.RotateLeft64(c[(i+1)%5], 1)
			for j := 0; j < 25; j += 5 {
				a[j+i] ^= d
			}
		}
		// rho and pi
		t := a[1]
		for i := 0; i < 24; i++ {
			j := piln[i]
			t, a[j] = a[j], bits.RotateLeft64(t, rotc[i])
		}
		// chi
		for j := 0; j < 25; j += 5 {
			for i := 0; i < 5; i++ {
				b[i] = a[j+i]
			}
			for i := 0; i < 5; i++ {
				a[j+i] = b[i] ^ (^b[(i+1)%5] & b[(i+2)%5])
			}
		}
		// iota
		a[0] ^= roundConstants[round]
	}
}

// f1600Generic is the portable fallback using the shift/or rotate formula.
func f1600Generic(a *[25]uint64, n int) {
	var c [5]uint64
	var b [5]uint64
	for round := 0; round < n; round++ {
		for i := 0; i < 5; i++ {
			c[i] = a[i] ^ a[i+5] ^ a[i+10] ^ a[i+15] ^ a[i+20]
		}
		for i := 0; i < 5; i++ {
			d := c[(i+4)%5] ^ rotlPortable(c[(i+1)%5], 1)
			for j := 0; j < 25; j += 5 {
				a[j+i] ^= d
			}
		}
		t := a[1]
		for i := 0; i < 24; i++ {
			j := piln[i]
			t, a[j] = a[j], rotlPortable(t, rotc[i])
		}
		for j := 0; j < 25; j += 5 {
			for i := 0; i < 5; i++ {
				b[i] = a[j+i]
			}
			for i := 0; i < 5; i++ {
				a[j+i] = b[i] ^ (^b[(i+1)%5] & b[(i+2)%5])
			}
		}
		a[0] ^= roundConstants[round]
	}
}

// rotlPortable rotates x left by k bits without relying on a rotate
// instruction. k must be in [0, 63]; Go defines the k == 0 over-shift
// x >> 64 as zero, so no branch is needed.
func rotlPortable(x uint64, k int) uint64 {
	return x<<uint(k) | x>>uint(64-k)
}
