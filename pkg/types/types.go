package types

import "time"

// Result represents a validated mining result.
type Result struct {
	Salt         string // hex-encoded 32-byte salt, without 0x
	Address      string // EIP-55 checksummed
	Nonce        uint64 // winning (dispatch counter, lane) pair
	LeadingOnes  uint8
	TrailingOnes uint8
	Attempts     int64
	Duration     time.Duration
}

// TotalScore is the leading plus trailing ones count of the result.
func (r *Result) TotalScore() int {
	return int(r.LeadingOnes) + int(r.TrailingOnes)
}

// Stats holds point-in-time search statistics for progress reporting.
type Stats struct {
	Attempts   int64
	Dispatches uint64
	HashRate   float64 // attempts per second since start
	Elapsed    time.Duration
}
