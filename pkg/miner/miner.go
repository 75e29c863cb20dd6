// Package miner drives the salt search: it partitions the 64-bit nonce
// space into dispatches, clears and reads back the shared solution record,
// re-validates every candidate the kernel reports, and tracks the best
// result across dispatches.
package miner

import (
	"encoding/hex"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/screa/create2-salt-miner/internal/config"
	"github.com/screa/create2-salt-miner/internal/crypto"
	"github.com/screa/create2-salt-miner/internal/logger"
	"github.com/screa/create2-salt-miner/pkg/kernel"
	"github.com/screa/create2-salt-miner/pkg/types"
)

// Miner coordinates repeated kernel dispatches over the nonce space.
type Miner struct {
	config  *config.Config
	logger  *logger.Logger
	message *kernel.Message
	record  kernel.Record

	attempts   int64
	dispatches atomic.Uint64
	best       *types.Result
	mu         sync.RWMutex
	done       chan struct{}
	once       sync.Once
}

// NewMiner creates a new miner. The configuration must already be
// validated; parse failures here are reported as errors, not panics, since
// they come from user input.
func NewMiner(cfg *config.Config, log *logger.Logger) (*Miner, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	deployer, err := cfg.GetDeployer()
	if err != nil {
		return nil, err
	}
	initCodeHash, err := cfg.GetInitCodeHash()
	if err != nil {
		return nil, err
	}

	msg, err := kernel.NewMessage(deployer, initCodeHash, cfg.Prefix, cfg.Suffix)
	if err != nil {
		return nil, err
	}
	msg.MinLeading = cfg.MinLeading
	msg.MinTrailing = cfg.MinTrailing
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return &Miner{
		config:  cfg,
		logger:  log,
		message: msg,
		done:    make(chan struct{}),
	}, nil
}

// maximizing reports whether the search keeps improving on found results
// instead of stopping at the first criteria hit.
func (m *Miner) maximizing() bool {
	return m.config.MinLeading > 0 || m.config.MinTrailing > 0
}

// Mine runs dispatches until a result is found (plain prefix/suffix
// search), the dispatch limit or nonce space is exhausted, or Stop is
// called. In maximizing mode every strictly better result replaces the
// previous best and the search continues. Returns the best result, or nil
// if nothing was found.
func (m *Miner) Mine() *types.Result {
	start := time.Now()

	var logTicker *time.Ticker
	var logDone chan struct{}
	if m.config.Verbose {
		interval := m.config.LogInterval
		if interval <= 0 {
			interval = 5
		}
		logTicker = time.NewTicker(time.Duration(interval) * time.Second)
		logDone = make(chan struct{})
		go m.periodicLogger(logTicker, logDone, start)
		m.logger.Printf("Mining started: %d workers, %d lanes per dispatch, logging every %ds...",
			m.config.Workers, m.config.Lanes, m.config.LogInterval)
	}
	defer func() {
		if logTicker != nil {
			logTicker.Stop()
			close(logDone)
		}
	}()

	hi := m.config.NonceStart
	for {
		select {
		case <-m.done:
			return m.GetBestResult()
		default:
		}

		// The record is cleared before every dispatch; the kernel only
		// touches it for strict improvements over the carried best score.
		m.record.Reset(m.message.BestScore)
		kernel.Dispatch(m.message, hi, m.config.Lanes, m.config.Workers, &m.attempts, &m.record)
		n := m.dispatches.Add(1)
		m.logger.Debugf("Dispatch %d complete (nonce high word %#x)", n, hi)

		if sol, ok := m.record.Solution(); ok {
			if result := m.validate(&sol, start); result != nil {
				m.setBest(result)
				// Future dispatches must strictly beat this.
				m.message.BestScore = int16(result.TotalScore())
				if !m.maximizing() {
					return result
				}
				m.logger.Printf("New best: %s (score %d, salt 0x%s)",
					result.Address, result.TotalScore(), result.Salt)
			}
		}

		hi++
		if hi == m.config.NonceStart {
			m.logger.Println("Nonce space exhausted.")
			return m.GetBestResult()
		}
		if m.config.MaxDispatches > 0 && n >= m.config.MaxDispatches {
			return m.GetBestResult()
		}
	}
}

// validate independently recomputes the candidate address from the winning
// nonce and compares it against both the kernel's digest snapshot and the
// go-ethereum reference. The kernel's publish is best-effort, so nothing it
// reports is trusted without this check.
func (m *Miner) validate(sol *kernel.Solution, start time.Time) *types.Result {
	salt := sol.Nonce.SaltBytes()
	want := gethcrypto.CreateAddress2(common.Address(m.message.Deployer), salt, m.message.InitCodeHash[:])
	got := sol.Address()
	if want != common.Address(got) {
		m.logger.Printf("Discarding candidate nonce %#x: kernel digest does not re-validate", sol.Nonce.Uint64())
		return nil
	}

	return &types.Result{
		Salt:         hex.EncodeToString(salt[:]),
		Address:      crypto.ChecksumAddress(want.Bytes()),
		Nonce:        sol.Nonce.Uint64(),
		LeadingOnes:  sol.Leading,
		TrailingOnes: sol.Trailing,
		Attempts:     atomic.LoadInt64(&m.attempts),
		Duration:     time.Since(start),
	}
}

func (m *Miner) setBest(r *types.Result) {
	m.mu.Lock()
	m.best = r
	m.mu.Unlock()
}

// Stop stops the mining process after the in-flight dispatch completes;
// dispatches themselves always run to completion.
func (m *Miner) Stop() {
	m.once.Do(func() { close(m.done) })
}

// GetBestResult returns the best validated result so far.
func (m *Miner) GetBestResult() *types.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.best
}

// Stats returns point-in-time progress counters.
func (m *Miner) Stats(start time.Time) types.Stats {
	attempts := atomic.LoadInt64(&m.attempts)
	elapsed := time.Since(start)
	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(attempts) / elapsed.Seconds()
	}
	return types.Stats{
		Attempts:   attempts,
		Dispatches: m.dispatches.Load(),
		HashRate:   rate,
		Elapsed:    elapsed,
	}
}

// periodicLogger logs mining progress at regular intervals.
func (m *Miner) periodicLogger(ticker *time.Ticker, done chan struct{}, start time.Time) {
	for {
		select {
		case <-ticker.C:
			stats := m.Stats(start)
			best := m.GetBestResult()
			if best != nil {
				m.logger.Printf("Progress: %d attempts over %d dispatches, %.2f hashes/sec, best: %s (salt 0x%s)",
					stats.Attempts, stats.Dispatches, stats.HashRate, best.Address, best.Salt)
			} else {
				m.logger.Printf("Progress: %d attempts over %d dispatches, %.2f hashes/sec, no match yet",
					stats.Attempts, stats.Dispatches, stats.HashRate)
			}
		case <-done:
			return
		}
	}
}
