package config

import (
	"errors"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"

	"github.com/screa/create2-salt-miner/internal/crypto"
)

// Environment variables honored as defaults (loaded from .env if present).
const (
	EnvDeployer     = "CREATE2_DEPLOYER"
	EnvInitCodeHash = "CREATE2_INIT_CODE_HASH"
)

// Errors
var (
	ErrNoCriteria          = errors.New("must specify --prefix, --suffix, or a minimum ones threshold")
	ErrNoDeployer          = errors.New("must specify --deployer (or set CREATE2_DEPLOYER)")
	ErrNoInitCode          = errors.New("must specify --init-code-hash, --bytecode, or --bytecode-file")
	ErrConflictingInitCode = errors.New("--init-code-hash cannot be combined with --bytecode or --bytecode-file")
)

// Config holds the application configuration.
type Config struct {
	Deployer     string
	InitCodeHash string
	Bytecode     string
	BytecodeFile string
	Prefix       string
	Suffix       string
	MinLeading   uint8
	MinTrailing  uint8

	Workers       int
	Lanes         uint32 // lanes per dispatch
	MaxDispatches uint64 // 0 means search until found or stopped
	NonceStart    uint32 // first dispatch high word

	Verbose     bool
	LogFile     string
	LogInterval int // seconds
}

// NewConfig creates a new configuration with default values. A .env file in
// the working directory may supply the deployer address and init-code hash;
// explicit flags win.
func NewConfig() *Config {
	_ = godotenv.Load() // missing .env is fine

	return &Config{
		Deployer:     os.Getenv(EnvDeployer),
		InitCodeHash: os.Getenv(EnvInitCodeHash),
		Workers:      runtime.NumCPU(),
		Lanes:        1 << 20,
		LogInterval:  5,
	}
}

// Validate validates the configuration. Precondition enforcement lives
// here, before anything reaches a dispatch.
func (c *Config) Validate() error {
	if c.Prefix == "" && c.Suffix == "" && c.MinLeading == 0 && c.MinTrailing == 0 {
		return ErrNoCriteria
	}
	if c.Deployer == "" {
		return ErrNoDeployer
	}
	if c.InitCodeHash == "" && c.Bytecode == "" && c.BytecodeFile == "" {
		return ErrNoInitCode
	}
	if c.InitCodeHash != "" && (c.Bytecode != "" || c.BytecodeFile != "") {
		return ErrConflictingInitCode
	}
	return nil
}

// GetTargetDescription returns a human-readable description of the search
// criteria.
func (c *Config) GetTargetDescription() string {
	var parts []string
	if c.Prefix != "" {
		parts = append(parts, "prefix: "+c.Prefix)
	}
	if c.Suffix != "" {
		parts = append(parts, "suffix: "+c.Suffix)
	}
	if c.MinLeading > 0 || c.MinTrailing > 0 {
		parts = append(parts, "maximize leading+trailing '1' nibbles")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ", ")
}

// GetInitCodeHash resolves the init-code hash: either the hash supplied
// directly, or the keccak256 of the supplied bytecode.
func (c *Config) GetInitCodeHash() ([32]byte, error) {
	if c.InitCodeHash != "" {
		return crypto.ParseHash(c.InitCodeHash)
	}

	var hash [32]byte
	code, err := c.getBytecode()
	if err != nil {
		return hash, err
	}
	copy(hash[:], crypto.Keccak256(code))
	return hash, nil
}

// GetDeployer resolves the deployer/factory address bytes.
func (c *Config) GetDeployer() ([20]byte, error) {
	return crypto.ParseAddress(c.Deployer)
}

// getBytecode returns the init code from the flag or file.
func (c *Config) getBytecode() ([]byte, error) {
	if c.BytecodeFile != "" {
		return readBytecodeFromFile(c.BytecodeFile)
	}
	if c.Bytecode != "" {
		return crypto.HexToBytes(c.Bytecode)
	}
	// This should not happen if validation passes
	return nil, ErrNoInitCode
}

// readBytecodeFromFile reads hex-encoded bytecode from a file.
func readBytecodeFromFile(filename string) ([]byte, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	code := strings.TrimSpace(string(content))
	if len(code) > 2 && code[:2] == "0x" {
		code = code[2:]
	}
	// Ensure even length by padding with 0 if necessary
	if len(code)%2 != 0 {
		code = code + "0"
	}
	return crypto.HexToBytes(code)
}
