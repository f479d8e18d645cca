// Package config handles configuration loading and validation.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Config holds dashboard service configuration.
type Config struct {
	ListenAddr         string
	DatabasePath       string // Path to SQLite database file
	RPCURL             string
	ChainID            int64
	Network            string // Human-readable network name exposed on /api/wallet
	AgentPrivateKey    string // Hex key for the agent wallet (no 0x prefix)
	FaucetPrivateKey   string // Optional hex key funding faucet requests
	GasTipCap          int64  // EIP-1559 priority fee (tip) in wei
	GasFeeCap          int64  // EIP-1559 max fee per gas in wei (0 = auto from chain)
	GasLimit           uint64 // Gas limit for plain value transfers
	CORSAllowedOrigins string // Comma-separated list of allowed origins, or "*" for all
	WSBufferSize       int    // Per-subscriber event buffer before drops kick in
}

// Defaults
const (
	DefaultListenAddr         = ":3001"
	DefaultDatabasePath       = "./data/agentdash.db"
	DefaultRPCURL             = "http://localhost:8545"
	DefaultChainID            = 84532 // Base Sepolia
	DefaultNetwork            = "base-sepolia"
	DefaultGasTipCap          = 1000000000 // 1 Gwei priority fee (tip)
	DefaultGasFeeCap          = 0          // 0 = auto-calculate from chain gas price
	DefaultGasLimit           = 21000
	DefaultCORSAllowedOrigins = "*" // Allow all origins by default for dev
	DefaultWSBufferSize       = 16
)

// Load reads configuration from environment variables and command-line flags.
// Command-line flags take precedence over environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         DefaultListenAddr,
		DatabasePath:       DefaultDatabasePath,
		RPCURL:             DefaultRPCURL,
		ChainID:            DefaultChainID,
		Network:            DefaultNetwork,
		GasTipCap:          DefaultGasTipCap,
		GasFeeCap:          DefaultGasFeeCap,
		GasLimit:           DefaultGasLimit,
		CORSAllowedOrigins: DefaultCORSAllowedOrigins,
		WSBufferSize:       DefaultWSBufferSize,
	}

	// Load from environment variables first
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := parseInt64Env(v); err == nil && id > 0 {
			cfg.ChainID = id
		}
	}
	if v := os.Getenv("NETWORK"); v != "" {
		cfg.Network = v
	}
	if v := os.Getenv("AGENT_PRIVATE_KEY"); v != "" {
		cfg.AgentPrivateKey = v
	}
	if v := os.Getenv("FAUCET_PRIVATE_KEY"); v != "" {
		cfg.FaucetPrivateKey = v
	}
	if v := os.Getenv("GAS_TIP_CAP"); v != "" {
		if tip, err := parseInt64Env(v); err == nil && tip > 0 {
			cfg.GasTipCap = tip
		}
	}
	if v := os.Getenv("GAS_FEE_CAP"); v != "" {
		if fee, err := parseInt64Env(v); err == nil && fee >= 0 {
			cfg.GasFeeCap = fee
		}
	}
	if v := os.Getenv("GAS_LIMIT"); v != "" {
		if g, err := parseUint64Env(v); err == nil && g > 0 {
			cfg.GasLimit = g
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = v
	}
	if v := os.Getenv("WS_BUFFER_SIZE"); v != "" {
		if n, err := parseIntEnv(v); err == nil && n > 0 {
			cfg.WSBufferSize = n
		}
	}

	// Define command-line flags
	var (
		listenAddr = flag.String("listen", cfg.ListenAddr, "HTTP listen address")
		dbPath     = flag.String("db", cfg.DatabasePath, "SQLite database path")
		rpcURL     = flag.String("rpc", cfg.RPCURL, "Chain JSON-RPC URL")
		chainID    = flag.Int64("chainid", cfg.ChainID, "Chain ID")
		network    = flag.String("network", cfg.Network, "Network name")
		gasTipCap  = flag.Int64("gastipcap", cfg.GasTipCap, "EIP-1559 priority fee (tip) in wei")
		gasFeeCap  = flag.Int64("gasfeecap", cfg.GasFeeCap, "EIP-1559 max fee per gas in wei (0=auto)")
		gasLimit   = flag.Uint64("gaslimit", cfg.GasLimit, "Gas limit for transfers")
	)

	flag.Parse()

	// Apply flags to config
	cfg.ListenAddr = *listenAddr
	cfg.DatabasePath = *dbPath
	cfg.RPCURL = *rpcURL
	cfg.ChainID = *chainID
	cfg.Network = *network
	cfg.GasTipCap = *gasTipCap
	cfg.GasFeeCap = *gasFeeCap
	cfg.GasLimit = *gasLimit

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("RPC URL is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain ID must be positive")
	}
	if c.AgentPrivateKey == "" {
		return fmt.Errorf("agent private key is required (set AGENT_PRIVATE_KEY)")
	}
	if c.GasTipCap <= 0 {
		return fmt.Errorf("gas tip cap must be positive")
	}
	// GasFeeCap can be 0 (auto-calculate from chain) or positive
	if c.GasFeeCap < 0 {
		return fmt.Errorf("gas fee cap cannot be negative")
	}
	if c.GasLimit == 0 {
		return fmt.Errorf("gas limit must be positive")
	}
	if c.WSBufferSize <= 0 {
		return fmt.Errorf("WS buffer size must be positive")
	}
	return nil
}

// parseIntEnv parses a string environment variable as an integer.
func parseIntEnv(s string) (int, error) {
	return strconv.Atoi(s)
}

// parseInt64Env parses a string environment variable as an int64.
func parseInt64Env(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// parseUint64Env parses a string environment variable as a uint64.
func parseUint64Env(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
