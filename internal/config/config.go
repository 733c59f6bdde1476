// Package config loads the solver's TOML configuration file: the
// agent-wide settings and the list of networks it should watch.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Default gas buffers applied to every network unless overridden, per
// spec.md §6.
const (
	DefaultTxGasBufferPercent      = 120
	DefaultTxGasPriceBufferPercent = 100
)

// EvaluatorVariant selects which evaluator the supervisor runs, per
// spec.md's open question ("expose both under a config flag and not
// pick one silently").
type EvaluatorVariant string

// Recognized evaluator variants.
const (
	EvaluatorSimple EvaluatorVariant = "simple"
	EvaluatorScored  EvaluatorVariant = "scored"
)

// AgentConfig is the [agent] table.
type AgentConfig struct {
	HealthcheckListenAddr string `toml:"healthcheck_listen_addr"`
	HealthcheckPort        int    `toml:"healthcheck_port"`
	LogLevel               string `toml:"log_level"`
	LogJSON                bool   `toml:"log_json"`
	Evaluator              string `toml:"evaluator"`
	JournalPath            string `toml:"journal_path"`
}

// NetworkConfig is one [[networks]] table.
type NetworkConfig struct {
	ChainID              uint64   `toml:"chain_id"`
	RPCURL               string   `toml:"rpc_url"`
	Tokens               []string `toml:"tokens"`
	RouterAddress        string   `toml:"router_address"`
	TxGasBufferPercent   int      `toml:"tx_gas_buffer"`
	TxGasPriceBufferPercent int   `toml:"tx_gas_price_buffer"`
}

// Config is the full parsed TOML document.
type Config struct {
	Agent    AgentConfig     `toml:"agent"`
	Networks []NetworkConfig `toml:"networks"`
}

// EvaluatorVariant resolves the configured evaluator, defaulting to
// the simple variant when unset.
func (c *Config) EvaluatorVariant() EvaluatorVariant {
	switch EvaluatorVariant(c.Agent.Evaluator) {
	case EvaluatorScored:
		return EvaluatorScored
	default:
		return EvaluatorSimple
	}
}

// ResolvePath implements the discovery order from spec.md §6:
// --config flag, SOLVER_CONFIG_PATH env, ./config.toml,
// ~/.config/onlyswaps/solver/config.toml.
func ResolvePath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("SOLVER_CONFIG_PATH"); env != "" {
		return env, nil
	}
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no --config given and could not resolve home directory: %w", err)
	}
	fallback := filepath.Join(home, ".config", "onlyswaps", "solver", "config.toml")
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}
	return "", fmt.Errorf("no config file found (checked --config, SOLVER_CONFIG_PATH, ./config.toml, %s)", fallback)
}

// Load reads and validates the TOML file at path, applying gas-buffer
// defaults to any network that omits them.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if len(cfg.Networks) == 0 {
		return nil, fmt.Errorf("config %s defines no [[networks]]", path)
	}

	for i := range cfg.Networks {
		net := &cfg.Networks[i]
		if net.ChainID == 0 {
			return nil, fmt.Errorf("network[%d]: chain_id is required", i)
		}
		if net.RPCURL == "" {
			return nil, fmt.Errorf("network[%d]: rpc_url is required", i)
		}
		if !common.IsHexAddress(net.RouterAddress) {
			return nil, fmt.Errorf("network[%d]: router_address %q is not a valid address", i, net.RouterAddress)
		}
		for _, t := range net.Tokens {
			if !common.IsHexAddress(t) {
				return nil, fmt.Errorf("network[%d]: token %q is not a valid address", i, t)
			}
		}
		if net.TxGasBufferPercent == 0 {
			net.TxGasBufferPercent = DefaultTxGasBufferPercent
		}
		if net.TxGasPriceBufferPercent == 0 {
			net.TxGasPriceBufferPercent = DefaultTxGasPriceBufferPercent
		}
	}

	return &cfg, nil
}

// TokenAddresses parses this network's configured token strings into
// common.Address values.
func (n NetworkConfig) TokenAddresses() []common.Address {
	addrs := make([]common.Address, len(n.Tokens))
	for i, t := range n.Tokens {
		addrs[i] = common.HexToAddress(t)
	}
	return addrs
}

// RouterAddr parses this network's router address.
func (n NetworkConfig) RouterAddr() common.Address {
	return common.HexToAddress(n.RouterAddress)
}
