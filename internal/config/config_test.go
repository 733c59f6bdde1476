package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validTOML = `
[agent]
healthcheck_listen_addr = "127.0.0.1"
healthcheck_port = 8080
log_level = "info"
log_json = false

[[networks]]
chain_id = 31337
rpc_url = "http://localhost:8545"
tokens = ["0x00000000000000000000000000000000000000a1"]
router_address = "0x00000000000000000000000000000000000000b2"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validTOML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Networks) != 1 {
		t.Fatalf("expected 1 network, got %d", len(cfg.Networks))
	}
	if cfg.Networks[0].TxGasBufferPercent != DefaultTxGasBufferPercent {
		t.Errorf("expected default gas buffer, got %d", cfg.Networks[0].TxGasBufferPercent)
	}
	if cfg.EvaluatorVariant() != EvaluatorSimple {
		t.Errorf("expected default evaluator variant simple, got %q", cfg.EvaluatorVariant())
	}
}

func TestLoadRejectsNoNetworks(t *testing.T) {
	path := writeConfig(t, "[agent]\nlog_level = \"info\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for config with no networks")
	}
}

func TestLoadRejectsBadRouterAddress(t *testing.T) {
	badTOML := `
[[networks]]
chain_id = 1
rpc_url = "http://localhost:8545"
router_address = "not-an-address"
`
	path := writeConfig(t, badTOML)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid router address")
	}
}

func TestEvaluatorVariantScored(t *testing.T) {
	path := writeConfig(t, `
[agent]
evaluator = "scored"

[[networks]]
chain_id = 1
rpc_url = "http://localhost:8545"
router_address = "0x00000000000000000000000000000000000000b2"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EvaluatorVariant() != EvaluatorScored {
		t.Errorf("expected scored evaluator, got %q", cfg.EvaluatorVariant())
	}
}

func TestResolvePathPrefersFlag(t *testing.T) {
	path, err := ResolvePath("/explicit/path/config.toml")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if path != "/explicit/path/config.toml" {
		t.Errorf("expected explicit flag value, got %q", path)
	}
}

func TestResolvePathFallsBackToEnv(t *testing.T) {
	t.Setenv("SOLVER_CONFIG_PATH", "/env/path/config.toml")
	path, err := ResolvePath("")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if path != "/env/path/config.toml" {
		t.Errorf("expected env value, got %q", path)
	}
}
