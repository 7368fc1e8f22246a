package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.App.Name != "chainsync" {
		t.Errorf("app.name = %q", cfg.App.Name)
	}
	if cfg.Node.URI != "http://localhost:8545" {
		t.Errorf("node.uri = %q", cfg.Node.URI)
	}
	if cfg.Sync.Timeout != 600*time.Second {
		t.Errorf("sync.timeout = %s", cfg.Sync.Timeout)
	}
	if cfg.Sync.PeerWaitBudget != 30*time.Second {
		t.Errorf("sync.peer_wait_budget = %s", cfg.Sync.PeerWaitBudget)
	}
	if cfg.Node.ReceiptTimeout != 120*time.Second {
		t.Errorf("node.receipt_timeout = %s", cfg.Node.ReceiptTimeout)
	}
	if cfg.Node.FullSync != true {
		t.Error("node.full_sync should default to true")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
node:
  uri: ws://testnode:8546
  poa_mode: true
  as_deployer: true
sync:
  timeout: 120s
registry:
  publication_url: https://registry.example.com/contracts.json
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Node.URI != "ws://testnode:8546" {
		t.Errorf("node.uri = %q", cfg.Node.URI)
	}
	if !cfg.Node.PoAMode {
		t.Error("node.poa_mode should be true")
	}
	if !cfg.Node.AsDeployer {
		t.Error("node.as_deployer should be true")
	}
	if cfg.Sync.Timeout != 120*time.Second {
		t.Errorf("sync.timeout = %s", cfg.Sync.Timeout)
	}
	if cfg.Registry.PublicationURL != "https://registry.example.com/contracts.json" {
		t.Errorf("registry.publication_url = %q", cfg.Registry.PublicationURL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHS_NODE_URI", "http://envnode:8545")
	t.Setenv("CHS_SYNC_TIMEOUT", "90s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Node.URI != "http://envnode:8545" {
		t.Errorf("node.uri = %q", cfg.Node.URI)
	}
	if cfg.Sync.Timeout != 90*time.Second {
		t.Errorf("sync.timeout = %s", cfg.Sync.Timeout)
	}
}

func TestValidateRejectsBadBudgets(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	cfg.Sync.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero sync.timeout must fail validation")
	}

	cfg, _ = Load("")
	cfg.Node.URI = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty node.uri without a process binary must fail validation")
	}

	cfg, _ = Load("")
	cfg.Node.URI = ""
	cfg.Node.Process.Binary = "/usr/local/bin/geth"
	if err := cfg.Validate(); err != nil {
		t.Errorf("process binary without uri should validate, got %v", err)
	}
}
