package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeTemp(t, "cfg.yaml", `
node_num: 4
byzantine_node_num: 1
lambda: 2
protocol: pbft
attacker: identity
network_delay:
  mean: 0.1
  std: 0
repeat_time: 3
seed: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeNum != 4 || cfg.ByzantineNodeNum != 1 || cfg.Protocol != "pbft" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Seed != 7 {
		t.Fatalf("seed = %d, want 7", cfg.Seed)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeTemp(t, "cfg.toml", `
node_num = 16
byzantine_node_num = 4
lambda = 1
protocol = "ssb-babble"
attacker = "partition"
repeat_time = 1

[network_delay]
mean = 0.2
std = 0.05
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Protocol != "ssb-babble" || cfg.NetworkDelay.Std != 0.05 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestValidate_AggregatesAllErrors(t *testing.T) {
	cfg := Config{NodeNum: 0, ByzantineNodeNum: -1, Lambda: -1, Protocol: "not-a-protocol", Attacker: "not-an-attacker", RepeatTime: 0}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatal("expected error to wrap ErrInvalidConfig")
	}
	msg := err.Error()
	for _, want := range []string{"node_num", "byzantine_node_num", "lambda", "protocol", "attacker", "repeat_time"} {
		if !contains(msg, want) {
			t.Errorf("aggregated error missing mention of %q: %s", want, msg)
		}
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := Config{NodeNum: 4, ByzantineNodeNum: 1, Lambda: 1, Protocol: "pbft", Attacker: "identity", RepeatTime: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
