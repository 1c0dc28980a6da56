package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunBatch_SucceedsForWellFormedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	content := `
node_num: 4
byzantine_node_num: 1
lambda: 1
protocol: pbft
attacker: identity
network_delay:
  mean: 0.1
  std: 0
repeat_time: 2
seed: 3
virtual_time_ceiling: 50
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := runBatch(path, "", &buf); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	report := buf.String()
	if !strings.Contains(report, "pbft") {
		t.Fatalf("report missing protocol column: %s", report)
	}
}

func TestRunBatch_ExpandsAttackerSweep(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	content := `
node_num: 4
byzantine_node_num: 1
lambda: 1
protocol: pbft
attacker: identity
attackers: ["identity", "fail-stop"]
network_delay:
  mean: 0.1
  std: 0
repeat_time: 1
seed: 3
virtual_time_ceiling: 50
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := runBatch(path, "", &buf); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	report := buf.String()
	if !strings.Contains(report, "fail-stop") {
		t.Fatalf("report missing fail-stop sweep row: %s", report)
	}
}
