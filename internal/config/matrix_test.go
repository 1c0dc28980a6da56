package config

import "testing"

func TestMatrix_ExpandCrossesAllDimensions(t *testing.T) {
	m := Matrix{
		Config:     Config{Protocol: "pbft", Attacker: "identity", Lambda: 1, RepeatTime: 1, NodeNum: 4, ByzantineNodeNum: 1},
		Attackers:  []string{"identity", "fail-stop"},
		Protocols:  []string{"pbft"},
		NodeCounts: []int{4, 16},
	}
	out := m.Expand()
	if len(out) != 4 {
		t.Fatalf("got %d configs, want 2*1*2=4", len(out))
	}
	for _, cfg := range out {
		if cfg.NodeNum == 16 && cfg.ByzantineNodeNum != 5 {
			t.Fatalf("expected derived f=floor(15/3)=5 for N=16, got %d", cfg.ByzantineNodeNum)
		}
	}
}

func TestMatrix_EmptyDimensionsFallBackToBase(t *testing.T) {
	m := Matrix{Config: Config{Protocol: "pbft", Attacker: "identity", Lambda: 1, RepeatTime: 1, NodeNum: 4, ByzantineNodeNum: 1}}
	out := m.Expand()
	if len(out) != 1 {
		t.Fatalf("got %d configs, want 1", len(out))
	}
	if out[0].NodeNum != 4 || out[0].ByzantineNodeNum != 1 {
		t.Fatalf("unexpected config: %+v", out[0])
	}
}
