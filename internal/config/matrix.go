package config

import "github.com/jabolina/bft-sim/pkg/replica"

// Matrix is the batch runner's sweep document (spec §6.2): a base
// Config plus the lists of attacker tags, protocol tags, and (N, f)
// pairs to cross. An empty list in any dimension means "use the base
// Config's single value", so a Matrix with nothing but the embedded
// Config behaves like a single run.
type Matrix struct {
	Config     `yaml:",inline"`
	Attackers  []string `yaml:"attackers" toml:"attackers"`
	Protocols  []string `yaml:"protocols" toml:"protocols"`
	NodeCounts []int    `yaml:"node_counts" toml:"node_counts"`
}

// Expand materializes every (attacker, protocol, (N,f)) triple the
// matrix describes, each as a runnable Config derived from the
// embedded Config.
func (m Matrix) Expand() []Config {
	attackers := m.Attackers
	if len(attackers) == 0 {
		attackers = []string{m.Config.Attacker}
	}
	protocols := m.Protocols
	if len(protocols) == 0 {
		protocols = []string{m.Config.Protocol}
	}
	counts := m.NodeCounts
	if len(counts) == 0 {
		counts = []int{m.Config.NodeNum}
	}

	var out []Config
	for _, a := range attackers {
		for _, p := range protocols {
			for _, n := range counts {
				cfg := m.Config
				cfg.Attacker = a
				cfg.Protocol = p
				cfg.NodeNum = n
				if len(m.NodeCounts) > 0 {
					cfg.ByzantineNodeNum = replica.DefaultF(n)
				}
				out = append(out, cfg)
			}
		}
	}
	return out
}
