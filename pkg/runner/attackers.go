package runner

import (
	"errors"
	"fmt"

	"github.com/jabolina/bft-sim/pkg/simcore"
	"github.com/jabolina/bft-sim/pkg/simnet"
)

// ErrUnsupportedAttacker is returned when a configuration names an
// attacker tag this build has no factory for.
var ErrUnsupportedAttacker = errors.New("runner: unsupported attacker")

// defaultPartitionLifetime and defaultClockSkewRate seed the built-in
// attacker parameters when a configuration's protocol-specific
// subtable leaves them unset; they are the values scenario S2/S5 use.
const (
	defaultPartitionLifetime = 60.0
	defaultPartitionDelay    = 5.0
	defaultClockSkewRate     = 0.5
	defaultEquivocationProb  = 0.3
)

// faultyIDs returns the replica ids conventionally treated as faulty:
// the top f ids of an n-replica pool (spec §3 glossary convention,
// also simcore.ReplicaID's doc comment).
func faultyIDs(n, f int) []simcore.ReplicaID {
	ids := make([]simcore.ReplicaID, 0, f)
	for id := n - f + 1; id <= n; id++ {
		ids = append(ids, simcore.ReplicaID(id))
	}
	return ids
}

// LoadAttacker resolves a configuration's attacker tag into a
// constructed simnet.Attacker, applying the built-in conventions spec
// §9 and SPEC_FULL.md's Supplemented Features describe: the faulty set
// is always the top-f ids of the pool, and the equivocation,
// clock-skew and partition parameters are read from extra (the
// configuration's protocol-specific subtable) under the keys prob,
// rate, extra_delay and lifetime, falling back to the defaults above
// when absent.
func LoadAttacker(tag string, n, f int, extra map[string]interface{}, ctx simnet.AttackerContext) (simnet.Attacker, error) {
	switch tag {
	case "", "identity":
		return simnet.NewIdentityAttacker(ctx), nil
	case "fail-stop":
		return simnet.NewFailStopAttacker(faultyIDs(n, f))(ctx), nil
	case "equivocation":
		prob := floatOr(extra, "prob", defaultEquivocationProb)
		return simnet.NewEquivocationAttacker(faultyIDs(n, f), prob)(ctx), nil
	case "clock-skew":
		rate := floatOr(extra, "rate", defaultClockSkewRate)
		return simnet.NewClockSkewAttacker(faultyIDs(n, f), rate)(ctx), nil
	case "partition":
		setA, setB := partitionSets(n, f, extra)
		delay := floatOr(extra, "extra_delay", defaultPartitionDelay)
		lifetime := floatOr(extra, "lifetime", defaultPartitionLifetime)
		return simnet.NewPartitionAttacker(setA, setB, delay, lifetime)(ctx), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAttacker, tag)
	}
}

// partitionSets splits the pool into a minority (the faulty/top-f ids,
// matching scenario S2's convention of isolating the smaller set) and
// a majority (everyone else), returned majority first. extra is not
// consulted: explicit partition sets cannot be configured.
func partitionSets(n, f int, extra map[string]interface{}) ([]simcore.ReplicaID, []simcore.ReplicaID) {
	minority := faultyIDs(n, f)
	minoritySet := make(map[simcore.ReplicaID]struct{}, len(minority))
	for _, id := range minority {
		minoritySet[id] = struct{}{}
	}
	majority := make([]simcore.ReplicaID, 0, n-len(minority))
	for id := 1; id <= n; id++ {
		if _, ok := minoritySet[simcore.ReplicaID(id)]; !ok {
			majority = append(majority, simcore.ReplicaID(id))
		}
	}
	return majority, minority
}

func floatOr(extra map[string]interface{}, key string, fallback float64) float64 {
	if extra == nil {
		return fallback
	}
	v, ok := extra[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return fallback
	}
}
