package simcore

import "fmt"

// ReplicaID identifies a single participant. Valid ids are 1..=N; by
// convention ids in 1..=N-f are correct replicas and N-f+1..=N are
// faulty, though the kernel never enforces the split itself.
type ReplicaID uint32

// Broadcast is the wildcard destination expanded by the transport into
// one delivery per replica other than the sender.
const Broadcast ReplicaID = 0

// String renders the id as the short opaque token protocols log.
func (id ReplicaID) String() string {
	if id == Broadcast {
		return "*"
	}
	return fmt.Sprintf("r%d", uint32(id))
}

// Seed derives a per-run PRNG seed from a global seed and a run index,
// so that `repeat_time` independent runs are each deterministic and
// distinct while the whole batch stays reproducible from one seed.
func Seed(globalSeed int64, runIndex int) int64 {
	// A cheap, stable mix; this need not be cryptographic, only
	// distinct-enough across small run indices for a fixed seed.
	h := uint64(globalSeed)*1099511628211 + uint64(runIndex)*2654435761 + 0x9e3779b97f4a7c15
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return int64(h)
}
