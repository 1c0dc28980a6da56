// Package pbft is a minimal, single-view PBFT replica: no view
// changes, one client request bootstrapped at construction. It exists
// to exercise the Replica contract (spec §4.4) and drive scenarios
// S1/S3/S10 without claiming to be a complete PBFT implementation --
// SPEC_FULL.md's Supplemented Features section calls this out
// explicitly.
package pbft

import "github.com/jabolina/bft-sim/pkg/simcore"

// Digest stands in for a real request hash; signatures in this
// simulator are opaque tokens (spec §1 Non-goals), so equality of the
// digest string is all correctness here depends on.
type Digest string

// PrePrepare is sent only by the primary.
type PrePrepare struct {
	View   int
	Seq    int
	Digest Digest
	Value  string
}

// Prepare is broadcast by every replica once it accepts a PrePrepare.
type Prepare struct {
	View   int
	Seq    int
	Digest Digest
	From   simcore.ReplicaID
}

// Commit is broadcast by every replica once it is Prepared.
type Commit struct {
	View   int
	Seq    int
	Digest Digest
	From   simcore.ReplicaID
}

// Malformed is synthesized internally when content doesn't match any
// of the above, mirroring babble's drop-and-log handling.
type Malformed struct {
	Reason string
}
