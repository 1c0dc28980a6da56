package babble

import "github.com/jabolina/bft-sim/pkg/simcore"

// Message content is a sealed set of concrete Go types dispatched by a
// type switch in Replica.OnMessage -- the idiomatic-Go rendering of
// the "tagged variant per protocol" design note (spec §9): a
// non-conforming value from the attacker falls through to the default
// case and is logged and dropped as Malformed, exactly as that design
// note asks for.

// SyncRequest asks the peer for every event it has beyond the sender's
// reported known height, per creator (spec §4.5 gossip sync).
type SyncRequest struct {
	From        simcore.ReplicaID
	KnownHeight map[simcore.ReplicaID]int
}

// SyncResponse carries the events the requester was missing, capped
// by the configured per-response limit before being sent.
type SyncResponse struct {
	From   simcore.ReplicaID
	Events []Event
}

// BlockSignatureMsg is broadcast once a replica produces a block, and
// echoed by peers as their own signature over the same block.
type BlockSignatureMsg struct {
	From       simcore.ReplicaID
	BlockIndex int
	BlockHash  Hash
}

// Malformed is never sent by this protocol; OnMessage synthesizes one
// internally when it receives content it does not recognize, purely
// so the drop path has a named thing to log.
type Malformed struct {
	Reason string
}
