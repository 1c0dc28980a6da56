// Package babble implements the Hashgraph-style DAG consensus
// reference protocol of spec §4.5: a per-replica event graph, gossip
// sync, round assignment, a deliberately simplified consensus rule,
// and block finalization by signature quorum.
package babble

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jabolina/bft-sim/pkg/simcore"
)

// Hash identifies an Event. It is a deterministic function of
// (creator, parents, timestamp, transactions): any change to those
// inputs changes the hash (spec §4.5 invariant), which is also what
// keeps the event graph naturally acyclic -- events reference parents
// by hash into a map, never by live pointer (spec §9 design note).
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:6]) }

var zeroHash Hash

// Event is one vertex of a replica's local DAG.
type Event struct {
	Creator      simcore.ReplicaID
	SelfParent   Hash // zeroHash if this is the creator's first event
	HasSelfParent bool
	OtherParent  Hash
	HasOtherParent bool
	Timestamp    float64
	Transactions [][]byte
	Signature    string
	Round        int // -1 until assigned
	Consensus    bool
	Witness      bool
	Hash         Hash
}

// computeHash derives the event's hash from its creation inputs,
// never from fields assigned after creation (Round/Consensus/Witness).
func computeHash(creator simcore.ReplicaID, selfParent Hash, hasSelf bool, otherParent Hash, hasOther bool, timestamp float64, txs [][]byte) Hash {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(creator))
	h.Write(buf[:4])
	if hasSelf {
		h.Write(selfParent[:])
	}
	if hasOther {
		h.Write(otherParent[:])
	}
	binary.BigEndian.PutUint64(buf[:], uint64(int64(timestamp*1e9)))
	h.Write(buf[:])
	for _, tx := range txs {
		h.Write(tx)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// NewEvent builds and hashes a fresh event; Round/Consensus/Witness
// are assigned separately once it is inserted into a Graph.
func NewEvent(creator simcore.ReplicaID, selfParent *Hash, otherParent *Hash, timestamp float64, txs [][]byte) Event {
	e := Event{
		Creator:      creator,
		Timestamp:    timestamp,
		Transactions: txs,
		Round:        -1,
	}
	if selfParent != nil {
		e.SelfParent = *selfParent
		e.HasSelfParent = true
	}
	if otherParent != nil {
		e.OtherParent = *otherParent
		e.HasOtherParent = true
	}
	e.Signature = fmt.Sprintf("sig-r%d", creator)
	e.Hash = computeHash(e.Creator, e.SelfParent, e.HasSelfParent, e.OtherParent, e.HasOtherParent, e.Timestamp, e.Transactions)
	e.Signature = fmt.Sprintf("sig-r%d-%s", creator, e.Hash)
	return e
}

// txEqual compares two transaction byte slices for the first-seen
// dedup the block-building step needs.
func txEqual(a, b []byte) bool { return bytes.Equal(a, b) }
