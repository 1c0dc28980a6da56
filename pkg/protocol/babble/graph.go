package babble

import (
	"sort"

	"github.com/jabolina/bft-sim/pkg/simcore"
)

// Block is an ordered bundle of committed event hashes plus the union
// of their transactions, produced once a round is closed (spec §4.5).
type Block struct {
	Index        int
	Round        int
	Events       []Hash
	Transactions [][]byte
	Hash         Hash
	Final        bool
	Signatures   map[simcore.ReplicaID]bool
}

// Graph is a single replica's view of the Hashgraph DAG: a map of
// hash to event plus per-creator bookkeeping for round assignment,
// witness sets, and gossip.
type Graph struct {
	events map[Hash]*Event

	// byCreator holds each creator's own event chain in creation
	// order, indexed by "height" (how many events from that creator
	// this replica knows about); used for both round assignment
	// lookups and the gossip known-tip exchange.
	byCreator map[simcore.ReplicaID][]Hash

	heads map[simcore.ReplicaID]Hash

	witnesses map[int][]Hash // round -> witness hashes

	eventsByRound map[int][]Hash

	creatorRoundSeen map[simcore.ReplicaID]map[int]bool

	maxRound        int
	lastClosedRound int // rounds <= this have already produced their block (or been suppressed)

	blocks []Block
}

// NewGraph builds an empty graph.
func NewGraph() *Graph {
	return &Graph{
		events:           make(map[Hash]*Event),
		byCreator:        make(map[simcore.ReplicaID][]Hash),
		heads:            make(map[simcore.ReplicaID]Hash),
		witnesses:        make(map[int][]Hash),
		eventsByRound:    make(map[int][]Hash),
		creatorRoundSeen: make(map[simcore.ReplicaID]map[int]bool),
		lastClosedRound:  -1,
	}
}

// Has reports whether the graph already knows about this hash.
func (g *Graph) Has(h Hash) bool {
	_, ok := g.events[h]
	return ok
}

// Get returns the event for h, if known.
func (g *Graph) Get(h Hash) (Event, bool) {
	e, ok := g.events[h]
	if !ok {
		return Event{}, false
	}
	return *e, true
}

// Head returns the creator's most recent known event, if any.
func (g *Graph) Head(creator simcore.ReplicaID) (Hash, bool) {
	h, ok := g.heads[creator]
	return h, ok
}

// Height reports how many events from creator this graph knows about,
// used to build and answer gossip known-tip maps.
func (g *Graph) Height(creator simcore.ReplicaID) int {
	return len(g.byCreator[creator])
}

// EventsFrom returns up to limit events this replica knows about from
// creator beyond the given height, in chain order -- the gossip
// response primitive (spec §4.5 gossip sync, capped per response).
func (g *Graph) EventsFrom(creator simcore.ReplicaID, height int, limit int) []Event {
	chain := g.byCreator[creator]
	if height < 0 {
		height = 0
	}
	if height >= len(chain) {
		return nil
	}
	end := len(chain)
	if limit > 0 && height+limit < end {
		end = height + limit
	}
	out := make([]Event, 0, end-height)
	for _, h := range chain[height:end] {
		out = append(out, *g.events[h])
	}
	return out
}

// Insert adds e to the graph, assigning round and witness flag (spec
// §4.5 round assignment). It returns the stored, fully-assigned copy
// and true, or e unchanged and false if an event with e's hash was
// already known (a no-op in that case). Insert never overwrites an
// existing event. Parents need not be present: a parent this graph
// does not know contributes nothing to the round, and the event is
// inserted anyway.
func (g *Graph) Insert(e Event) (Event, bool) {
	if g.Has(e.Hash) {
		return e, false
	}

	round := 0
	if e.HasSelfParent {
		if p, ok := g.events[e.SelfParent]; ok && p.Round+1 > round {
			round = p.Round + 1
		}
	}
	if e.HasOtherParent {
		if p, ok := g.events[e.OtherParent]; ok && p.Round+1 > round {
			round = p.Round + 1
		}
	}
	e.Round = round

	seen := g.creatorRoundSeen[e.Creator]
	if seen == nil {
		seen = make(map[int]bool)
		g.creatorRoundSeen[e.Creator] = seen
	}
	if !seen[round] {
		e.Witness = true
		seen[round] = true
		g.witnesses[round] = append(g.witnesses[round], e.Hash)
	}

	stored := e
	g.events[e.Hash] = &stored
	g.byCreator[e.Creator] = append(g.byCreator[e.Creator], e.Hash)
	g.heads[e.Creator] = e.Hash
	g.eventsByRound[round] = append(g.eventsByRound[round], e.Hash)
	if round > g.maxRound {
		g.maxRound = round
	}
	return stored, true
}

// PendingCount returns how many known events are not yet marked
// consensus, the quantity the suspension rule (spec §4.5) watches.
func (g *Graph) PendingCount() int {
	n := 0
	for _, e := range g.events {
		if !e.Consensus {
			n++
		}
	}
	return n
}

// CloseRounds runs the simplified consensus rule (spec §4.5, and the
// §9 open-question note preserving it rather than implementing real
// virtual voting): any round at least 2 behind the current max round
// is closed -- its events are marked consensus and, unless the round
// produced no events (suppressed, spec's "empty non-genesis blocks
// are suppressed"), a block is appended. Returns the blocks produced
// by this call, in round order.
func (g *Graph) CloseRounds() []Block {
	var produced []Block
	for r := g.lastClosedRound + 1; r <= g.maxRound-2; r++ {
		hashes := append([]Hash(nil), g.eventsByRound[r]...)
		sort.Slice(hashes, func(i, j int) bool {
			return string(hashes[i][:]) < string(hashes[j][:])
		})
		for _, h := range hashes {
			g.events[h].Consensus = true
		}
		g.lastClosedRound = r
		if len(hashes) == 0 && r > 0 {
			continue // suppressed empty block
		}
		block := buildBlock(len(g.blocks), r, hashes, g.events)
		g.blocks = append(g.blocks, block)
		produced = append(produced, block)
	}
	return produced
}

// buildBlock de-duplicates the committed events' transactions
// preserving first-seen order (spec §4.5) and hashes the block.
func buildBlock(index int, round int, events []Hash, store map[Hash]*Event) Block {
	var txs [][]byte
	for _, h := range events {
		for _, tx := range store[h].Transactions {
			dup := false
			for _, seen := range txs {
				if txEqual(seen, tx) {
					dup = true
					break
				}
			}
			if !dup {
				txs = append(txs, tx)
			}
		}
	}
	b := Block{
		Index:        index,
		Round:        round,
		Events:       events,
		Transactions: txs,
		Signatures:   make(map[simcore.ReplicaID]bool),
	}
	h := computeHash(simcore.ReplicaID(round), zeroHash, false, zeroHash, false, float64(index), txs)
	b.Hash = h
	return b
}

// Blocks returns every block produced so far by this graph.
func (g *Graph) Blocks() []Block { return g.blocks }

// Block returns the block at index, if produced.
func (g *Graph) Block(index int) (Block, bool) {
	if index < 0 || index >= len(g.blocks) {
		return Block{}, false
	}
	return g.blocks[index], true
}

// BlockIndexByHash finds the local index of the block matching hash,
// if this replica has produced it. Correct replicas that close the
// same round from the same (eventually-converged) event set derive
// the same hash at the same local index (buildBlock's index argument
// is the producer's own blocks-slice length, which only advances on
// non-suppressed rounds, in round order), so this is how a peer
// recognizes a BlockSignatureMsg as referring to a block it also holds
// (spec §4.5 block finalization).
func (g *Graph) BlockIndexByHash(h Hash) (int, bool) {
	for i, b := range g.blocks {
		if b.Hash == h {
			return i, true
		}
	}
	return 0, false
}

// MarkSigned records a signature for the block at index; returns the
// updated block and whether it just became final (spec §4.5 block
// finalization on >= 2f+1 distinct signatures including self).
func (g *Graph) MarkSigned(index int, signer simcore.ReplicaID, quorum int) (Block, bool) {
	if index < 0 || index >= len(g.blocks) {
		return Block{}, false
	}
	b := &g.blocks[index]
	if b.Signatures == nil {
		b.Signatures = make(map[simcore.ReplicaID]bool)
	}
	b.Signatures[signer] = true
	justFinalized := false
	if !b.Final && len(b.Signatures) >= quorum {
		b.Final = true
		justFinalized = true
	}
	return *b, justFinalized
}
