package simcore

import "container/heap"

// Kind distinguishes the three event kinds the scheduler carries.
// Timer callbacks are never identified by string name (spec §9
// design note): each owner (replica or attacker) interprets its own
// opaque Payload after the scheduler hands the event back.
type Kind int

const (
	// MessageDelivery carries a Packet to be handed to its destination
	// replica's on_message.
	MessageDelivery Kind = iota
	// ReplicaTimer carries a replica-registered timer's opaque payload,
	// to be handed to that replica's on_timer.
	ReplicaTimer
	// AttackerTimer carries an attacker-registered timer's opaque
	// payload, to be handed to the attacker's on_timer.
	AttackerTimer
)

func (k Kind) String() string {
	switch k {
	case MessageDelivery:
		return "MessageDelivery"
	case ReplicaTimer:
		return "ReplicaTimer"
	case AttackerTimer:
		return "AttackerTimer"
	default:
		return "Unknown"
	}
}

// Event is one entry in the scheduler's queue: a triggered-time, a
// kind, an owner (who receives the callback for timers; ignored for
// deliveries, whose destination lives in the packet), and an opaque
// payload.
type Event struct {
	Time    float64
	Kind    Kind
	Owner   ReplicaID // only meaningful for ReplicaTimer
	Packet  interface{}
	Payload interface{}

	seq int // insertion sequence, assigned by the scheduler
}

// eventHeap is a container/heap.Interface ordered by (Time, seq), the
// deterministic tiebreak spec §4.1 requires.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

var _ heap.Interface = (*eventHeap)(nil)
