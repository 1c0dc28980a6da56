// Package replica defines the contract every consensus protocol
// module implements, and the callables the kernel injects into it.
// Individual protocols (PBFT, HotStuff, LibraBFT, Algorand, async-BA,
// Hashgraph/Babble) are replaceable modules implementing this
// contract; this package owns only the interface, never a protocol.
package replica

import "github.com/jabolina/bft-sim/pkg/simcore"

// SendFunc enqueues an outgoing packet for the current tick. Content
// is passed by value; the transport takes ownership from there.
type SendFunc func(dst simcore.ReplicaID, content interface{})

// RegisterTimerFunc schedules a callback to this replica's own
// OnTimer at current_clock + delay. Timers cannot be cancelled once
// registered (spec §5).
type RegisterTimerFunc func(meta interface{}, delay float64)

// ClockFunc reads the current virtual clock.
type ClockFunc func() float64

// LogFunc is the structured diagnostic sink handed to a replica.
type LogFunc func(level string, fields map[string]interface{}, msg string)

// Callables bundles the four closures the kernel passes into every
// replica constructor (spec §4.4).
type Callables struct {
	Send          SendFunc
	RegisterTimer RegisterTimerFunc
	Clock         ClockFunc
	Log           LogFunc
}

// Config carries the fixed parameters every protocol constructor
// receives, plus a free-form protocol-specific subtable (spec §6.1).
type Config struct {
	ID       simcore.ReplicaID
	N        int
	F        int // floor((N-1)/3) unless the protocol is told otherwise
	Lambda   float64
	Extra    map[string]interface{} // e.g. babble.suspend_limit
}

// Replica is the contract every protocol module implements (spec
// §4.4). The kernel constructs one instance per replica id per run
// and calls OnMessage/OnTimer synchronously from the scheduler's
// single dispatch loop -- a Replica implementation must never spawn
// goroutines of its own or block.
type Replica interface {
	// OnMessage is invoked once per delivered packet addressed to this
	// replica.
	OnMessage(src simcore.ReplicaID, content interface{})

	// OnTimer is invoked when a timer this replica registered fires.
	OnTimer(meta interface{})

	// IsDecided reports whether this replica has reached its first
	// decision; the run controller polls it to measure latency.
	IsDecided() bool

	// Reset returns the replica to a well-defined initial state
	// between runs. Protocols may instead simply be reconstructed
	// per run; Reset exists for protocols that prefer to reuse state.
	Reset()
}

// Constructor builds one replica instance. Every protocol package
// exposes a function with this shape so the run controller can load
// protocols by config tag without an import cycle back to them.
type Constructor func(cfg Config, call Callables) Replica

// DefaultF computes floor((N-1)/3), the standard BFT fault bound.
func DefaultF(n int) int {
	return (n - 1) / 3
}
