package babble

// Config holds the babble.* protocol-specific subtable (spec §6.1).
type Config struct {
	// SuspendLimit: a replica suspends once its pending-event count
	// exceeds SuspendLimit * N (spec §4.5 suspension).
	SuspendLimit float64
	// SyncInterval is the virtual-time period between gossip rounds.
	SyncInterval float64
	// HeartbeatInterval is the virtual-time period between
	// heartbeat-only event creation when no gossip is due.
	HeartbeatInterval float64
	// SyncResponseLimit caps how many events a single SyncResponse
	// carries.
	SyncResponseLimit int
	// DecisionThreshold: is_decided() once blocks produced exceeds
	// this count (spec §4.5/§9, kept configurable per the open
	// question's recommendation, defaulting to the spec's literal 3).
	DecisionThreshold int
}

// DefaultConfig returns the calibration spec §4.5 describes.
func DefaultConfig() Config {
	return Config{
		SuspendLimit:      10,
		SyncInterval:      1,
		HeartbeatInterval: 2,
		SyncResponseLimit: 64,
		DecisionThreshold: 3,
	}
}

// configFromExtra reads a babble.Config out of a Replica.Config's
// free-form Extra subtable, falling back to defaults for any field
// that's absent -- mirrors how the kernel passes protocol-specific
// keys straight through to the constructor (spec §6.1). Numeric
// fields are read loosely: yaml.v3 decodes a plain integer literal
// into interface{} as int, BurntSushi/toml as int64, and either can
// hand back float64 for a literal with a decimal point, so every
// field accepts all three shapes rather than assuming one decoder.
func configFromExtra(extra map[string]interface{}) Config {
	cfg := DefaultConfig()
	if extra == nil {
		return cfg
	}
	if v, ok := numeric(extra["suspend_limit"]); ok {
		cfg.SuspendLimit = v
	}
	if v, ok := numeric(extra["sync_interval"]); ok {
		cfg.SyncInterval = v
	}
	if v, ok := numeric(extra["heartbeat_interval"]); ok {
		cfg.HeartbeatInterval = v
	}
	if v, ok := numeric(extra["sync_response_limit"]); ok {
		cfg.SyncResponseLimit = int(v)
	}
	if v, ok := numeric(extra["decision_threshold"]); ok {
		cfg.DecisionThreshold = int(v)
	}
	return cfg
}

// numeric coerces the handful of shapes a YAML/TOML decoder hands back
// for a bare number into a float64, so callers don't have to guess
// which concrete type their chosen decoder produced.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
