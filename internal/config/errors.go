package config

import "errors"

// ErrInvalidConfig is the sentinel wrapped into every aggregated
// validation error (spec §7). Callers match it with errors.Is.
var ErrInvalidConfig = errors.New("config: invalid configuration")
