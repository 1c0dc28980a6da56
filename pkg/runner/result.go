package runner

import "math"

// RunResult is the per-run outcome spec §6.5 defines: latency as the
// virtual time at which the first correct replica decided (set only
// when every correct replica decides before the ceiling), the
// transport's delivered-message count, and whether the run succeeded
// before its ceiling.
type RunResult struct {
	Latency       float64
	TotalMsgCount int
	DroppedCount  int
	Success       bool
}

// undefinedLatency is what a failed run's Latency field holds (spec
// §7: "latency = undefined" for a run that never reaches decision).
var undefinedLatency = math.NaN()

// Aggregate summarizes a batch of RunResults sharing one (attacker,
// protocol, N, f) configuration (spec §6.5).
type Aggregate struct {
	Attacker       string
	Protocol       string
	N              int
	F              int
	Runs           int
	Successes      int
	MeanLatency    float64
	MeanDelivered  float64
	SuccessRate    float64
}

// Summarize computes an Aggregate over one configuration's repeated
// runs. Failed runs contribute to MeanDelivered/SuccessRate but are
// excluded from MeanLatency (their latency is undefined).
func Summarize(attacker, protocol string, n, f int, results []RunResult) Aggregate {
	agg := Aggregate{Attacker: attacker, Protocol: protocol, N: n, F: f, Runs: len(results)}
	var latencySum float64
	var deliveredSum float64
	latencyCount := 0
	for _, r := range results {
		deliveredSum += float64(r.TotalMsgCount)
		if r.Success {
			agg.Successes++
			latencySum += r.Latency
			latencyCount++
		}
	}
	if len(results) > 0 {
		agg.MeanDelivered = deliveredSum / float64(len(results))
		agg.SuccessRate = float64(agg.Successes) / float64(len(results))
	}
	if latencyCount > 0 {
		agg.MeanLatency = latencySum / float64(latencyCount)
	} else {
		agg.MeanLatency = undefinedLatency
	}
	return agg
}
