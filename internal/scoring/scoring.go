// Package scoring turns a single answer into leaderboard points.
package scoring

import (
	"math"
	"time"
)

const (
	DefaultBasePoints = 100
	DefaultFloor      = 0.6
)

// Config holds the scoring parameters of one room.
type Config struct {
	BasePoints int
	// Floor is the share of BasePoints a correct answer always earns.
	Floor   float64
	MaxTime time.Duration
}

// DefaultConfig returns the standard parameters for a quiz of the given duration.
func DefaultConfig(maxTime time.Duration) Config {
	return Config{BasePoints: DefaultBasePoints, Floor: DefaultFloor, MaxTime: maxTime}
}

// Compute returns the points for one answer. Wrong answers earn nothing; correct ones earn
// the floor plus a linear speed bonus that reaches zero at MaxTime.
func Compute(correct bool, timeTakenMs int64, cfg Config) int {
	if !correct {
		return 0
	}
	if timeTakenMs < 0 {
		timeTakenMs = 0
	}

	decay := 0.0
	if maxMs := cfg.MaxTime.Milliseconds(); maxMs > 0 {
		decay = clamp(1-float64(timeTakenMs)/float64(maxMs), 0, 1)
	}
	floor := clamp(cfg.Floor, 0, 1)
	return int(math.Round(float64(cfg.BasePoints) * (floor + (1-floor)*decay)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
