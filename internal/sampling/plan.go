// Package sampling computes the timestamps at which keyframes are taken.
package sampling

import "math"

const (
	// TargetSpacing is the desired distance between samples in seconds.
	TargetSpacing = 7.5
	// MinFrames is the fewest samples a plan contains.
	MinFrames = 1
	// MaxFrames caps the number of samples, and so the number of frame-grab
	// invocations, regardless of duration.
	MaxFrames = 8
)

// Plan is an ordered set of sample timestamps over a duration.
type Plan struct {
	// FrameCount is the number of samples, in [MinFrames, MaxFrames].
	FrameCount int
	// Interval is the spacing between consecutive samples in seconds.
	Interval float64
	// Timestamps are the sample offsets in seconds, strictly increasing from 0.
	Timestamps []float64
}

// New computes the sample plan for a duration in seconds.
// Negative and non-finite durations are treated as zero.
func New(duration float64) Plan {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}

	// Clamp before converting so very large durations cannot overflow int.
	count := int(min(max(math.Round(duration/TargetSpacing), MinFrames), MaxFrames))

	interval := duration / float64(count)
	timestamps := make([]float64, count)
	for i := range timestamps {
		timestamps[i] = float64(i) * interval
	}

	return Plan{
		FrameCount: count,
		Interval:   interval,
		Timestamps: timestamps,
	}
}
