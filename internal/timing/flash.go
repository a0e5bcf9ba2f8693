package timing

import (
	"math"
	"math/rand/v2"
)

// Flash is one image window in a flash reel. Asset is an index into the
// image pool handed to ScheduleFlashes.
type Flash struct {
	Asset int
	Start float64
	End   float64
}

// Duration returns the window length.
func (f Flash) Duration() float64 { return f.End - f.Start }

// FlashCount returns how many windows a reel of total seconds needs.
func FlashCount(total float64, cfg Config) int {
	if total <= 0 || cfg.FlashSeconds <= 0 {
		return 0
	}
	// Tolerate float noise so 6.0/0.5 is 12 windows, not 13.
	needed := int(math.Ceil(total/cfg.FlashSeconds - 1e-9))
	needed = max(needed, 1)
	if cfg.ImagesPerReel > 0 && cfg.ImagesPerReel < needed {
		return cfg.ImagesPerReel
	}
	return needed
}

// ScheduleFlashes tiles [0, total) with fixed-length image windows. When the
// configured image count runs out early, the last image holds to the end.
func ScheduleFlashes(total float64, poolSize int, cfg Config, rng *rand.Rand) ([]Flash, error) {
	const op = "schedule_flashes"
	if total <= 0 {
		return nil, errorf(op, "total duration must be positive, got %.3f", total)
	}
	if cfg.FlashSeconds <= 0 {
		return nil, errorf(op, "flash duration must be positive")
	}
	if poolSize <= 0 {
		return nil, errorf(op, "image pool is empty")
	}
	count := FlashCount(total, cfg)
	order := ShuffleOrder(poolSize, count, rng)

	flashes := make([]Flash, count)
	for i := range count {
		start := float64(i) * cfg.FlashSeconds
		end := start + cfg.FlashSeconds
		if i == count-1 {
			end = total
		}
		flashes[i] = Flash{Asset: order[i], Start: start, End: end}
	}
	return flashes, nil
}

// ShuffleOrder returns count indexes into a pool of poolSize. Indexes do not
// repeat until the pool is exhausted; after that the pool is reshuffled and
// the first pick of a new pass never equals the last pick of the previous one.
func ShuffleOrder(poolSize, count int, rng *rand.Rand) []int {
	if poolSize <= 0 || count <= 0 {
		return nil
	}
	out := make([]int, 0, count)
	for len(out) < count {
		pass := rng.Perm(poolSize)
		if len(out) > 0 && poolSize > 1 && pass[0] == out[len(out)-1] {
			swap := 1 + rng.IntN(poolSize-1)
			pass[0], pass[swap] = pass[swap], pass[0]
		}
		out = append(out, pass...)
	}
	return out[:count]
}

// Build aligns the transcript and, when poolSize is positive, schedules image
// flashes over the same total.
func Build(t Transcript, audioDuration float64, poolSize int, cfg Config, rng *rand.Rand) (Plan, error) {
	plan, err := Align(t, audioDuration, cfg)
	if err != nil {
		return Plan{}, err
	}
	if poolSize > 0 {
		flashes, err := ScheduleFlashes(plan.Total, poolSize, cfg, rng)
		if err != nil {
			return Plan{}, err
		}
		plan.Flashes = flashes
	}
	return plan, nil
}
