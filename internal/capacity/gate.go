// Package capacity holds the admission policy for capacity-bounded stages.
package capacity

// Admit reports whether one more ticket may enter a stage holding current
// tickets with the given limit. The count must be read in the same
// transaction as the write that follows.
func Admit(current, limit int) bool {
	return current < limit
}

// Available returns how many tickets the stage can still take, never negative.
func Available(current, limit int) int {
	if current >= limit {
		return 0
	}
	return limit - current
}

// Percentage is the display occupancy, capped at 100. A non-positive limit
// has no meaningful percentage and yields 0.
func Percentage(current, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	pct := float64(current) / float64(limit) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
