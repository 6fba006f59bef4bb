package checkrun

import "time"

// Clamp fixes up completion timestamps: missing or inverted completed_at
// is set to started_at, except a NEUTRAL conclusion, which carries no
// completion time at all (left absent rather than clamped). Spec §4.4
// step 5.
func Clamp(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	for i := range out {
		if out[i].Conclusion == ConclusionNeutral {
			out[i].CompletedAt = time.Time{}
			continue
		}
		if out[i].CompletedAt.IsZero() || out[i].CompletedAt.Before(out[i].StartedAt) {
			out[i].CompletedAt = out[i].StartedAt
		}
	}
	return out
}
