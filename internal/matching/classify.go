package matching

// Band is the presentational tier of a score.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

const (
	HighThreshold   = 0.70
	MediumThreshold = 0.50
)

// ClassifyScore bands a score. Lower bounds are inclusive.
func ClassifyScore(score float64) Band {
	switch {
	case score >= HighThreshold:
		return BandHigh
	case score >= MediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}
