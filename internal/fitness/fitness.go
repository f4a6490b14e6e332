package fitness

// #region counters

// Counters are the unit counters a projector exposes for its current placement.
type Counters struct {
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
	Buildable int `json:"buildable"`
}

// Aligned reports whether no work remains. This is the authoritative success condition.
func (c Counters) Aligned() bool {
	return c.Remaining == 0
}

// #endregion counters

// #region score

// weldableWeight is the share given to exposed buildable surface when it leads completion.
const weldableWeight = 0.2

// Score folds the counters into a fitness in [0, 1]. Remaining == 0 always scores 1;
// an empty projection (Total == 0) with work remaining scores 0.
func Score(c Counters) float64 {
	if c.Remaining == 0 {
		return 1.0
	}
	if c.Total <= 0 {
		return 0
	}
	total := float64(c.Total)
	complete := (total - float64(c.Remaining)) / total
	weldable := 1 - (total-float64(c.Buildable))/total

	var score float64
	if weldable > complete {
		score = weldableWeight*weldable + (1-weldableWeight)*complete
	} else {
		score = complete
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion score
