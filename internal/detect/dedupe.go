package detect

import (
	"sort"

	"github.com/your-org/crowdsense/internal/models"
)

// Deduplicate applies non-maximum suppression: observations below
// scoreThreshold are dropped, then within every group of boxes overlapping by
// more than overlapThreshold (IoU) only the most confident survives.
// The result is ordered by descending confidence; ties keep input order.
func Deduplicate(observations []models.Observation, scoreThreshold, overlapThreshold float64) []models.Observation {
	candidates := make([]models.Observation, 0, len(observations))
	for _, o := range observations {
		if o.Confidence >= scoreThreshold {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return candidates
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	suppressed := make([]bool, len(candidates))
	kept := make([]models.Observation, 0, len(candidates))
	for i := range candidates {
		if suppressed[i] {
			continue
		}
		kept = append(kept, candidates[i])
		for j := i + 1; j < len(candidates); j++ {
			if !suppressed[j] && candidates[i].Box.IoU(candidates[j].Box) > overlapThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
