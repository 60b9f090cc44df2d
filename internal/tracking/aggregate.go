package tracking

import "github.com/your-org/crowdsense/internal/models"

// DefaultConfirmHits is the number of matches before a track is counted.
const DefaultConfirmHits = 10

// Confirmed filters tracks down to those with at least confirmHits matches.
func Confirmed(tracks []models.Track, confirmHits int) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for _, tr := range tracks {
		if tr.Hits >= confirmHits {
			out = append(out, tr)
		}
	}
	return out
}

// Aggregate counts confirmed tracks by gender. Confirmed tracks still labelled
// Unknown are left out of every count, including the total.
func Aggregate(tracks []models.Track, confirmHits int) models.CrowdCount {
	var c models.CrowdCount
	for _, tr := range tracks {
		if tr.Hits < confirmHits {
			continue
		}
		switch tr.Gender {
		case models.GenderMale:
			c.Male++
		case models.GenderFemale:
			c.Female++
		}
	}
	c.Total = c.Male + c.Female
	return c
}
