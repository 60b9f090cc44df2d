package models

import (
	"math"
	"strings"
)

// Gender is the perceived gender label attached to an observation or track.
type Gender string

const (
	GenderUnknown Gender = "Unknown"
	GenderMale    Gender = "Male"
	GenderFemale  Gender = "Female"
)

// ParseGender maps a classifier/API label onto a Gender. Anything unrecognized is Unknown.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// Known reports whether the label is Male or Female.
func (g Gender) Known() bool {
	return g == GenderMale || g == GenderFemale
}

// Box is an axis-aligned pixel rectangle: top-left corner plus size.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Area returns w*h, or 0 for degenerate boxes.
func (b Box) Area() int {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.Area() == 0
}

// Center returns the geometric centre of the box.
func (b Box) Center() Point {
	return Point{X: float64(b.X) + float64(b.W)/2, Y: float64(b.Y) + float64(b.H)/2}
}

// IoU returns the intersection-over-union overlap ratio of two boxes.
func (b Box) IoU(o Box) float64 {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X+b.W, o.X+o.W)
	y2 := min(b.Y+b.H, o.Y+o.H)

	inter := max(0, x2-x1) * max(0, y2-y1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Clamp restricts the box to the rectangle [0,w) x [0,h).
func (b Box) Clamp(w, h int) Box {
	x1 := clampInt(b.X, 0, w)
	y1 := clampInt(b.Y, 0, h)
	x2 := clampInt(b.X+b.W, 0, w)
	y2 := clampInt(b.Y+b.H, 0, h)
	return Box{X: x1, Y: y1, W: max(0, x2-x1), H: max(0, y2-y1)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Point is a centroid in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Observation is one person candidate for a single frame.
type Observation struct {
	Box        Box     `json:"box"`
	Gender     Gender  `json:"gender"`
	Confidence float64 `json:"confidence"`
}

// Track is a persisted identity across frames.
type Track struct {
	ID              int64    `json:"id"`
	Centroid        Point    `json:"centroid"`
	Box             Box      `json:"box"`
	Gender          Gender   `json:"gender"`
	GenderHistory   []Gender `json:"gender_history"`
	Confidence      float64  `json:"confidence"`
	Hits            int      `json:"hits"`
	FramesSinceSeen int      `json:"frames_since_seen"`
}

// CrowdCount is the per-frame headcount over confirmed tracks.
type CrowdCount struct {
	Total  int `json:"total"`
	Male   int `json:"male"`
	Female int `json:"female"`
}
