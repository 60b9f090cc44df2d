// Package detect turns one frame into person observations: locate people,
// find the dominant face in each person region, classify its gender, then
// suppress duplicate boxes.
package detect

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/your-org/crowdsense/internal/models"
)

var (
	// ErrNoPersonLocator means no detections are ever possible.
	ErrNoPersonLocator = errors.New("person locator unavailable")
	// ErrEmptyFrame is returned for nil or zero-sized frames.
	ErrEmptyFrame = errors.New("empty frame")
)

// PersonCandidate is a raw person region reported by a PersonLocator, in
// pixel coordinates relative to the frame origin.
type PersonCandidate struct {
	Box        models.Box
	Confidence float64
}

// PersonLocator finds people in a full frame.
type PersonLocator interface {
	LocatePersons(frame image.Image) ([]PersonCandidate, error)
}

// FaceLocator finds face boxes inside a person region, relative to the
// region origin.
type FaceLocator interface {
	LocateFaces(region image.Image) ([]models.Box, error)
}

// GenderClassifier labels a face crop.
type GenderClassifier interface {
	ClassifyGender(face image.Image) (models.Gender, float64, error)
}

// Capabilities bundles the inference backends. Only Persons is required;
// pass untyped nil for anything that failed to load.
type Capabilities struct {
	Persons      PersonLocator
	PrimaryFace  FaceLocator
	FallbackFace FaceLocator
	Gender       GenderClassifier
}

type Config struct {
	PersonThreshold float64 // minimum person confidence
	GenderThreshold float64 // minimum classifier confidence for a Male/Female label
	FacePadding     float64 // fraction of the face size added on each axis
	MinFaceSize     int     // padded face crop must be at least this wide and tall
}

func DefaultConfig() Config {
	return Config{
		PersonThreshold: 0.75,
		GenderThreshold: 0.75,
		FacePadding:     0.20,
		MinFaceSize:     20,
	}
}

// Cascade runs the person → face → gender stages for one frame.
type Cascade struct {
	caps Capabilities
	cfg  Config
}

func NewCascade(caps Capabilities, cfg Config) (*Cascade, error) {
	if caps.Persons == nil {
		return nil, ErrNoPersonLocator
	}
	return &Cascade{caps: caps, cfg: cfg}, nil
}

// Degraded lists the optional stages that are missing. Observations from a
// degraded cascade are labelled Unknown more often, never dropped.
func (c *Cascade) Degraded() []string {
	var missing []string
	if c.caps.PrimaryFace == nil && c.caps.FallbackFace == nil {
		missing = append(missing, "face")
	} else if c.caps.PrimaryFace == nil {
		missing = append(missing, "primary_face")
	}
	if c.caps.Gender == nil {
		missing = append(missing, "gender")
	}
	return missing
}

// Detect returns the raw observations for frame. An error from the person
// locator is returned as is; face and gender failures only downgrade the
// affected observation to Unknown.
func (c *Cascade) Detect(frame image.Image) ([]models.Observation, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	bounds := frame.Bounds()

	persons, err := c.caps.Persons.LocatePersons(frame)
	if err != nil {
		return nil, fmt.Errorf("locate persons: %w", err)
	}

	observations := make([]models.Observation, 0, len(persons))
	for _, p := range persons {
		if p.Confidence < c.cfg.PersonThreshold {
			continue
		}
		box := p.Box.Clamp(bounds.Dx(), bounds.Dy())
		if box.Empty() {
			continue
		}

		obs := models.Observation{Box: box, Gender: models.GenderUnknown, Confidence: p.Confidence}
		gender, conf := c.classifyRegion(Crop(frame, box), box.W, box.H)
		if gender.Known() {
			obs.Gender = gender
			obs.Confidence = conf
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

func (c *Cascade) classifyRegion(region image.Image, w, h int) (models.Gender, float64) {
	face, ok := largest(c.locateFaces(region))
	if !ok {
		return models.GenderUnknown, 0
	}

	padX := int(float64(face.W) * c.cfg.FacePadding)
	padY := int(float64(face.H) * c.cfg.FacePadding)
	padded := models.Box{
		X: face.X - padX,
		Y: face.Y - padY,
		W: face.W + 2*padX,
		H: face.H + 2*padY,
	}.Clamp(w, h)
	if padded.W < c.cfg.MinFaceSize || padded.H < c.cfg.MinFaceSize {
		return models.GenderUnknown, 0
	}

	if c.caps.Gender == nil {
		return models.GenderUnknown, 0
	}
	gender, conf, err := c.caps.Gender.ClassifyGender(Crop(region, padded))
	if err != nil {
		slog.Debug("classify gender", "error", err)
		return models.GenderUnknown, 0
	}
	if !gender.Known() || conf < c.cfg.GenderThreshold {
		return models.GenderUnknown, 0
	}
	return gender, conf
}

func (c *Cascade) locateFaces(region image.Image) []models.Box {
	if c.caps.PrimaryFace != nil {
		faces, err := c.caps.PrimaryFace.LocateFaces(region)
		if err == nil {
			return faces
		}
		slog.Debug("primary face detector failed", "error", err)
	}
	if c.caps.FallbackFace != nil {
		faces, err := c.caps.FallbackFace.LocateFaces(region)
		if err == nil {
			return faces
		}
		slog.Debug("fallback face detector failed", "error", err)
	}
	return nil
}

// largest picks the face with the biggest area; the first one wins ties.
func largest(faces []models.Box) (models.Box, bool) {
	var best models.Box
	found := false
	for _, f := range faces {
		if f.Empty() {
			continue
		}
		if !found || f.Area() > best.Area() {
			best = f
			found = true
		}
	}
	return best, found
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img covered by box, where box is relative to
// img.Bounds().Min. The result shares pixels with img when possible.
func Crop(img image.Image, box models.Box) image.Image {
	origin := img.Bounds().Min
	r := image.Rect(origin.X+box.X, origin.Y+box.Y, origin.X+box.X+box.W, origin.Y+box.Y+box.H).
		Intersect(img.Bounds())

	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
