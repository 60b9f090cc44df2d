// Package haar wraps an OpenCV Haar cascade as the fallback face locator.
package haar

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/your-org/crowdsense/internal/models"
	"github.com/your-org/crowdsense/internal/observability"
)

// DefaultCascadeFile ships with OpenCV under data/haarcascades.
const DefaultCascadeFile = "haarcascade_frontalface_default.xml"

// Detector finds faces with a Haar cascade. CascadeClassifier is not safe for
// concurrent use, so calls are serialised.
type Detector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	minSize    image.Point
}

// New loads the cascade XML at path. minFace is the smallest face side in
// pixels the cascade will report.
func New(path string, minFace int) (*Detector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("load haar cascade %s", path)
	}
	return &Detector{
		classifier: classifier,
		minSize:    image.Pt(minFace, minFace),
	}, nil
}

// LocateFaces returns face boxes relative to the region origin.
func (d *Detector) LocateFaces(region image.Image) ([]models.Box, error) {
	if region == nil || region.Bounds().Empty() {
		return nil, errors.New("empty region")
	}
	defer func(start time.Time) {
		observability.InferenceDuration.WithLabelValues("face_haar").Observe(time.Since(start).Seconds())
	}(time.Now())

	rgb, err := gocv.ImageToMatRGB(region)
	if err != nil {
		return nil, fmt.Errorf("convert region: %w", err)
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(gray, 1.1, 5, 0, d.minSize, image.Point{})
	d.mu.Unlock()

	boxes := make([]models.Box, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, models.Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()})
	}
	return boxes, nil
}

func (d *Detector) Close() error {
	return d.classifier.Close()
}
