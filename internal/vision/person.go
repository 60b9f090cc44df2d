package vision

import (
	"fmt"
	"image"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/crowdsense/internal/detect"
	"github.com/your-org/crowdsense/internal/models"
)

const (
	ssdInputSize  = 300
	ssdMaxResults = 100
	ssdRowWidth   = 7 // image_id, label, confidence, x1, y1, x2, y2
	ssdPersonID   = 15
)

// PersonDetector runs a MobileNet-SSD (VOC classes) person detector.
// Sessions are not reentrant; calls are serialised.
type PersonDetector struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	threshold    float32
}

// NewPersonDetector loads the SSD model.
// opts may be nil (ORT defaults) or a pre-configured *ort.SessionOptions.
func NewPersonDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*PersonDetector, error) {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, ssdInputSize, ssdInputSize))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// detection_out: [1, 1, N, 7]
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, ssdMaxResults, ssdRowWidth))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"data"},
		[]string{"detection_out"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create person session: %w", err)
	}

	return &PersonDetector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		threshold:    threshold,
	}, nil
}

// LocatePersons returns person boxes in frame coordinates.
func (d *PersonDetector) LocatePersons(frame image.Image) ([]detect.PersonCandidate, error) {
	b := frame.Bounds()

	d.mu.Lock()
	defer d.mu.Unlock()

	defer observeStage("person", time.Now())

	toCHW(d.inputTensor.GetData(), frame, ssdInputSize, ssdInputSize, ssdNorm)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run person detection: %w", err)
	}

	return parseSSD(d.outputTensor.GetData(), b.Dx(), b.Dy(), d.threshold), nil
}

// parseSSD decodes detection_out rows. Coordinates are normalised [0,1].
func parseSSD(out []float32, w, h int, threshold float32) []detect.PersonCandidate {
	var persons []detect.PersonCandidate
	for i := 0; i+ssdRowWidth <= len(out); i += ssdRowWidth {
		row := out[i : i+ssdRowWidth]
		if int(row[1]) != ssdPersonID || row[2] < threshold {
			continue
		}

		x1 := int(clampF(row[3], 0, 1) * float32(w))
		y1 := int(clampF(row[4], 0, 1) * float32(h))
		x2 := int(clampF(row[5], 0, 1) * float32(w))
		y2 := int(clampF(row[6], 0, 1) * float32(h))
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		persons = append(persons, detect.PersonCandidate{
			Box:        models.Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1},
			Confidence: float64(row[2]),
		})
	}
	return persons
}

func (d *PersonDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}
