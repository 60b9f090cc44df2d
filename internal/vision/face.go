package vision

import (
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/crowdsense/internal/models"
)

// faceDetection is one decoded RetinaFace candidate in region pixels.
type faceDetection struct {
	box        [4]float32 // x1, y1, x2, y2
	confidence float32
}

// FaceDetector runs RetinaFace face detection using ONNX Runtime.
type FaceDetector struct {
	mu            sync.Mutex
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	nmsThreshold  float32
	inputW        int
	inputH        int
}

// stride configuration for RetinaFace det_10g
var strides = []int{8, 16, 32}

// anchorsPerStride is the number of anchors per pixel at each stride
const anchorsPerStride = 2

// NewFaceDetector loads the RetinaFace ONNX model.
// opts may be nil (ORT defaults) or a pre-configured *ort.SessionOptions.
func NewFaceDetector(modelPath string, threshold, nmsThreshold float32, opts *ort.SessionOptions) (*FaceDetector, error) {
	inputW, inputH := 640, 640

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// det_10g output shapes (NO batch dimension):
	// scores:    [12800,1] [3200,1] [800,1]     -> stride 8, 16, 32
	// bboxes:    [12800,4] [3200,4] [800,4]     -> stride 8, 16, 32
	// landmarks: [12800,10] [3200,10] [800,10]  -> bound but unused
	type outputDef struct {
		name  string
		shape ort.Shape
	}

	outputs := []outputDef{
		{"448", ort.NewShape(12800, 1)},
		{"471", ort.NewShape(3200, 1)},
		{"494", ort.NewShape(800, 1)},
		{"451", ort.NewShape(12800, 4)},
		{"474", ort.NewShape(3200, 4)},
		{"497", ort.NewShape(800, 4)},
		{"454", ort.NewShape(12800, 10)},
		{"477", ort.NewShape(3200, 10)},
		{"500", ort.NewShape(800, 10)},
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], len(outputs))
	outputValues := make([]ort.Value, len(outputs))

	for i, def := range outputs {
		outputNames[i] = def.name
		t, err := ort.NewEmptyTensor[float32](def.shape)
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %d (%s): %w", i, def.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create face session: %w", err)
	}

	return &FaceDetector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		nmsThreshold:  nmsThreshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// LocateFaces returns face boxes relative to the region origin.
func (d *FaceDetector) LocateFaces(region image.Image) ([]models.Box, error) {
	b := region.Bounds()

	d.mu.Lock()
	defer d.mu.Unlock()

	defer observeStage("face", time.Now())

	toCHW(d.inputTensor.GetData(), region, d.inputW, d.inputH, retinaNorm)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run face detection: %w", err)
	}

	detections := nms(d.parseDetections(b.Dx(), b.Dy()), d.nmsThreshold)

	boxes := make([]models.Box, 0, len(detections))
	for _, det := range detections {
		x1, y1 := int(det.box[0]), int(det.box[1])
		x2, y2 := int(det.box[2]), int(det.box[3])
		if x2 > x1 && y2 > y1 {
			boxes = append(boxes, models.Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1})
		}
	}
	return boxes, nil
}

// parseDetections decodes anchor-based RetinaFace outputs at strides 8, 16, 32.
func (d *FaceDetector) parseDetections(origW, origH int) []faceDetection {
	scores := make([][]float32, len(strides))
	bboxes := make([][]float32, len(strides))
	for si := range strides {
		scores[si] = d.outputTensors[si].GetData()
		bboxes[si] = d.outputTensors[si+3].GetData()
	}
	return decodeRetina(scores, bboxes, d.inputW, d.inputH, origW, origH, d.threshold)
}

func decodeRetina(scores, bboxes [][]float32, inputW, inputH, origW, origH int, threshold float32) []faceDetection {
	var detections []faceDetection

	scaleW := float32(origW) / float32(inputW)
	scaleH := float32(origH) / float32(inputH)

	for si, stride := range strides {
		fmW := inputW / stride
		fmH := inputH / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					if score := scores[si][idx]; score >= threshold {
						anchorX := float32(cx) * st
						anchorY := float32(cy) * st
						bb := bboxes[si][idx*4 : idx*4+4]

						detections = append(detections, faceDetection{
							box: [4]float32{
								clampF((anchorX-bb[0]*st)*scaleW, 0, float32(origW)),
								clampF((anchorY-bb[1]*st)*scaleH, 0, float32(origH)),
								clampF((anchorX+bb[2]*st)*scaleW, 0, float32(origW)),
								clampF((anchorY+bb[3]*st)*scaleH, 0, float32(origH)),
							},
							confidence: score,
						})
					}
					idx++
				}
			}
		}
	}

	return detections
}

func (d *FaceDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// nms performs Non-Maximum Suppression on detections.
func nms(detections []faceDetection, iouThreshold float32) []faceDetection {
	if len(detections) == 0 {
		return detections
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].confidence > detections[j].confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if keep[j] && iou(detections[i].box, detections[j].box) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []faceDetection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	intersection := max(0, x2-x1) * max(0, y2-y1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}
