package vision

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/crowdsense/internal/models"
)

// GenderClassifier labels face crops using the InsightFace genderage model.
type GenderClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

// NewGenderClassifier loads the gender/age ONNX model.
func NewGenderClassifier(modelPath string, opts *ort.SessionOptions) (*GenderClassifier, error) {
	// InsightFace genderage model expects 96x96 input
	inputW, inputH := 96, 96

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Output: [1, 3]: [female_logit, male_logit, age/100]
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"data"},
		[]string{"fc1"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create gender session: %w", err)
	}

	return &GenderClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// ClassifyGender returns Male or Female with the softmax probability of the
// winning class.
func (c *GenderClassifier) ClassifyGender(face image.Image) (models.Gender, float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer observeStage("gender", time.Now())

	toCHW(c.inputTensor.GetData(), face, c.inputW, c.inputH, genderAgeRaw)
	if err := c.session.Run(); err != nil {
		return models.GenderUnknown, 0, fmt.Errorf("run gender: %w", err)
	}

	data := c.outputTensor.GetData()
	if len(data) < 2 {
		return models.GenderUnknown, 0, fmt.Errorf("unexpected output size: %d", len(data))
	}
	g, p := genderFromLogits(data[0], data[1])
	return g, p, nil
}

func genderFromLogits(female, male float32) (models.Gender, float64) {
	hi := math.Max(float64(female), float64(male))
	ef := math.Exp(float64(female) - hi)
	em := math.Exp(float64(male) - hi)
	pm := em / (ef + em)

	if pm > 0.5 {
		return models.GenderMale, pm
	}
	return models.GenderFemale, 1 - pm
}

func (c *GenderClassifier) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
}
