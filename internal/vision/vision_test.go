package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/models"
)

func TestParseSSD(t *testing.T) {
	out := []float32{
		0, 15, 0.9, 0.1, 0.2, 0.5, 0.8, // person
		0, 7, 0.99, 0.1, 0.1, 0.3, 0.3, // car
		0, 15, 0.3, 0.0, 0.0, 0.2, 0.2, // low confidence
		0, 15, 0.8, 0.6, 0.1, 1.4, 1.2, // out of frame, clamped
		0, 15, 0.8, 0.5, 0.5, 0.5, 0.9, // zero width
	}

	got := parseSSD(out, 1000, 500, 0.5)

	require.Len(t, got, 2)
	assert.Equal(t, models.Box{X: 100, Y: 100, W: 400, H: 300}, got[0].Box)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-6)
	assert.Equal(t, models.Box{X: 600, Y: 50, W: 400, H: 450}, got[1].Box)
}

func TestDecodeRetina(t *testing.T) {
	const in = 64
	scores := make([][]float32, len(strides))
	bboxes := make([][]float32, len(strides))
	for si, st := range strides {
		n := (in / st) * (in / st) * anchorsPerStride
		scores[si] = make([]float32, n)
		bboxes[si] = make([]float32, n*4)
	}

	// stride 8, cell (2,1), first anchor: anchor centre (16, 8)
	idx := (1*(in/8) + 2) * anchorsPerStride
	scores[0][idx] = 0.95
	copy(bboxes[0][idx*4:], []float32{1, 1, 2, 3})

	got := decodeRetina(scores, bboxes, in, in, in*2, in, 0.5)

	require.Len(t, got, 1)
	assert.Equal(t, [4]float32{16, 0, 64, 32}, got[0].box)
	assert.InDelta(t, 0.95, got[0].confidence, 1e-6)
}

func TestNMS(t *testing.T) {
	dets := []faceDetection{
		{box: [4]float32{0, 0, 10, 10}, confidence: 0.6},
		{box: [4]float32{1, 1, 11, 11}, confidence: 0.9},
		{box: [4]float32{50, 50, 60, 60}, confidence: 0.7},
	}

	got := nms(dets, 0.4)

	require.Len(t, got, 2)
	assert.Equal(t, float32(0.9), got[0].confidence)
	assert.Equal(t, float32(0.7), got[1].confidence)
	assert.Empty(t, nms(nil, 0.4))
}

func TestGenderFromLogits(t *testing.T) {
	g, p := genderFromLogits(0, 2)
	assert.Equal(t, models.GenderMale, g)
	assert.InDelta(t, 0.8808, p, 1e-3)

	g, p = genderFromLogits(3, -1)
	assert.Equal(t, models.GenderFemale, g)
	assert.InDelta(t, 0.982, p, 1e-3)

	g, p = genderFromLogits(1, 1)
	assert.Equal(t, models.GenderFemale, g)
	assert.InDelta(t, 0.5, p, 1e-9)
}

func TestToCHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 14, 12))
	for y := 10; y < 12; y++ {
		for x := 10; x < 14; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 128, A: 255})
		}
	}

	dst := make([]float32, 3*2*2)
	toCHW(dst, img, 2, 2, ssdNorm)

	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, dst[i], 1e-6)
		assert.InDelta(t, -1.0, dst[4+i], 1e-6)
		assert.InDelta(t, 0.0039, dst[8+i], 1e-3)
	}
}

func TestResizeImage_Empty(t *testing.T) {
	got := resizeImage(image.NewRGBA(image.Rectangle{}), 4, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), got.Bounds())
}
