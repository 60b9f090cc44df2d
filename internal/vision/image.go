package vision

import (
	"image"
)

// normalization is applied per channel as (pixel - mean) / std.
type normalization struct {
	mean [3]float32
	std  [3]float32
}

var (
	retinaNorm   = normalization{mean: [3]float32{127.5, 127.5, 127.5}, std: [3]float32{128, 128, 128}}
	ssdNorm      = normalization{mean: [3]float32{127.5, 127.5, 127.5}, std: [3]float32{127.5, 127.5, 127.5}}
	genderAgeRaw = normalization{mean: [3]float32{0, 0, 0}, std: [3]float32{1, 1, 1}}
)

// toCHW resizes img and writes it into dst in CHW layout. dst must hold
// 3*targetW*targetH values.
func toCHW(dst []float32, img image.Image, targetW, targetH int, n normalization) {
	resized := resizeImage(img, targetW, targetH)
	plane := targetW * targetH

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()

			idx := y*targetW + x
			dst[0*plane+idx] = (float32(r>>8) - n.mean[0]) / n.std[0]
			dst[1*plane+idx] = (float32(g>>8) - n.mean[1]) / n.std[1]
			dst[2*plane+idx] = (float32(b>>8) - n.mean[2]) / n.std[2]
		}
	}
}

// resizeImage performs nearest-neighbour resize (fast, good enough for ML input).
func resizeImage(img image.Image, targetW, targetH int) *image.RGBA {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	if srcW == 0 || srcH == 0 {
		return dst
	}

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}

	return dst
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
