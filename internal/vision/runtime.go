// Package vision holds the ONNX Runtime inference adapters behind the
// detection cascade.
package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/crowdsense/internal/config"
	"github.com/your-org/crowdsense/internal/detect"
	"github.com/your-org/crowdsense/internal/observability"
)

// Model file names under the models directory.
const (
	PersonModelFile = "mobilenet_ssd.onnx"
	FaceModelFile   = "det_10g.onnx"
	GenderModelFile = "genderage.onnx"
)

// InitRuntime loads the ONNX Runtime shared library. The returned func tears
// the environment down.
func InitRuntime() (func(), error) {
	ort.SetSharedLibraryPath(libraryPath())
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init onnx runtime: %w", err)
	}
	return func() { _ = ort.DestroyEnvironment() }, nil
}

// libraryPath returns the ONNX Runtime shared library path
// based on the operating system. ONNXRUNTIME_LIB overrides it.
func libraryPath() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

func sessionOptions(useGPU bool) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if !useGPU {
		return opts, nil
	}

	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		slog.Warn("cuda unavailable, using cpu", "error", err)
		return opts, nil
	}
	defer cuda.Destroy()
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		slog.Warn("cuda unavailable, using cpu", "error", err)
	}
	return opts, nil
}

// Models owns the loaded inference sessions.
type Models struct {
	Persons *PersonDetector
	Faces   *FaceDetector
	Gender  *GenderClassifier
}

// Load opens every model found in cfg.ModelsDir. A missing person model is
// fatal; the face and gender models are optional.
func Load(cfg config.VisionConfig) (*Models, error) {
	opts, err := sessionOptions(cfg.UseGPU)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	m := &Models{}

	personPath := filepath.Join(cfg.ModelsDir, PersonModelFile)
	slog.Info("loading person model", "path", personPath)
	m.Persons, err = NewPersonDetector(personPath, float32(cfg.PersonThreshold), opts)
	if err != nil {
		return nil, errors.Join(detect.ErrNoPersonLocator, fmt.Errorf("load person model: %w", err))
	}

	facePath := filepath.Join(cfg.ModelsDir, FaceModelFile)
	slog.Info("loading face model", "path", facePath)
	m.Faces, err = NewFaceDetector(facePath, float32(cfg.FaceThreshold), float32(cfg.NMSThreshold), opts)
	if err != nil {
		slog.Warn("face model unavailable", "path", facePath, "error", err)
		m.Faces = nil
	}

	genderPath := filepath.Join(cfg.ModelsDir, GenderModelFile)
	slog.Info("loading gender model", "path", genderPath)
	m.Gender, err = NewGenderClassifier(genderPath, opts)
	if err != nil {
		slog.Warn("gender model unavailable", "path", genderPath, "error", err)
		m.Gender = nil
	}

	return m, nil
}

// Close releases all ONNX sessions.
func (m *Models) Close() {
	if m.Persons != nil {
		m.Persons.Close()
	}
	if m.Faces != nil {
		m.Faces.Close()
	}
	if m.Gender != nil {
		m.Gender.Close()
	}
}

func observeStage(stage string, start time.Time) {
	observability.InferenceDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
