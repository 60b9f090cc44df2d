package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/config"
	"github.com/your-org/crowdsense/internal/models"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestReadJPEGFrames(t *testing.T) {
	a := jpegBytes(t, 8, 8)
	b := jpegBytes(t, 16, 4)
	stream := append(append([]byte{0x00, 0x12}, a...), b...)

	var frames [][]byte
	err := readJPEGFrames(context.Background(), bytes.NewReader(stream), func(data []byte) error {
		frames = append(frames, data)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 2)

	img, err := jpeg.Decode(bytes.NewReader(frames[1]))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestReadJPEGFrames_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := readJPEGFrames(ctx, bytes.NewReader(nil), func([]byte) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFFmpegArgs(t *testing.T) {
	rtsp := ffmpegArgs(models.CaptureRTSP, "rtsp://cam", 15, 1280)
	assert.Contains(t, rtsp, "-rtsp_transport")
	assert.Contains(t, rtsp, "fps=15,scale=1280:-2")
	assert.Equal(t, "pipe:1", rtsp[len(rtsp)-1])

	file := ffmpegArgs(models.CaptureFile, "clip.mp4", 10, 640)
	assert.Contains(t, file, "-re")
	assert.NotContains(t, file, "-reconnect")

	dev := ffmpegArgs(models.CaptureDevice, "/dev/video0", 10, 640)
	assert.Contains(t, dev, "-f")
	assert.Contains(t, dev, deviceFormat())
}

func TestFirstURL(t *testing.T) {
	got, err := firstURL("https://video\nhttps://audio\n")
	require.NoError(t, err)
	assert.Equal(t, "https://video", got)

	_, err = firstURL("  \n")
	assert.Error(t, err)
}

func TestIsYouTube(t *testing.T) {
	assert.True(t, isYouTube("https://www.youtube.com/watch?v=abc"))
	assert.True(t, isYouTube("https://youtu.be/abc"))
	assert.False(t, isYouTube("http://cam.local/stream.mjpg"))
}

func TestMailbox_KeepsNewest(t *testing.T) {
	m := newMailbox()
	first := image.NewGray(image.Rect(0, 0, 1, 1))
	second := image.NewGray(image.Rect(0, 0, 2, 2))

	m.put(first)
	m.put(second)

	img, ok, open := m.take(context.Background(), time.Millisecond)
	assert.True(t, ok)
	assert.True(t, open)
	assert.Same(t, second, img)
	assert.Equal(t, 1, m.dropped())

	_, ok, open = m.take(context.Background(), time.Millisecond)
	assert.False(t, ok)
	assert.True(t, open)

	m.close()
	_, ok, open = m.take(context.Background(), time.Second)
	assert.False(t, ok)
	assert.False(t, open)
}

func testSource(cfg config.CaptureConfig, extract extractFunc) *FFmpegSource {
	s := NewFFmpegSource(cfg)
	s.extract = extract
	s.backoff = func(int) time.Duration { return time.Millisecond }
	s.frameWait = 200 * time.Millisecond
	return s
}

func TestFFmpegSource_DeliversFrames(t *testing.T) {
	frame := jpegBytes(t, 4, 4)
	release := make(chan struct{})
	s := testSource(config.CaptureConfig{Type: models.CaptureFile, URL: "clip.mp4", FPS: 5, Width: 4}, func(ctx context.Context, args []string, cb FrameCallback) error {
		_ = cb(frame)
		select {
		case <-ctx.Done():
		case <-release:
		}
		return nil
	})
	s.Start(context.Background())
	defer s.Close()
	defer close(release)

	img, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestFFmpegSource_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("connection refused")
	s := testSource(config.CaptureConfig{Type: models.CaptureRTSP, URL: "rtsp://cam", ReconnectAttempts: 3}, func(context.Context, []string, FrameCallback) error {
		calls.Add(1)
		return boom
	})
	s.Start(context.Background())
	defer s.Close()

	var err error
	require.Eventually(t, func() bool {
		_, err = s.Next(context.Background())
		return err != nil && !errors.Is(err, ErrNoFrame)
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFFmpegSource_ResolvesYouTubeEachAttempt(t *testing.T) {
	var resolved atomic.Int32
	s := testSource(config.CaptureConfig{Type: models.CaptureYouTube, URL: "https://youtu.be/x", ReconnectAttempts: 1}, func(_ context.Context, args []string, _ FrameCallback) error {
		assert.Contains(t, args, "https://media/1")
		return errors.New("eof")
	})
	s.resolve = func(context.Context, string) (string, error) {
		resolved.Add(1)
		return "https://media/1", nil
	}
	s.Start(context.Background())

	require.Eventually(t, func() bool { return resolved.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	s.Close()
}

func TestFFmpegSource_Close(t *testing.T) {
	s := testSource(config.CaptureConfig{Type: models.CaptureFile, URL: "x"}, func(ctx context.Context, _ []string, _ FrameCallback) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Start(context.Background())
	s.Close()

	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, ErrSourceClosed)
}
