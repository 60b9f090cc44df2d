// Package ingest pulls frames from a camera, stream or file through ffmpeg.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/crowdsense/internal/config"
	"github.com/your-org/crowdsense/internal/models"
)

var (
	// ErrNoFrame means no frame arrived within the wait window. The caller
	// treats it as an empty frame and asks again.
	ErrNoFrame = errors.New("no frame available")
	// ErrSourceClosed is returned after Close.
	ErrSourceClosed = errors.New("capture source closed")
)

// DefaultFrameWait bounds how long Next blocks.
const DefaultFrameWait = 5 * time.Second

type extractFunc func(ctx context.Context, args []string, cb FrameCallback) error
type resolveFunc func(ctx context.Context, url string) (string, error)

// FFmpegSource decodes frames from ffmpeg and keeps only the newest one.
// It reconnects with exponential backoff (2s, 4s, 8s, ...) up to the
// configured number of attempts, then reports the terminal error from Next.
type FFmpegSource struct {
	cfg       config.CaptureConfig
	frameWait time.Duration

	extract extractFunc
	resolve resolveFunc
	backoff func(attempt int) time.Duration

	inbox *mailbox

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

func NewFFmpegSource(cfg config.CaptureConfig) *FFmpegSource {
	return &FFmpegSource{
		cfg:       cfg,
		frameWait: DefaultFrameWait,
		extract:   runFFmpeg,
		resolve:   ResolveYouTubeURL,
		backoff:   func(attempt int) time.Duration { return time.Duration(1<<uint(attempt)) * time.Second },
		inbox:     newMailbox(),
	}
}

// Start launches the capture loop. It returns immediately.
func (s *FFmpegSource) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	slog.Info("starting capture", "type", s.cfg.Type, "url", s.cfg.URL, "fps", s.cfg.FPS)

	go func() {
		defer close(done)
		err := s.run(ctx)
		if ctx.Err() != nil {
			err = ErrSourceClosed
		}
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.inbox.close()
		slog.Info("capture stopped", "dropped_frames", s.inbox.dropped(), "error", err)
	}()
}

func (s *FFmpegSource) run(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.ReconnectAttempts; attempt++ {
		if attempt > 0 {
			delay := s.backoff(attempt)
			slog.Warn("retrying capture", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		input, err := s.input(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		frames := 0
		err = s.extract(ctx, ffmpegArgs(s.cfg.Type, input, s.cfg.FPS, s.cfg.Width), func(data []byte) error {
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("decode jpeg: %w", err)
			}
			frames++
			s.inbox.put(img)
			return nil
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("stream ended")
		}
		lastErr = err
		slog.Error("capture failed", "attempt", attempt, "frames", frames, "error", err)

		// A run that produced frames was a working connection; start counting again.
		if frames > 0 {
			attempt = 0
		}
	}
	return fmt.Errorf("capture failed after %d attempts: %w", s.cfg.ReconnectAttempts, lastErr)
}

func (s *FFmpegSource) input(ctx context.Context) (string, error) {
	if s.cfg.Type == models.CaptureYouTube || (s.cfg.Type == models.CaptureHTTP && isYouTube(s.cfg.URL)) {
		resolved, err := s.resolve(ctx, s.cfg.URL)
		if err != nil {
			return "", fmt.Errorf("resolve youtube url: %w", err)
		}
		slog.Info("resolved youtube url")
		return resolved, nil
	}
	return s.cfg.URL, nil
}

// Next returns the newest decoded frame. It waits at most the frame wait and
// returns ErrNoFrame when nothing arrived. After the capture loop gives up it
// returns the terminal error.
func (s *FFmpegSource) Next(ctx context.Context) (image.Image, error) {
	img, ok, open := s.inbox.take(ctx, s.frameWait)
	if ok {
		return img, nil
	}
	if !open {
		s.mu.Lock()
		err := s.lastErr
		s.mu.Unlock()
		if err == nil {
			err = ErrSourceClosed
		}
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, ErrNoFrame
}

// Close stops ffmpeg and waits for the capture loop to exit.
func (s *FFmpegSource) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
