package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/your-org/crowdsense/internal/models"
)

// FrameCallback is called for each extracted JPEG frame.
type FrameCallback func(frameData []byte) error

const maxFrameBytes = 10 * 1024 * 1024

var errFrameTooLarge = errors.New("jpeg frame too large")

// ffmpegArgs builds the command line that turns the input into an MJPEG pipe.
func ffmpegArgs(kind models.CaptureType, input string, fps, width int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
	}

	switch kind {
	case models.CaptureRTSP:
		args = append(args,
			"-rtsp_transport", "tcp",
			"-timeout", "5000000", // 5s socket timeout (microseconds)
		)
	case models.CaptureHTTP, models.CaptureYouTube:
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-timeout", "10000000", // 10s (microseconds)
		)
	case models.CaptureFile:
		args = append(args, "-re")
	case models.CaptureDevice:
		args = append(args, "-f", deviceFormat())
	}

	return append(args,
		"-i", input,
		"-an",
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-2", fps, width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)
}

func deviceFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

// runFFmpeg starts ffmpeg and calls callback for each JPEG frame.
// It blocks until the context is cancelled or the stream ends.
func runFFmpeg(ctx context.Context, args []string, callback FrameCallback) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	if err := readJPEGFrames(ctx, stdout, callback); err != nil {
		cancel()
		_ = cmd.Wait()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read frames: %w", err)
	}

	return cmd.Wait()
}

// readJPEGFrames reads a stream of concatenated JPEG images.
// Tolerates initial EOF while ffmpeg is still connecting (up to 5 seconds).
func readJPEGFrames(ctx context.Context, r io.Reader, callback FrameCallback) error {
	reader := bufio.NewReaderSize(r, 512*1024)
	framesRead := 0
	const maxStartupRetries = 50 // 50 * 100ms
	startupRetries := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := findJPEGStart(reader)
		if err == io.EOF {
			if framesRead == 0 && startupRetries < maxStartupRetries {
				startupRetries++
				time.Sleep(100 * time.Millisecond)
				continue
			}
			if framesRead > 0 {
				return nil
			}
			return fmt.Errorf("no frames received from ffmpeg (waited %.1fs)", float64(startupRetries)*0.1)
		}
		if err != nil {
			return err
		}

		frameData, err := readUntilJPEGEnd(reader)
		if err == io.EOF && framesRead > 0 {
			return nil // stream ended mid-frame
		}
		if err != nil {
			return err
		}

		framesRead++
		if err := callback(frameData); err != nil {
			slog.Warn("frame callback error", "error", err)
		}
	}
}

// findJPEGStart consumes bytes up to and including the SOI marker FF D8.
func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
		if b == 0xFF {
			_ = r.UnreadByte()
		}
	}
}

// readUntilJPEGEnd returns the frame from SOI through the EOI marker FF D9.
func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		if len(data) > maxFrameBytes {
			return nil, fmt.Errorf("%w: %d bytes", errFrameTooLarge, len(data))
		}
	}
}

// isYouTube reports whether url points at a YouTube page rather than a media stream.
func isYouTube(url string) bool {
	u := strings.ToLower(url)
	return strings.Contains(u, "youtube.com/") || strings.Contains(u, "youtu.be/")
}
