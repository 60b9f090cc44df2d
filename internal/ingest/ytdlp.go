package ingest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ResolveYouTubeURL uses yt-dlp to get the direct stream URL from a YouTube link.
// Resolved URLs expire, so callers resolve again on every reconnect.
func ResolveYouTubeURL(ctx context.Context, youtubeURL string) (string, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--get-url",
		"--format", "best[height<=720]/best",
		"--no-playlist",
		youtubeURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}
	return firstURL(string(output))
}

// firstURL picks the video URL when yt-dlp prints separate video and audio lines.
func firstURL(output string) (string, error) {
	raw := strings.TrimSpace(output)
	url := strings.TrimSpace(strings.SplitN(raw, "\n", 2)[0])
	if url == "" {
		return "", fmt.Errorf("yt-dlp returned empty URL")
	}
	return url, nil
}
