package acquire

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// Downloader resolves an external video URL to a local audio file.
type Downloader struct {
	client youtube.Client

	// MaxBytes caps the size of a downloaded stream. Zero means no cap.
	MaxBytes int64
}

// NewDownloader creates a downloader with the given size cap.
func NewDownloader(maxBytes int64) *Downloader {
	return &Downloader{
		client:   youtube.Client{},
		MaxBytes: maxBytes,
	}
}

// Acquire downloads the best audio-only stream for rawURL into destDir
// and returns the file path together with the raw bytes (used for
// content fingerprinting).
func (d *Downloader) Acquire(ctx context.Context, rawURL, destDir string) (string, []byte, error) {
	video, err := d.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve video: %w", err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return "", nil, fmt.Errorf("no audio-only format available for %s", video.ID)
	}
	if d.MaxBytes > 0 && format.ContentLength > d.MaxBytes {
		return "", nil, fmt.Errorf("audio stream exceeds maximum size of %d bytes", d.MaxBytes)
	}

	stream, _, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get audio stream: %w", err)
	}
	defer stream.Close()

	reader := io.Reader(stream)
	if d.MaxBytes > 0 {
		reader = io.LimitReader(stream, d.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download audio stream: %w", err)
	}
	if d.MaxBytes > 0 && int64(len(data)) > d.MaxBytes {
		return "", nil, fmt.Errorf("audio stream exceeds maximum size of %d bytes", d.MaxBytes)
	}

	path := filepath.Join(destDir, video.ID+extensionFor(format.MimeType))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	return path, data, nil
}

// bestAudioFormat picks the highest-bitrate audio-only format.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

// extensionFor maps an audio MIME type to a file extension.
func extensionFor(mimeType string) string {
	if strings.Contains(mimeType, "mp4") {
		return ".m4a"
	}
	if strings.Contains(mimeType, "webm") {
		return ".webm"
	}
	return ".audio"
}
