package acquire

import (
	"strings"

	"github.com/kkdai/youtube/v2"
)

// NormalizeSource maps equivalent external references to one canonical
// source key: every recognized YouTube URL shape for the same video
// yields the same "youtube:<id>" key. Unrecognized references fall back
// to the raw string, which is still deterministic.
func NormalizeSource(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if id, err := youtube.ExtractVideoID(trimmed); err == nil {
		return "youtube:" + id
	}
	return "url:" + trimmed
}
