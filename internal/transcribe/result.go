package transcribe

import (
	"fmt"
	"strings"
	"time"
)

// Segment is a single transcribed text fragment with timing.
type Segment struct {
	Text   string  `json:"text"`
	StartS float64 `json:"start_s"`
	StopS  float64 `json:"stop_s"`
}

// Transcription is the structured output of a transcription pass.
type Transcription struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// FormatAsSRT returns the transcription as SRT subtitle format.
func (t *Transcription) FormatAsSRT() string {
	if len(t.Segments) == 0 {
		return formatSRTSegment(1, 0, 0, t.Text)
	}

	var b strings.Builder
	for i, seg := range t.Segments {
		b.WriteString(formatSRTSegment(i+1, seg.StartS, seg.StopS, seg.Text))
		if i < len(t.Segments)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatSRTSegment(index int, startSec, endSec float64, text string) string {
	return fmt.Sprintf("%d\n%s --> %s\n%s\n",
		index,
		formatSRTTime(startSec),
		formatSRTTime(endSec),
		text,
	)
}

// formatSRTTime converts seconds to SRT time format (HH:MM:SS,mmm).
func formatSRTTime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
